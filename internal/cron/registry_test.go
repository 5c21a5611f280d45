package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	var unconfigured *namedJob
	registry := NewRegistry(nil, &namedJob{name: "payment_reconcile"}, unconfigured)
	assert.True(t, registry.Register(&namedJob{name: "outbox_retention"}))

	assert.Equal(t, []string{"payment_reconcile", "outbox_retention"}, registry.Names())
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "payment_reconcile"})
	assert.False(t, registry.Register(&namedJob{name: "payment_reconcile"}))
	assert.Len(t, registry.Jobs(), 1)
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "a"})
	jobs := registry.Jobs()
	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}
