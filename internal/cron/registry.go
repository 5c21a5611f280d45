package cron

import (
	"context"
	"reflect"
)

// Job is one scheduled task of the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order, one per name.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry builds a registry preloaded with jobs. Optional jobs whose
// dependencies are not configured arrive as nil and are skipped.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds job and reports whether it was accepted. Nil jobs and jobs
// whose name is already taken are ignored.
func (r *Registry) Register(job Job) bool {
	if isNilJob(job) {
		return false
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists job names in run order, for startup logging.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Name())
	}
	return out
}

// isNilJob also catches typed nil pointers stored in the interface.
func isNilJob(job Job) bool {
	if job == nil {
		return true
	}
	v := reflect.ValueOf(job)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
