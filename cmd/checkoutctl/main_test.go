package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/ordering-backend/pkg/auth"
	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
)

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{}, nil)
	require.ErrorIs(t, err, errUsage)

	err = run(context.Background(), []string{"bogus"}, &bytes.Buffer{}, nil)
	require.ErrorIs(t, err, errUsage)
}

func TestRunRetryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/payments/pay-1/retry-status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"canRetry":true,"remainingAttempts":2,"attemptsUsed":1,"maxAttempts":3}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run(context.Background(), []string{"retry-status", "-api", srv.URL, "-payment", "pay-1"}, &out, nil)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, true, got["canRetry"])
	require.EqualValues(t, 2, got["remainingAttempts"])
}

func TestRunOrderSendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "cli-session-token-000000001", r.Header.Get("X-Cart-Session"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"orderId":"o-1","orderNumber":"ORD-1","status":"preparing"}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run(context.Background(), []string{"order", "-api", srv.URL, "-order", "o-1", "-session", "cli-session-token-000000001"}, &out, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"preparing"`)
}

func TestRunMintToken(t *testing.T) {
	t.Setenv("ORDERING_JWT_SECRET", "cli-secret")
	t.Setenv("ORDERING_JWT_ISSUER", "ordering")

	var out bytes.Buffer
	err := run(context.Background(), []string{"mint-token", "-role", "support"}, &out, nil)
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(config.JWTConfig{Secret: "cli-secret", Issuer: "ordering"}, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, enums.StaffRoleSupport, claims.Role)
}
