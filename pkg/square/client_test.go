package square

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordering-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
	if got := c.NewIdempotencyKey(" "); !strings.HasPrefix(got, "ord-") {
		t.Fatalf("default prefix missing from %q", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "[REDACTED]", c.redact("payment_token", "abc123"))
	assert.Equal(t, "[REDACTED]", c.redact("source_id", "cnon:card-nonce-ok"))
	assert.Equal(t, "ok", c.redact("status", "ok"))
}

func TestNewClientRequiresLocation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "square-test"})
	_, err := NewClient(t.Context(), config.SquareConfig{
		AccessToken:   "token",
		WebhookSecret: "secret",
		Env:           "sandbox",
	}, logg)
	require.ErrorIs(t, err, errLocationRequired)

	c, err := NewClient(t.Context(), config.SquareConfig{
		AccessToken:   "token",
		WebhookSecret: "secret",
		LocationID:    "L1",
		Env:           "SANDBOX",
	}, logg)
	require.NoError(t, err)
	assert.Equal(t, sandboxEnv, c.Environment())
	assert.Equal(t, "secret", c.SigningSecret())
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name       string
		status     int
		payload    string
		wantCode   pkgerrors.Code
		wantStatus int
	}{
		{
			name:       "authentication error is ours",
			status:     http.StatusUnauthorized,
			payload:    `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode:   pkgerrors.CodeDependency,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "idempotency key reused",
			status:     http.StatusConflict,
			payload:    `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode:   pkgerrors.CodeIdempotency,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "card declined",
			status:     http.StatusPaymentRequired,
			payload:    `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"GENERIC_DECLINE"}]}`,
			wantCode:   pkgerrors.CodeDeclined,
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "bad request passes status through",
			status:     http.StatusBadRequest,
			payload:    `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST"}]}`,
			wantCode:   pkgerrors.CodeValidation,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
			mapped := c.mapSquareError(err, "operation")
			typed := pkgerrors.As(mapped)
			require.NotNil(t, typed)
			assert.Equal(t, tt.wantCode, typed.Code())
			assert.Equal(t, tt.wantStatus, typed.HTTPStatus())
		})
	}
}

func TestDeclineCode(t *testing.T) {
	declined := sqcore.NewAPIError(http.StatusPaymentRequired,
		errors.New(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"INSUFFICIENT_FUNDS"}]}`))
	code, ok := DeclineCode(declined)
	require.True(t, ok)
	assert.Equal(t, "INSUFFICIENT_FUNDS", code)

	_, ok = DeclineCode(sqcore.NewAPIError(http.StatusInternalServerError, errors.New(`{"errors":[]}`)))
	assert.False(t, ok)

	_, ok = DeclineCode(errors.New("dial tcp: timeout"))
	assert.False(t, ok)
}

func TestExtractSquareErrors(t *testing.T) {
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := extractSquareErrors(apiErr)
	require.Len(t, got, 1)
	assert.Equal(t, sq.ErrorCodeBadRequest, got[0].GetCode())
}

func TestPaymentParamsToRequest(t *testing.T) {
	req := PaymentCreateParams{
		AmountCents: 2450,
		Currency:    "eur",
		LocationID:  "L1",
		SourceID:    "cnon:card-nonce-ok",
		BuyerEmail:  " diner@example.test ",
		ReferenceID: "pay-1",
	}.toSquareRequest("key-1")

	assert.Equal(t, "key-1", req.IdempotencyKey)
	require.NotNil(t, req.AmountMoney)
	assert.Equal(t, int64(2450), *req.AmountMoney.Amount)
	assert.Equal(t, sq.Currency("EUR"), *req.AmountMoney.Currency)
	assert.Equal(t, "diner@example.test", *req.BuyerEmailAddress)
	assert.Equal(t, "pay-1", *req.ReferenceID)
	assert.True(t, *req.Autocomplete)
}

func TestRefundParamsToRequest(t *testing.T) {
	req := RefundParams{PaymentID: "sq-pay", AmountCents: 500, Currency: "EUR", Reason: "cold food"}.toSquareRequest("rk")
	assert.Equal(t, "rk", req.IdempotencyKey)
	assert.Equal(t, "sq-pay", *req.PaymentID)
	assert.Equal(t, int64(500), *req.AmountMoney.Amount)
	assert.Equal(t, "cold food", *req.Reason)
}
