package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordering-backend/api/middleware"
	"github.com/angelmondragon/ordering-backend/internal/payments"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

type stubInitiator struct {
	session string
	input   payments.InitiateInput
	result  *payments.InitiateResult
	err     error
}

func (s *stubInitiator) Initiate(_ context.Context, sessionHash string, in payments.InitiateInput) (*payments.InitiateResult, error) {
	s.session = sessionHash
	s.input = in
	return s.result, s.err
}

type stubOutcomes struct {
	success *payments.SuccessInput
	failure *payments.FailureInput
	result  *payments.OutcomeResult
}

func (s *stubOutcomes) HandleSuccess(_ context.Context, in payments.SuccessInput) (*payments.OutcomeResult, error) {
	s.success = &in
	return s.result, nil
}

func (s *stubOutcomes) HandleFailure(_ context.Context, in payments.FailureInput) (*payments.OutcomeResult, error) {
	s.failure = &in
	return s.result, nil
}

type stubRetry struct {
	status *payments.RetryStatus
	err    error
}

func (s stubRetry) Status(context.Context, uuid.UUID) (*payments.RetryStatus, error) {
	return s.status, s.err
}

const initiateBody = `{
	"customer": {"name": "Ana", "email": "ana@example.com"},
	"deliveryAddress": {"line1": "Calle 1", "city": "Madrid", "postalCode": "28001", "country": "ES"},
	"currency": "EUR"
}`

func TestInitiateReturnsRedirect(t *testing.T) {
	paymentID := uuid.New()
	svc := &stubInitiator{result: &payments.InitiateResult{
		PaymentID:         paymentID,
		OrderID:           uuid.New(),
		RedirectURL:       "https://checkout.stripe.com/c/pay/cs_test",
		Provider:          enums.PaymentProviderStripe,
		AttemptSequence:   1,
		RemainingAttempts: 3,
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(initiateBody))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "hash-1"))
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "hash-1", svc.session)
	require.Equal(t, "ana@example.com", svc.input.Customer.Email)

	var envelope struct {
		Data payments.InitiateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, paymentID, envelope.Data.PaymentID)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", envelope.Data.RedirectURL)
}

func TestInitiateBudgetExhaustedIsConflictWithSupportPath(t *testing.T) {
	svc := &stubInitiator{err: pkgerrors.New(pkgerrors.CodeBudget, "retry budget exhausted").
		WithDetails(map[string]any{"supportPath": "/contact"})}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(initiateBody))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "hash-1"))
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), string(pkgerrors.CodeBudget))
	require.Contains(t, rec.Body.String(), `"supportPath":"/contact"`)
}

func TestInitiateRejectsInvalidEmailBeforeService(t *testing.T) {
	svc := &stubInitiator{}
	body := strings.Replace(initiateBody, "ana@example.com", "not-an-email", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "hash-1"))
	rec := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.session)
}

func TestOutcomeRoutesSuccessAndFailure(t *testing.T) {
	paymentID := uuid.New()
	orderID := uuid.New()
	svc := &stubOutcomes{result: &payments.OutcomeResult{PaymentID: paymentID, Outcome: enums.PaymentOutcomeSucceeded}}

	body := `{"status":"success","paymentId":"` + paymentID.String() + `","orderId":"` + orderID.String() + `"}`
	rec := httptest.NewRecorder()
	Outcome(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/outcome", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.success)
	require.Equal(t, orderID, svc.success.OrderID)
	require.Equal(t, payments.SourceBrowser, svc.success.Source)
	require.False(t, svc.success.Verified)

	body = `{"status":"failure","paymentId":"` + paymentID.String() + `","reason":"card_declined","message":"Your card was declined."}`
	rec = httptest.NewRecorder()
	Outcome(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/outcome", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.failure)
	require.Equal(t, "card_declined", svc.failure.Code)
	require.Equal(t, "Your card was declined.", svc.failure.Message)
}

func TestOutcomeValidation(t *testing.T) {
	paymentID := uuid.NewString()
	cases := map[string]string{
		"bad status":        `{"status":"maybe","paymentId":"` + paymentID + `"}`,
		"bad payment id":    `{"status":"failure","paymentId":"abc","reason":"card_declined"}`,
		"success no order":  `{"status":"success","paymentId":"` + paymentID + `"}`,
		"failure no reason": `{"status":"failure","paymentId":"` + paymentID + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubOutcomes{}
			rec := httptest.NewRecorder()
			Outcome(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/payments/outcome", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Nil(t, svc.success)
			require.Nil(t, svc.failure)
		})
	}
}

func TestRetryStatus(t *testing.T) {
	paymentID := uuid.New()
	svc := stubRetry{status: &payments.RetryStatus{PaymentID: paymentID, CanRetry: true, RemainingAttempts: 2, AttemptsUsed: 1, MaxAttempts: 3}}

	r := chi.NewRouter()
	r.Get("/api/v1/payments/{paymentId}/retry-status", RetryStatus(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+paymentID.String()+"/retry-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data payments.RetryStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.CanRetry)
	require.Equal(t, 2, envelope.Data.RemainingAttempts)

	rec = httptest.NewRecorder()
	r2 := chi.NewRouter()
	r2.Get("/api/v1/payments/{paymentId}/retry-status", RetryStatus(stubRetry{err: pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")}, nil))
	r2.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString()+"/retry-status", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
