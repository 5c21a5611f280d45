package stripe

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ordering-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ordering-backend/pkg/errors"
)

func TestNewClientValidatesKeys(t *testing.T) {
	_, err := NewClient(t.Context(), config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(t.Context(), config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(t.Context(), config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)

	c, err := NewClient(t.Context(), config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_abc", Env: "TEST"}, nil)
	require.NoError(t, err)
	require.Equal(t, "test", c.Environment())
	require.Equal(t, "whsec_abc", c.SigningSecret())

	_, err = NewClient(t.Context(), config.StripeConfig{APIKey: "rk_live_123", Secret: "whsec_abc", Env: "live"}, nil)
	require.NoError(t, err)
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	require.Empty(t, c.Environment())
	require.Empty(t, c.SigningSecret())
}

func TestBuildSessionParams(t *testing.T) {
	params, err := buildSessionParams(CheckoutSessionInput{
		PaymentID:      "pay-1",
		OrderRef:       "ord-1",
		PurchaseID:     "pur-1",
		AmountCents:    4250,
		Currency:       "EUR",
		CustomerEmail:  " ada@example.test ",
		SuccessURL:     "https://shop.test/success?paymentId=pay-1",
		CancelURL:      "https://shop.test/failure?paymentId=pay-1",
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	require.Equal(t, string(stripe.CheckoutSessionModePayment), *params.Mode)
	require.Equal(t, "pay-1", *params.ClientReferenceID)
	require.Equal(t, "ada@example.test", *params.CustomerEmail)
	require.Len(t, params.LineItems, 1)
	require.Equal(t, "eur", *params.LineItems[0].PriceData.Currency)
	require.Equal(t, int64(4250), *params.LineItems[0].PriceData.UnitAmount)
	require.Equal(t, "Order ord-1", *params.LineItems[0].PriceData.ProductData.Name)
	require.Equal(t, "pay-1", params.Metadata[MetadataPaymentID])
	require.Equal(t, "pur-1", params.Metadata[MetadataPurchaseID])
	require.Equal(t, "ord-1", params.PaymentIntentData.Metadata[MetadataOrderRef])
	require.Equal(t, "idem-1", *params.IdempotencyKey)
}

func TestBuildSessionParamsValidation(t *testing.T) {
	_, err := buildSessionParams(CheckoutSessionInput{PaymentID: "p", AmountCents: 0, SuccessURL: "s", CancelURL: "c"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = buildSessionParams(CheckoutSessionInput{PaymentID: "p", AmountCents: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMapStripeErrorPassesStatusThrough(t *testing.T) {
	cardErr := &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired, Msg: "declined"}
	mapped := pkgerrors.As(mapStripeError(cardErr, "create checkout session"))
	require.NotNil(t, mapped)
	require.Equal(t, pkgerrors.CodeDeclined, mapped.Code())
	require.Equal(t, http.StatusPaymentRequired, mapped.HTTPStatus())

	rateErr := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusTooManyRequests}
	mapped = pkgerrors.As(mapStripeError(rateErr, "get checkout session"))
	require.Equal(t, pkgerrors.CodeRateLimit, mapped.Code())

	upstream := &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusBadGateway}
	mapped = pkgerrors.As(mapStripeError(upstream, "create refund"))
	require.Equal(t, pkgerrors.CodeDependency, mapped.Code())
	require.Equal(t, http.StatusBadGateway, mapped.HTTPStatus())

	mapped = pkgerrors.As(mapStripeError(errors.New("dial tcp: timeout"), "create refund"))
	require.Equal(t, pkgerrors.CodeDependency, mapped.Code())
	require.Nil(t, mapStripeError(nil, "noop"))
}

func TestDeclineCode(t *testing.T) {
	require.Empty(t, DeclineCode(nil))
	require.Empty(t, DeclineCode(&stripe.CheckoutSession{}))

	sess := &stripe.CheckoutSession{PaymentIntent: &stripe.PaymentIntent{
		LastPaymentError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined, DeclineCode: stripe.DeclineCodeInsufficientFunds},
	}}
	require.Equal(t, "insufficient_funds", DeclineCode(sess))

	sess.PaymentIntent.LastPaymentError.DeclineCode = ""
	require.Equal(t, "card_declined", DeclineCode(sess))
}
