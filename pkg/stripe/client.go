package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

// keyPrefixes lists the secret key forms each environment accepts.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// Client holds the account credentials for checkout sessions, refunds and
// webhook verification. Calls go through stripe-go's package-level API, so a
// process talks to exactly one Stripe account.
type Client struct {
	environment   string
	signingSecret string
}

type credentials struct {
	env           string
	apiKey        string
	signingSecret string
}

// NewClient validates the configured keys against the environment and
// installs the API key.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	creds, err := credentialsFrom(cfg)
	if err != nil {
		return nil, err
	}

	stripe.Key = creds.apiKey

	if logg != nil {
		ctx = logg.WithField(ctx, "stripe_env", creds.env)
		logg.Info(ctx, "stripe.client.ready")
	}

	return &Client{
		environment:   creds.env,
		signingSecret: creds.signingSecret,
	}, nil
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the endpoint secret used to verify webhook payloads.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func credentialsFrom(cfg config.StripeConfig) (credentials, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return credentials{}, errInvalidStripeEnv
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return credentials{}, errAPIKeyRequired
	}
	if !hasAnyPrefix(key, prefixes) {
		return credentials{}, fmt.Errorf("stripe %s environment requires a %s key", env, strings.Join(prefixes, " or "))
	}

	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return credentials{}, errSecretRequired
	}
	return credentials{env: env, apiKey: key, signingSecret: secret}, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
