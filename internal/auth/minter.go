// Package auth provides service-account authentication against Google's
// OAuth2 token endpoint via the signed-JWT bearer exchange.
package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/advisorkit/advisor-proxy-go/internal/config"
	"github.com/advisorkit/advisor-proxy-go/internal/errors"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
)

// AccessToken is a short-lived bearer credential for reasoning-engine calls
type AccessToken struct {
	Value  string
	Expiry time.Time
}

// Valid reports whether the token is still usable at time now
func (t AccessToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.Expiry)
}

// Minter exchanges a service-account key for short-lived bearer tokens.
// Each Mint call performs one outbound round trip; the minter holds no
// token cache, so callers needing multiple upstream calls re-mint per call.
type Minter struct {
	rawServiceAccount string
	tokenURL          string
	httpClient        *http.Client
	now               func() time.Time
}

// Option configures a Minter
type Option func(*Minter)

// WithTokenURL overrides the token endpoint (used by tests)
func WithTokenURL(u string) Option {
	return func(m *Minter) { m.tokenURL = u }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(m *Minter) { m.httpClient = c }
}

// WithClock overrides the clock (used by tests)
func WithClock(now func() time.Time) Option {
	return func(m *Minter) { m.now = now }
}

// NewMinter creates a Minter over the raw service-account JSON bundle.
// The bundle is not validated here; Mint surfaces a ConfigError when the
// configuration is absent or malformed.
func NewMinter(rawServiceAccount string, opts ...Option) *Minter {
	m := &Minter{
		rawServiceAccount: rawServiceAccount,
		tokenURL:          config.TokenURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mint produces a fresh bearer token: it builds and signs the assertion JWT,
// then exchanges it at the token endpoint. Fails with ConfigError for bad
// service-account configuration and AuthError when the exchange is rejected.
func (m *Minter) Mint(ctx context.Context) (AccessToken, error) {
	assertion, issuedAt, err := m.buildAssertion()
	if err != nil {
		return AccessToken{}, err
	}

	token, err := m.exchange(ctx, assertion)
	if err != nil {
		return AccessToken{}, err
	}

	return AccessToken{
		Value:  token,
		Expiry: issuedAt.Add(config.TokenLifetimeSeconds * time.Second),
	}, nil
}

// Token implements the vertex.TokenSource contract
func (m *Minter) Token(ctx context.Context) (string, error) {
	tok, err := m.Mint(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// buildAssertion constructs and signs the RS256 assertion JWT
func (m *Minter) buildAssertion() (string, time.Time, error) {
	sa, err := ParseServiceAccount(m.rawServiceAccount)
	if err != nil {
		return "", time.Time{}, err
	}

	key, err := sa.RSAKey()
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.now()
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": config.CloudPlatformScope,
		"aud":   m.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Unix() + config.TokenLifetimeSeconds,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = sa.PrivateKeyID

	signed, err := token.SignedString(key)
	if err != nil {
		// Syntactically valid PEM can still carry an unusable key.
		return "", time.Time{}, errors.NewConfigError("failed to sign assertion: "+err.Error(), "private_key")
	}

	return signed, now, nil
}

// exchange trades the assertion JWT for a bearer token
func (m *Minter) exchange(ctx context.Context, assertion string) (string, error) {
	form := url.Values{
		"grant_type": {config.JWTBearerGrantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewAuthError("failed to create token request: "+err.Error(), "")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		aerr := errors.NewAuthError("token exchange request failed: "+err.Error(), "")
		aerr.Retryable = utils.IsNetworkError(err)
		return "", aerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewAuthError("failed to read token response: "+err.Error(), "")
	}

	if resp.StatusCode != http.StatusOK {
		utils.Error("[Auth] Token exchange failed: %d %s", resp.StatusCode, utils.Truncate(string(body), 200))
		return "", errors.NewAuthError("token exchange rejected", string(body))
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &tokenData); err != nil {
		return "", errors.NewAuthError("failed to parse token response: "+err.Error(), string(body))
	}

	if tokenData.AccessToken == "" {
		return "", errors.NewAuthError("no access token in exchange response", string(body))
	}

	utils.Debug("[Auth] Token exchange successful, access_token length: %d", len(tokenData.AccessToken))
	return tokenData.AccessToken, nil
}
