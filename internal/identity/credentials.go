// internal/identity/credentials.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"printhub/pkg/config"
)

var (
	// ErrNotConfigured means the management client id/secret/domain are
	// incomplete; callers degrade rather than fail hard.
	ErrNotConfigured = errors.New("identity: management credentials not configured")
	// ErrRefreshFailed means the token endpoint was unreachable or rejected
	// the client_credentials exchange.
	ErrRefreshFailed = errors.New("identity: token refresh failed")
)

// tokenSafetyMargin keeps us clear of the provider's own expiry clock:
// a token within this margin of expiring is treated as already expired.
const tokenSafetyMargin = 300 * time.Second

// Credentials caches the management-API bearer token. The refresh is
// single-flighted: concurrent callers that all observe a missing or
// expired token share one request to the token endpoint.
type Credentials struct {
	domain       string
	clientID     string
	clientSecret string
	audience     string

	http *http.Client
	log  *zap.SugaredLogger

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	flight singleflight.Group
	now    func() time.Time
}

func NewCredentials(cfg config.Config, log *zap.SugaredLogger) *Credentials {
	return &Credentials{
		domain:       strings.TrimRight(cfg.IdentityDomain, "/"),
		clientID:     cfg.IdentityClientID,
		clientSecret: cfg.IdentityClientSecret,
		audience:     cfg.IdentityAudience,
		http:         &http.Client{Timeout: cfg.OutboundTimeout},
		log:          log,
		now:          time.Now,
	}
}

// Token returns a management bearer token, refreshing it when missing or
// within the safety margin of expiry.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Add(tokenSafetyMargin).Before(c.expiresAt) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do("management-token", func() (any, error) {
		// A concurrent caller may have refreshed while we queued.
		c.mu.Lock()
		if c.token != "" && c.now().Add(tokenSafetyMargin).Before(c.expiresAt) {
			tok := c.token
			c.mu.Unlock()
			return tok, nil
		}
		c.mu.Unlock()

		tok, exp, err := c.fetchToken(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.expiresAt = exp
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token immediately. Consumers call it when a
// downstream response indicates the credential was rejected.
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Credentials) fetchToken(ctx context.Context) (string, time.Time, error) {
	if c.domain == "" || strings.TrimSpace(c.clientID) == "" || strings.TrimSpace(c.clientSecret) == "" {
		return "", time.Time{}, ErrNotConfigured
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("audience", c.audience)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.domain+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, fmt.Errorf("%w: token endpoint returned %d", ErrRefreshFailed, resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: malformed token response", ErrRefreshFailed)
	}
	c.log.Infow("management token refreshed", "expires_in", body.ExpiresIn)
	return body.AccessToken, c.now().Add(time.Duration(body.ExpiresIn) * time.Second), nil
}

// authRejectionMarkers are the response-body fragments the identity
// provider uses when it rejects a bearer credential.
var authRejectionMarkers = []string{
	"expired",
	"invalid",
	"Bad HTTP authentication header format",
}

// IsAuthRejection reports whether a downstream response body indicates the
// management credential was rejected and should be invalidated.
func IsAuthRejection(body string) bool {
	for _, m := range authRejectionMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}
