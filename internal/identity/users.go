// internal/identity/users.go
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jmes "github.com/jmespath/go-jmespath"

	"printhub/pkg/middleware"
)

// User is the projection of an identity-provider profile we expose.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// userProjection extracts the fields we care about from the raw profile
// list the management API returns.
const userProjection = `[*].{id: user_id, name: nickname}`

// SearchUsers queries the management API's user list, optionally filtered
// by a search term. A rejected credential invalidates the cache and the
// call is retried once with a fresh token; a second rejection is an error,
// never a silent empty result.
func (c *Credentials) SearchUsers(ctx context.Context, query string) ([]User, error) {
	users, rejected, err := c.searchUsersOnce(ctx, query)
	if err != nil {
		return nil, err
	}
	if rejected {
		c.Invalidate()
		users, rejected, err = c.searchUsersOnce(ctx, query)
		if err != nil {
			return nil, err
		}
		if rejected {
			return nil, fmt.Errorf("%w: credentials rejected after refresh", ErrRefreshFailed)
		}
	}
	return users, nil
}

func (c *Credentials) searchUsersOnce(ctx context.Context, query string) ([]User, bool, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, false, err
	}
	u := c.domain + "/api/v2/users"
	if query != "" {
		u += "?q=" + url.QueryEscape(query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if id := middleware.CorrelationFrom(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("identity: user search: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || IsAuthRejection(string(raw)) {
		return nil, true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("identity: user search returned %d", resp.StatusCode)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("identity: user search: %w", err)
	}
	projected, err := jmes.Search(userProjection, doc)
	if err != nil {
		return nil, false, fmt.Errorf("identity: user projection: %w", err)
	}
	out := []User{}
	items, _ := projected.([]any)
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		u := User{}
		u.ID, _ = m["id"].(string)
		u.Name, _ = m["name"].(string)
		if u.ID != "" {
			out = append(out, u)
		}
	}
	return out, false, nil
}
