// internal/permissions/gateway.go
package permissions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"printhub/pkg/config"
	"printhub/pkg/middleware"
)

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleReader Role = "READER"
)

// Decision is the authority's answer for a (resource, user) pair.
// Decisions are never cached; authorization tolerates no staleness.
type Decision struct {
	Granted bool `json:"hasPermission"`
	Role    Role `json:"role"`
}

type Record struct {
	ResourceID string `json:"resourceId"`
	UserID     string `json:"userId"`
	Role       Role   `json:"role"`
}

// Gateway wraps the permission authority. Each operation carries its own
// failure policy; the asymmetry is deliberate and load-bearing, see the
// method comments.
type Gateway struct {
	base string
	http *http.Client
	log  *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		base: strings.TrimRight(cfg.PermissionURL, "/"),
		http: &http.Client{Timeout: cfg.OutboundTimeout},
		log:  log,
	}
}

// CheckOwnership asks whether the user owns the resource. Transport and
// service failures propagate: callers of this operation (sharing, deletion)
// must not proceed under uncertainty.
func (g *Gateway) CheckOwnership(ctx context.Context, resourceID, userID string) (Decision, error) {
	var d Decision
	if err := g.getJSON(ctx, g.checkURL("/api/permissions/check", resourceID, userID), &d); err != nil {
		return Decision{}, fmt.Errorf("permissions: ownership check: %w", err)
	}
	if d.Role != RoleOwner {
		d.Granted = false
	}
	return d, nil
}

// HasReadAccess reports whether the user may read the resource.
//
// Fail-open: any transport or service failure grants access. Read paths
// prioritize availability over strict access control when the authority is
// degraded. This is an accepted risk, not a bug; do not "fix" it to
// fail-closed without revisiting that trade-off.
func (g *Gateway) HasReadAccess(ctx context.Context, resourceID, userID string) bool {
	var d Decision
	if err := g.getJSON(ctx, g.checkURL("/api/permissions/check", resourceID, userID), &d); err != nil {
		g.log.Warnw("read check unavailable, failing open", "resource", resourceID, "user", userID, "err", err)
		return true
	}
	return d.Granted
}

// HasWriteAccess reports whether the user may mutate the resource.
//
// Fail-closed: any transport or service failure denies access. Mutating
// operations must not proceed under uncertainty.
func (g *Gateway) HasWriteAccess(ctx context.Context, resourceID, userID string) bool {
	var d Decision
	if err := g.getJSON(ctx, g.checkURL("/api/permissions/write-check", resourceID, userID), &d); err != nil {
		g.log.Warnw("write check unavailable, failing closed", "resource", resourceID, "user", userID, "err", err)
		return false
	}
	return d.Granted
}

// ListForUser returns every permission record for the user, owned and
// shared alike, in the authority's order. On failure it returns an empty
// list: the caller degrades to "nothing visible" rather than a hard error.
func (g *Gateway) ListForUser(ctx context.Context, userID string) []Record {
	var records []Record
	if err := g.getJSON(ctx, g.base+"/api/permissions/user/"+url.PathEscape(userID), &records); err != nil {
		g.log.Warnw("permission listing unavailable", "user", userID, "err", err)
		return []Record{}
	}
	return records
}

// ListOwnedResourceIDs narrows ListForUser to resources the user owns.
// Bulk operations run over this set; shared resources stay untouched.
func (g *Gateway) ListOwnedResourceIDs(ctx context.Context, userID string) []string {
	ids := []string{}
	for _, r := range g.ListForUser(ctx, userID) {
		if r.Role == RoleOwner {
			ids = append(ids, r.ResourceID)
		}
	}
	return ids
}

// Create registers a permission row for the pair.
func (g *Gateway) Create(ctx context.Context, resourceID, userID string, role Role) error {
	body, _ := json.Marshal(Record{ResourceID: resourceID, UserID: userID, Role: role})
	req, err := g.newRequest(ctx, http.MethodPost, g.base+"/api/permissions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("permissions: create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("permissions: create returned %d", resp.StatusCode)
	}
	return nil
}

// DeleteAllFor removes every permission row for a resource, best-effort.
// Each row is deleted independently; one failure never stops the rest.
// The aggregate error reports what could not be removed.
func (g *Gateway) DeleteAllFor(ctx context.Context, resourceID string) error {
	var records []Record
	if err := g.getJSON(ctx, g.base+"/api/permissions/resource/"+url.PathEscape(resourceID), &records); err != nil {
		return fmt.Errorf("permissions: list for resource: %w", err)
	}
	var errs []error
	for _, r := range records {
		if err := g.deleteOne(ctx, r.ResourceID, r.UserID); err != nil {
			g.log.Warnw("permission delete failed, continuing", "resource", r.ResourceID, "user", r.UserID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) deleteOne(ctx context.Context, resourceID, userID string) error {
	u := g.checkURL("/api/permissions", resourceID, userID)
	req, err := g.newRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete returned %d", resp.StatusCode)
	}
	return nil
}

func (g *Gateway) checkURL(path, resourceID, userID string) string {
	q := url.Values{}
	q.Set("resourceId", resourceID)
	q.Set("userId", userID)
	return g.base + path + "?" + q.Encode()
}

func (g *Gateway) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if id := middleware.CorrelationFrom(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
	return req, nil
}

func (g *Gateway) getJSON(ctx context.Context, u string, out any) error {
	req, err := g.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("authority returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
