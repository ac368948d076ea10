// internal/assets/gateway.go
package assets

import (
	"context"
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

// ErrNotFound means the blob store has no content for the id.
var ErrNotFound = errors.New("assets: content not found")

const container = "snippets"

// Gateway wraps the content-blob store holding snippet source text,
// independent of snippet metadata.
type Gateway struct {
	base string
	http *http.Client
	log  *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		base: strings.TrimRight(cfg.AssetURL, "/"),
		http: &http.Client{Timeout: cfg.OutboundTimeout},
		log:  log,
	}
}

// Get returns the stored content, or ErrNotFound.
func (g *Gateway) Get(ctx context.Context, id string) (string, error) {
	req, err := g.newRequest(ctx, http.MethodGet, id, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assets: get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("assets: get returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("assets: get: %w", err)
	}
	return string(raw), nil
}

// Put stores content under the id, creating or overwriting.
func (g *Gateway) Put(ctx context.Context, id, content string) error {
	req, err := g.newRequest(ctx, http.MethodPut, id, strings.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("assets: put: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("assets: put returned %d", resp.StatusCode)
	}
	return nil
}

// Delete removes the content. Deletion is idempotent: a missing blob is
// success, not an error.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	req, err := g.newRequest(ctx, http.MethodDelete, id, nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("assets: delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusOK {
		return nil
	}
	return fmt.Errorf("assets: delete returned %d", resp.StatusCode)
}

// Update replaces content as delete-then-put. A delete failure does not
// stop the put; overall success requires the put to succeed.
func (g *Gateway) Update(ctx context.Context, id, content string) error {
	if err := g.Delete(ctx, id); err != nil {
		g.log.Warnw("asset delete before update failed, attempting put", "id", id, "err", err)
	}
	return g.Put(ctx, id, content)
}

func (g *Gateway) newRequest(ctx context.Context, method, id string, body io.Reader) (*http.Request, error) {
	u := g.base + "/v1/asset/" + container + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if cid := middleware.CorrelationFrom(ctx); cid != "" {
		req.Header.Set(middleware.CorrelationHeader, cid)
	}
	return req, nil
}
