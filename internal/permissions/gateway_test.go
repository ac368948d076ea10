package permissions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printhub/pkg/config"
	"printhub/pkg/logger"
	"printhub/pkg/middleware"
)

func newTestGateway(baseURL string) *Gateway {
	return New(config.Config{PermissionURL: baseURL, OutboundTimeout: 2 * time.Second}, logger.Nop())
}

func failingServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
}

func TestHasReadAccessFailsOpen(t *testing.T) {
	srv := failingServer()
	defer srv.Close()
	g := newTestGateway(srv.URL)

	assert.True(t, g.HasReadAccess(context.Background(), "snip-1", "user-1"),
		"read checks prioritize availability when the authority is down")

	srv.Close() // transport failure, not just 500
	assert.True(t, g.HasReadAccess(context.Background(), "snip-1", "user-1"))
}

func TestHasWriteAccessFailsClosed(t *testing.T) {
	srv := failingServer()
	defer srv.Close()
	g := newTestGateway(srv.URL)

	assert.False(t, g.HasWriteAccess(context.Background(), "snip-1", "user-1"),
		"write checks must not proceed under uncertainty")

	srv.Close()
	assert.False(t, g.HasWriteAccess(context.Background(), "snip-1", "user-1"))
}

func TestAccessChecksHonorDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snip-1", r.URL.Query().Get("resourceId"))
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		switch r.URL.Path {
		case "/api/permissions/check":
			fmt.Fprint(w, `{"hasPermission":true,"role":"READER"}`)
		case "/api/permissions/write-check":
			fmt.Fprint(w, `{"hasPermission":false}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	g := newTestGateway(srv.URL)

	assert.True(t, g.HasReadAccess(context.Background(), "snip-1", "user-1"))
	assert.False(t, g.HasWriteAccess(context.Background(), "snip-1", "user-1"))
}

func TestCheckOwnershipPropagatesFailure(t *testing.T) {
	srv := failingServer()
	defer srv.Close()
	g := newTestGateway(srv.URL)

	_, err := g.CheckOwnership(context.Background(), "snip-1", "user-1")
	require.Error(t, err)
}

func TestCheckOwnershipRequiresOwnerRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hasPermission":true,"role":"READER"}`)
	}))
	defer srv.Close()
	g := newTestGateway(srv.URL)

	d, err := g.CheckOwnership(context.Background(), "snip-1", "user-1")
	require.NoError(t, err)
	assert.False(t, d.Granted, "a reader is not an owner")
}

func TestListOwnedResourceIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/permissions/user/user-1", r.URL.Path)
		fmt.Fprint(w, `[
			{"resourceId":"a","userId":"user-1","role":"OWNER"},
			{"resourceId":"b","userId":"user-1","role":"READER"},
			{"resourceId":"c","userId":"user-1","role":"OWNER"}
		]`)
	}))
	defer srv.Close()
	g := newTestGateway(srv.URL)

	assert.Equal(t, []string{"a", "c"}, g.ListOwnedResourceIDs(context.Background(), "user-1"))

	recs := g.ListForUser(context.Background(), "user-1")
	require.Len(t, recs, 3, "the full listing keeps shared resources")
	assert.Equal(t, Record{ResourceID: "b", UserID: "user-1", Role: RoleReader}, recs[1])
}

func TestListOwnedResourceIDsDegradesToEmpty(t *testing.T) {
	srv := failingServer()
	defer srv.Close()
	g := newTestGateway(srv.URL)

	assert.Empty(t, g.ListForUser(context.Background(), "user-1"))
	assert.Empty(t, g.ListOwnedResourceIDs(context.Background(), "user-1"))
}

func TestDeleteAllForContinuesPastFailures(t *testing.T) {
	var deletes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `[
				{"resourceId":"snip-1","userId":"u1","role":"OWNER"},
				{"resourceId":"snip-1","userId":"u2","role":"READER"},
				{"resourceId":"snip-1","userId":"u3","role":"READER"}
			]`)
			return
		}
		n := atomic.AddInt32(&deletes, 1)
		if n == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	g := newTestGateway(srv.URL)

	err := g.DeleteAllFor(context.Background(), "snip-1")
	assert.Error(t, err, "the failed row is reported")
	assert.EqualValues(t, 3, atomic.LoadInt32(&deletes), "every row must be attempted")
}

func TestOutboundCallsCarryCorrelationID(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get(middleware.CorrelationHeader))
		fmt.Fprint(w, `{"hasPermission":true,"role":"OWNER"}`)
	}))
	defer srv.Close()
	g := newTestGateway(srv.URL)

	ctx := middleware.WithCorrelation(context.Background(), "abc123")
	g.HasReadAccess(ctx, "snip-1", "user-1")
	assert.Equal(t, "abc123", got.Load())
}
