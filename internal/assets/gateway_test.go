package assets

import (
	"context"
	"fmt"
	"io"
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
	return New(config.Config{AssetURL: baseURL, OutboundTimeout: 2 * time.Second}, logger.Nop())
}

func TestGetReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/asset/snippets/snip-1", r.URL.Path)
		fmt.Fprint(w, "println(1);")
	}))
	defer srv.Close()

	content, err := newTestGateway(srv.URL).Get(context.Background(), "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "println(1);", content)
}

func TestGetMissingIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL).Get(context.Background(), "snip-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "let a: number = 1;", string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	require.NoError(t, newTestGateway(srv.URL).Put(context.Background(), "snip-1", "let a: number = 1;"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	assert.NoError(t, newTestGateway(srv.URL).Delete(context.Background(), "missing"),
		"deleting a missing asset is success")
}

func TestUpdateAttemptsPutDespiteDeleteFailure(t *testing.T) {
	var puts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			http.Error(w, "boom", http.StatusInternalServerError)
		case http.MethodPut:
			atomic.AddInt32(&puts, 1)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	require.NoError(t, newTestGateway(srv.URL).Update(context.Background(), "snip-1", "content"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&puts))
}

func TestUpdateFailsWhenPutFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, newTestGateway(srv.URL).Update(context.Background(), "snip-1", "content"))
}

func TestCorrelationHeaderOnOutbound(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get(middleware.CorrelationHeader))
		fmt.Fprint(w, "x")
	}))
	defer srv.Close()

	ctx := middleware.WithCorrelation(context.Background(), "abc123")
	_, err := newTestGateway(srv.URL).Get(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Load())
}
