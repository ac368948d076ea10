package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationForwardsInboundID(t *testing.T) {
	var seen string
	h := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc123", seen)
	assert.Equal(t, "abc123", rec.Header().Get(CorrelationHeader))
}

func TestCorrelationMintsWhenAbsent(t *testing.T) {
	var seen string
	h := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationHeader))

	// A second request gets its own id.
	var second string
	h2 := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		second = CorrelationFrom(r.Context())
	}))
	h2.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEqual(t, seen, second)
}

func TestCorrelationFromEmptyContext(t *testing.T) {
	assert.Empty(t, CorrelationFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
