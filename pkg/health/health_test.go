package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, endpoint http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	endpoint(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestReadinessGate(t *testing.T) {
	h := New()

	rec := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready until SetReady")

	h.SetReady(true)
	rec = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(false)
	rec = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "draining")
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.SetReady(true)

	failing := &check{name: "db", timeout: time.Second, fn: func(context.Context) error {
		return errors.New("connection refused")
	}}
	failing.healthy.Store(true)
	h.readiness = append(h.readiness, failing)

	ctx := context.Background()

	// Below the threshold the check still reports healthy.
	failing.run(ctx)
	failing.run(ctx)
	assert.Equal(t, http.StatusOK, probe(t, h.ReadyEndpoint).Code)

	failing.run(ctx)
	rec := probe(t, h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRecoveryAfterSuccess(t *testing.T) {
	h := New()
	h.SetReady(true)

	healthy := false
	c := &check{name: "dep", timeout: time.Second, fn: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}}
	h.liveness = append(h.liveness, c)

	ctx := context.Background()
	for i := 0; i < failureThreshold; i++ {
		c.run(ctx)
	}
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h.LiveEndpoint).Code)

	healthy = true
	c.run(ctx)
	assert.Equal(t, http.StatusOK, probe(t, h.LiveEndpoint).Code)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
