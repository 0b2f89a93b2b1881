package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(detail string) Probe {
	return func(context.Context) (string, error) { return detail, nil }
}

func failing(msg string) Probe {
	return func(context.Context) (string, error) { return "", errors.New(msg) }
}

func TestOptionalFailureDegrades(t *testing.T) {
	r := New(time.Second)
	r.Critical("index", up("12 records"))
	r.Optional("redis", failing("connection refused"))

	rep := r.Run(context.Background())
	assert.Equal(t, StatusDegraded, rep.Status)
	require.Len(t, rep.Components, 2)
	assert.Equal(t, "index", rep.Components[0].Name)
	assert.Equal(t, "12 records", rep.Components[0].Detail)
	assert.Equal(t, "connection refused", rep.Components[1].Error)
	assert.False(t, rep.Components[1].Critical)
}

func TestCriticalFailureTakesServiceDown(t *testing.T) {
	r := New(time.Second)
	r.Optional("redis", failing("refused"))
	r.Critical("store", Ping(func(context.Context) error { return fmt.Errorf("dial: %w", errors.New("no route")) }))

	assert.Equal(t, StatusDown, r.Run(context.Background()).Status)

	r.Critical("store", up(""))
	assert.Equal(t, StatusDegraded, r.Run(context.Background()).Status, "re-registering replaces the probe")
}

func TestProbeTimeout(t *testing.T) {
	r := New(5 * time.Millisecond)
	r.Critical("store", Ping(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	rep := r.Run(context.Background())
	assert.Equal(t, StatusDown, rep.Status)
	assert.Contains(t, rep.Components[0].Error, "deadline exceeded")
}

func TestReadyHandler(t *testing.T) {
	r := New(time.Second)
	r.Optional("redis", failing("refused"))

	rec := httptest.NewRecorder()
	r.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, StatusDegraded, rep.Status)

	r.Critical("store", failing("gone"))
	rec = httptest.NewRecorder()
	r.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
