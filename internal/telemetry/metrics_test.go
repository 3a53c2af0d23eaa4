package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveItem("succeeded")
	m.ObserveItem("succeeded")
	m.ObserveItem("failed")
	m.SetCached(7)
	m.ObserveCall("compile", nil, 200*time.Millisecond)
	m.ObserveCall("explain", errors.New("boom"), time.Second)
	m.ObserveRetry("explain")
	m.SetEventsDropped(3)

	path := filepath.Join(t.TempDir(), "asmgallery.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `asmgallery_items_total{status="succeeded"} 2`)
	assert.Contains(t, text, `asmgallery_items_total{status="failed"} 1`)
	assert.Contains(t, text, `asmgallery_items_cached 7`)
	assert.Contains(t, text, `asmgallery_remote_calls_total{endpoint="compile",outcome="ok"} 1`)
	assert.Contains(t, text, `asmgallery_remote_calls_total{endpoint="explain",outcome="error"} 1`)
	assert.Contains(t, text, `asmgallery_retries_total{endpoint="explain"} 1`)
	assert.Contains(t, text, `asmgallery_events_dropped 3`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveItem("succeeded")
	m.SetCached(1)
	m.ObserveCall("compile", nil, time.Second)
	m.ObserveRetry("compile")
	m.SetEventsDropped(1)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two runs in one process must not collide on registration.
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
