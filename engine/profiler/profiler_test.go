package profiler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/engine/logger"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

func TestTickLogsPerInterval(t *testing.T) {
	var buf bytes.Buffer
	logger.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { logger.SetLogger(nil) })

	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(time.Second), WithClock(func() time.Time { return now }))

	stats := scene.FrameStats{SceneID: "main", Opaque: 3, Transparent: 1}
	now = now.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(stats))
	now = now.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(stats))
	assert.Zero(t, buf.Len())

	stats.Sorted = true
	now = now.Add(200 * time.Millisecond)
	assert.True(t, p.Tick(stats))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "profiler", entry["msg"])
	assert.InDelta(t, 3.0, entry["fps"], 1e-9)
	assert.InDelta(t, 3.0, entry["opaque_per_frame"], 1e-9)
	assert.InDelta(t, 1.0, entry["sorts"], 1e-9)
	last, ok := entry["last_frame"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "main", last["scene"])

	// counters restart after logging
	now = now.Add(100 * time.Millisecond)
	assert.False(t, p.Tick(stats))
}
