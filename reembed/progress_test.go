package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)
	tracker.Start()

	tracker.Update(5)
	assert.Empty(t, buf.String(), "below interval, nothing reported yet")

	tracker.Update(10)
	assert.Contains(t, buf.String(), "10/100")

	tracker.Update(14)
	assert.NotContains(t, buf.String(), "14/100", "only 4 past the last report")

	tracker.Update(25)
	assert.Contains(t, buf.String(), "25/100")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 42, 100)
	tracker.Start()
	tracker.Update(17)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "42/42", "finish reports completion")
	assert.Contains(t, output, "100.0%")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish terminates the line")
}

func TestProgressTracker_Increment(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 20, 10)
	tracker.Start()

	tracker.Increment(6)
	tracker.Increment(6)
	assert.Contains(t, buf.String(), "12/20")

	// Capped at total
	tracker.Increment(100)
	assert.Contains(t, buf.String(), "20/20")
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Update(5)
	tracker.Increment(3)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_Elapsed(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)
	tracker.Start()

	time.Sleep(5 * time.Millisecond)
	require.GreaterOrEqual(t, tracker.Elapsed(), 5*time.Millisecond)
}
