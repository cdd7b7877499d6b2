package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	assert.Equal(t, 100, tracker.Current())

	output := buf.String()
	assert.Contains(t, output, "Embedding: 100/100")
	assert.Contains(t, output, "100.0%")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)

	tracker.Start()
	tracker.Update(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Classifying", 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0")
}

func TestProgressTracker_IncrementBeyondTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)

	tracker.Start()
	tracker.Increment(150)

	assert.Contains(t, buf.String(), "100/100", "should not exceed total")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 100, 10)

	tracker.Increment(10)
	tracker.Finish()

	assert.Empty(t, buf.String(), "should have no output when not started")
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "Embedding", 1000, 100)

	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String(), "should not print under interval")

	tracker.Update(100)
	assert.NotEmpty(t, buf.String(), "should print at interval")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "interval counts from the last report")

	tracker.Update(250)
	assert.Contains(t, buf.String(), "questions/s")
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, "Embedding", 10, 1)
	tracker.Start()
	tracker.Increment(5)
	tracker.Finish()
	assert.Equal(t, 10, tracker.Current())
}
