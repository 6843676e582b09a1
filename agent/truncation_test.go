package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short output", 100, TruncateHeadTail)
	assert.Equal(t, "short output", out)
}

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 100, TruncateHeadTail)

	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 50)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 50)))
	assert.Contains(t, out, "truncated")
	assert.Contains(t, out, "900 characters were removed")
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 100)
	out := TruncateOutput(input, 100, TruncateTail)

	assert.True(t, strings.HasSuffix(out, strings.Repeat("z", 100)))
	assert.Contains(t, out, "First 500 characters were removed")
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "line"
	}
	out := TruncateLines(strings.Join(lines, "\n"), 10)

	assert.Contains(t, out, "[... 90 lines omitted ...]")
	assert.Less(t, len(strings.Split(out, "\n")), 15)
}

func TestTruncateLinesUnderLimit(t *testing.T) {
	input := "a\nb\nc"
	assert.Equal(t, input, TruncateLines(input, 10))
}

func TestTruncateToolOutputUsesPerToolLimits(t *testing.T) {
	// write_file has a much lower character limit than the fallback.
	input := strings.Repeat("x", 5000)
	out := TruncateToolOutput(input, "write_file", nil, nil)
	assert.Contains(t, out, "truncated")

	out = TruncateToolOutput(input, "read_file", nil, nil)
	assert.Equal(t, input, out)
}

func TestTruncateToolOutputCallerOverride(t *testing.T) {
	input := strings.Repeat("x", 200)
	out := TruncateToolOutput(input, "read_file", map[string]int{"read_file": 100}, nil)
	assert.Contains(t, out, "truncated")
}

func TestTruncateToolOutputUnknownToolFallback(t *testing.T) {
	input := strings.Repeat("x", fallbackCharLimit+1000)
	out := TruncateToolOutput(input, "feature_stats", nil, nil)
	assert.Contains(t, out, "truncated")
	assert.Less(t, len(out), len(input))
}
