package wasd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(b *LineBuffer, input string) ([]string, FeedStats) {
	var lines []string
	st := b.Feed([]byte(input), func(line []byte) {
		lines = append(lines, string(line))
	})
	return lines, st
}

func TestLineBuffer_Append(t *testing.T) {
	t.Parallel()

	b := NewLineBuffer(4, 1)
	require.Equal(t, 3, b.Cap())

	assert.True(t, b.Append('a'))
	assert.True(t, b.Append('b'))
	assert.True(t, b.Append('c'))
	assert.False(t, b.Append('d'), "fourth byte must be dropped")
	assert.Equal(t, "abc", string(b.Line()))

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.True(t, b.Append('x'))
}

func TestLineBuffer_Defaults(t *testing.T) {
	t.Parallel()

	b := NewLineBuffer(0, 0)
	assert.Equal(t, DefaultCapacity-1, b.Cap())

	lines, st := collect(b, "\nW\n")
	assert.Equal(t, []string{"W"}, lines)
	assert.Equal(t, 1, st.Short)
}

func TestLineBuffer_Feed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		minLen  int
		input   string
		lines   []string
		short   int
		dropped int
	}{
		{name: "single line", minLen: 1, input: "W1\n", lines: []string{"W1"}},
		{name: "carriage return stripped", minLen: 1, input: "W1\r\n", lines: []string{"W1"}},
		{name: "carriage return mid line", minLen: 1, input: "W\r1\n", lines: []string{"W1"}},
		{name: "no terminator", minLen: 1, input: "W1"},
		{name: "empty line skipped", minLen: 1, input: "\n\r\n", short: 2},
		{name: "several lines", minLen: 1, input: ".\nW1\nQ9\nA0\n", lines: []string{".", "W1", "Q9", "A0"}},
		{name: "min length two skips bare key", minLen: 2, input: "W\nA1\n", lines: []string{"A1"}, short: 1},
		{name: "min length one keeps bare key", minLen: 1, input: "W\n", lines: []string{"W"}},
		{
			name:    "overflow truncates",
			minLen:  1,
			input:   "W1" + strings.Repeat("x", 70) + "\nD1\n",
			lines:   []string{"W1" + strings.Repeat("x", 61), "D1"},
			dropped: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewLineBuffer(DefaultCapacity, tt.minLen)
			lines, st := collect(b, tt.input)
			assert.Equal(t, tt.lines, lines)
			assert.Equal(t, len(tt.lines), st.Lines)
			assert.Equal(t, tt.short, st.Short)
			assert.Equal(t, tt.dropped, st.Dropped)
		})
	}
}

func TestLineBuffer_FeedAcrossChunks(t *testing.T) {
	t.Parallel()

	b := NewLineBuffer(DefaultCapacity, 1)
	var lines []string
	fn := func(line []byte) { lines = append(lines, string(line)) }

	b.Feed([]byte("W"), fn)
	assert.Empty(t, lines)
	assert.Equal(t, 1, b.Len())

	b.Feed([]byte("1\nA"), fn)
	b.Feed([]byte("0\r"), fn)
	b.Feed([]byte("\n"), fn)
	assert.Equal(t, []string{"W1", "A0"}, lines)
	assert.Equal(t, 0, b.Len())
}

func TestLineBuffer_OverflowRecoversAtNewline(t *testing.T) {
	t.Parallel()

	b := NewLineBuffer(8, 1)
	lines, st := collect(b, strings.Repeat("z", 100))
	assert.Empty(t, lines)
	assert.Equal(t, 7, b.Len())
	assert.Equal(t, 93, st.Dropped)

	lines, st = collect(b, "\nS1\n")
	assert.Equal(t, []string{"zzzzzzz", "S1"}, lines)
	assert.Zero(t, st.Dropped)
}
