package wasd

// DefaultCapacity is the line buffer size used when Options.Capacity is zero.
// One byte is reserved, so lines carry at most DefaultCapacity-1 bytes.
const DefaultCapacity = 64

// DefaultMinLineLength is the shortest line handed to the decoder.
const DefaultMinLineLength = 1

// FeedStats summarises what a single Feed call did with its input.
type FeedStats struct {
	Lines   int // lines delivered to the callback
	Short   int // complete lines skipped for being shorter than the minimum
	Dropped int // bytes discarded because the buffer was full
}

// LineBuffer accumulates bytes into newline-terminated lines using a fixed
// amount of storage. It never grows: once full, further bytes are dropped until
// the next line feed.
//
// LineBuffer is not safe for concurrent use; Session guards it with its mutex.
type LineBuffer struct {
	buf    []byte
	n      int
	minLen int
}

// NewLineBuffer returns a LineBuffer with the given total capacity. The usable
// line length is capacity-1. Lines shorter than minLen are skipped by Feed.
func NewLineBuffer(capacity, minLen int) *LineBuffer {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	if minLen < 1 {
		minLen = DefaultMinLineLength
	}
	return &LineBuffer{
		buf:    make([]byte, capacity),
		minLen: minLen,
	}
}

// Append stores c and reports whether it was accepted. A false return means
// the buffer already holds Cap bytes and c was dropped.
func (b *LineBuffer) Append(c byte) bool {
	if b.n >= len(b.buf)-1 {
		return false
	}
	b.buf[b.n] = c
	b.n++
	return true
}

// Line returns the bytes collected since the last reset. The slice aliases the
// internal storage and is only valid until the next mutation.
func (b *LineBuffer) Line() []byte {
	return b.buf[:b.n]
}

// Len returns the number of buffered bytes.
func (b *LineBuffer) Len() int { return b.n }

// Cap returns the maximum number of bytes a line can hold.
func (b *LineBuffer) Cap() int { return len(b.buf) - 1 }

// Reset discards any partial line.
func (b *LineBuffer) Reset() { b.n = 0 }

// Feed runs p through the line discipline: CR is discarded, LF ends a line and
// anything else is appended. For every complete line at least minLen bytes long
// fn is called with the line contents before Feed continues with the next byte.
// The buffer is reset at every LF whether or not fn was called.
//
// The slice passed to fn must not be retained.
func (b *LineBuffer) Feed(p []byte, fn func(line []byte)) FeedStats {
	var st FeedStats
	for _, c := range p {
		switch c {
		case '\r':
		case '\n':
			if b.n >= b.minLen {
				st.Lines++
				fn(b.buf[:b.n])
			} else {
				st.Short++
			}
			b.n = 0
		default:
			if !b.Append(c) {
				st.Dropped++
			}
		}
	}
	return st
}
