package ingest

import "bytes"

// lineBuffer reassembles newline-terminated text lines from arbitrary read chunks.
type lineBuffer struct {
	buf []byte
	max int
}

func newLineBuffer(max int) *lineBuffer { return &lineBuffer{max: max} }

// write appends chunk. When the buffer grows past max without a newline it is discarded
// and the number of dropped bytes is returned.
func (b *lineBuffer) write(chunk []byte) int {
	b.buf = append(b.buf, chunk...)
	if len(b.buf) > b.max && bytes.IndexByte(b.buf, '\n') < 0 {
		n := len(b.buf)
		b.buf = b.buf[:0]
		return n
	}
	return 0
}

// next pops the next complete line with surrounding whitespace removed. The returned
// slice is a copy and stays valid after further writes.
func (b *lineBuffer) next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line := append([]byte(nil), bytes.TrimSpace(b.buf[:i])...)
	n := copy(b.buf, b.buf[i+1:])
	b.buf = b.buf[:n]
	return line, true
}

// reset discards everything buffered.
func (b *lineBuffer) reset() { b.buf = b.buf[:0] }
