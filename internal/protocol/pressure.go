package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"dataglove"
)

// ErrNeedMore reports that the buffer holds no complete record yet.
var ErrNeedMore = errors.New("need more data")

const (
	pressureRecordPrefix = "ch0:"
	// DefaultMaxPressureBuffer bounds the bytes kept while waiting for a newline.
	DefaultMaxPressureBuffer = 4096

	maxQuotedBytes = 64
)

var pressureToken = regexp.MustCompile(`ch\d:(\d+)`)

// ParsePressureLine decodes one pressure record without its terminator.
// The record must start with "ch0:" and contain exactly 5 channel tokens.
func ParsePressureLine(line string) (dataglove.RawPressureFrame, error) {
	var frame dataglove.RawPressureFrame

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, pressureRecordPrefix) {
		return frame, fmt.Errorf("%w: record %q does not start with %q", ErrInvalidFormat, clip(line), pressureRecordPrefix)
	}
	matches := pressureToken.FindAllStringSubmatch(line, -1)
	if len(matches) != dataglove.PressureChannels {
		return frame, fmt.Errorf("%w: record %q has %d channel tokens, want %d", ErrInvalidFormat, clip(line), len(matches), dataglove.PressureChannels)
	}
	for i, m := range matches {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return dataglove.RawPressureFrame{}, fmt.Errorf("%w: channel %d %q: %v", ErrInvalidFormat, i, m[1], err)
		}
		frame[i] = v
	}
	return frame, nil
}

// NextPressureRecord extracts the first newline-terminated record from buf.
//
// It returns ErrNeedMore with rest == buf when no full line is present. Blank lines are
// skipped. A rejected line is consumed and reported with ErrInvalidFormat; rest holds the
// bytes after it. A line that is not valid UTF-8 yields ErrDecodeFailure: everything up to
// and including its terminator is discarded and rest resynchronises on the next record.
func NextPressureRecord(buf []byte) (frame dataglove.RawPressureFrame, rest []byte, err error) {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			return frame, buf, ErrNeedMore
		}
		line := buf[:i]
		rest = buf[i+1:]

		if !utf8.Valid(line) {
			return frame, rest, fmt.Errorf("%w: %d buffered bytes discarded, line %q", ErrDecodeFailure, len(buf)-len(rest), clip(string(line)))
		}
		if len(bytes.TrimSpace(line)) == 0 {
			buf = rest
			continue
		}
		frame, err = ParsePressureLine(string(line))
		return frame, rest, err
	}
}

// FormatPressureLine renders frame in the pressure wire format, newline-terminated.
func FormatPressureLine(frame dataglove.RawPressureFrame) string {
	var b strings.Builder
	for i, v := range frame {
		b.WriteString("ch")
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte('\n')
	return b.String()
}

// PressureBuffer accumulates pressure stream bytes across reads. Not safe for concurrent use;
// each pressure source owns one.
type PressureBuffer struct {
	buf []byte
	max int
}

// NewPressureBuffer returns a buffer that discards its content once it grows past max bytes
// without a newline. max <= 0 selects DefaultMaxPressureBuffer.
func NewPressureBuffer(max int) *PressureBuffer {
	if max <= 0 {
		max = DefaultMaxPressureBuffer
	}
	return &PressureBuffer{max: max}
}

// Write appends chunk. It returns ErrDecodeFailure when the buffer overflowed and was cleared.
func (b *PressureBuffer) Write(chunk []byte) error {
	b.buf = append(b.buf, chunk...)
	if len(b.buf) > b.max && bytes.IndexByte(b.buf, '\n') < 0 {
		n := len(b.buf)
		b.Reset()
		return fmt.Errorf("%w: %d bytes without a record terminator discarded", ErrDecodeFailure, n)
	}
	return nil
}

// Next returns the next complete frame. ErrNeedMore means no full line remains; any other
// error means a line was dropped (or the buffer cleared) and the caller should keep calling.
func (b *PressureBuffer) Next() (dataglove.RawPressureFrame, error) {
	frame, rest, err := NextPressureRecord(b.buf)
	b.compact(rest)
	return frame, err
}

// Len reports the number of buffered bytes.
func (b *PressureBuffer) Len() int { return len(b.buf) }

// Reset discards all buffered bytes.
func (b *PressureBuffer) Reset() { b.buf = b.buf[:0] }

// compact keeps only rest, reusing the backing array.
func (b *PressureBuffer) compact(rest []byte) {
	n := copy(b.buf, rest)
	b.buf = b.buf[:n]
}

func clip(s string) string {
	if len(s) <= maxQuotedBytes {
		return s
	}
	return s[:maxQuotedBytes] + "..."
}
