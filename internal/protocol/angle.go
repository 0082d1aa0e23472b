// Package protocol decodes the two line-oriented glove wire formats.
//
// Angle lines look like
//
//	C1=115.412,C2=34.382,...,C14=12.5\n
//
// and pressure records like
//
//	ch0:12ch1:0ch2:511ch3:1023ch4:7\n
//
// Pressure records may arrive split across arbitrary reads; PressureBuffer reassembles them.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dataglove"
)

var (
	// ErrInvalidFormat marks a line that does not match its wire format. The whole line is dropped.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrDecodeFailure marks bytes that are not valid text. The buffer that held them is discarded.
	ErrDecodeFailure = errors.New("decode failure")
)

const (
	angleFieldSep = ","
	angleKVSep    = "="
)

// ParseAngleLine decodes one angle line into its 14 channel values.
// Surrounding whitespace (including the line terminator) is ignored. Field labels are not
// checked; only the value after '=' is, and it must be finite. Any malformed field rejects
// the entire line.
func ParseAngleLine(line string) (dataglove.RawAngleFrame, error) {
	var frame dataglove.RawAngleFrame

	parts := strings.Split(strings.TrimSpace(line), angleFieldSep)
	if len(parts) != dataglove.AngleChannels {
		return frame, fmt.Errorf("%w: want %d fields, got %d", ErrInvalidFormat, dataglove.AngleChannels, len(parts))
	}

	for i, part := range parts {
		_, raw, ok := strings.Cut(part, angleKVSep)
		if !ok {
			return dataglove.RawAngleFrame{}, fmt.Errorf("%w: field %d %q has no %q", ErrInvalidFormat, i+1, part, angleKVSep)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return dataglove.RawAngleFrame{}, fmt.Errorf("%w: field %d %q: %v", ErrInvalidFormat, i+1, part, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dataglove.RawAngleFrame{}, fmt.Errorf("%w: field %d %q is not finite", ErrInvalidFormat, i+1, part)
		}
		frame[i] = v
	}
	return frame, nil
}

// FormatAngleLine renders frame in the angle wire format, newline-terminated.
func FormatAngleLine(frame dataglove.RawAngleFrame) string {
	var b strings.Builder
	for i, v := range frame {
		if i > 0 {
			b.WriteString(angleFieldSep)
		}
		b.WriteString("C")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(angleKVSep)
		b.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
	}
	b.WriteByte('\n')
	return b.String()
}
