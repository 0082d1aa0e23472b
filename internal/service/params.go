package service

import "time"

// ConnectParams names the sources to attach. Either may be empty, not both.
type ConnectParams struct {
	AngleSource    string
	PressureSource string
}

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CONNECT", "DISCONNECT", "SOURCE_LOST", "CALIBRATION_MIN", ...
}
