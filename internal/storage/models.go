package storage

import (
	"time"
)

// Session records one monitoring run: which device was listening, when it
// started and with what configuration.
type Session struct {
	ID         string    // UUID assigned at creation
	StartTime  time.Time // When the run began
	DeviceType string    // e.g. "rtl-sdr"
	DeviceID   string    // Device index or serial
	Config     *string   // Optional capture configuration in JSON format
}

// Detection is one accepted fob-press event.
type Detection struct {
	ID        int64
	SessionID string
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	Peak      float64
}

// TracePoint is one downsampled power measurement, one per sample block,
// kept for offline survey rendering.
type TracePoint struct {
	Timestamp time.Time
	Mean      float64
	Peak      float64
}
