package sdr

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrHardwareUnavailable is returned when the capture device cannot be
	// opened or configured: missing runtime binary, device busy, bad
	// parameters or insufficient permissions. Fatal at startup.
	ErrHardwareUnavailable = errors.New("hardware unavailable")

	// ErrAcquisition is returned on an I/O failure mid-stream. A torn sample
	// stream cannot be resumed without risking corrupted power estimates,
	// so callers must treat it as fatal.
	ErrAcquisition = errors.New("acquisition failure")
)

// SampleBlock is one fixed-size chunk of complex baseband (I/Q) samples.
// Blocks are immutable once produced and owned transiently by the pipeline
// stage processing them.
type SampleBlock struct {
	Timestamp  time.Time    // Acquisition start of the block
	SampleRate int          // Hz in effect when the block was captured
	Samples    []complex128 // I/Q pairs, fixed length per source
}

// Duration returns the time span the block covers at its sample rate.
func (b *SampleBlock) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Source is the minimal capability interface over SDR hardware. Implementations
// wrap the vendor driver/tooling; consumers never touch the hardware directly,
// which keeps the detection pipeline testable with a synthetic source.
type Source interface {
	// Open configures and starts acquisition. Returns an error wrapping
	// ErrHardwareUnavailable if the device cannot be opened.
	Open(ctx context.Context) error

	// Read blocks until one fixed-size sample block is available. Returns an
	// error wrapping ErrAcquisition on driver I/O failure, or the context
	// error if acquisition was cancelled.
	Read(ctx context.Context) (*SampleBlock, error)

	// Close releases the device. Safe to call multiple times.
	Close() error
}
