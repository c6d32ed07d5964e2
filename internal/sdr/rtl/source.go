package rtl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rf-lab/fobwatch/internal/sdr"
	"github.com/rf-lab/fobwatch/internal/sdr/driver"
)

const (
	Runtime = "rtl_sdr"
	Device  = "rtl-sdr"

	// stderrTailSize is the number of recent stderr lines kept for
	// attaching to read errors.
	stderrTailSize = 8
)

// WithLogger sets the logger for the source.
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(
			slog.String("device", Device),
			slog.Int("deviceIndex", s.config.DeviceIndex),
		)
	}
}

// Source streams fixed-size blocks of complex baseband samples from an
// RTL-SDR dongle by running the `rtl_sdr` tool and framing its raw
// unsigned 8-bit I/Q output. It implements sdr.Source.
type Source struct {
	config *Config
	logger *slog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	wg     sync.WaitGroup

	buf       []byte
	delivered atomic.Uint64

	mu         sync.Mutex
	stderrTail []string

	closeOnce sync.Once
}

// New creates a Source for the given capture configuration with a discard
// logger.
func New(config *Config, options ...func(s *Source)) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := Source{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Open locates the rtl_sdr runtime, starts it with the configured tuning
// parameters and prepares the sample stream. Device-level failures (missing
// binary, exec failure) are reported as sdr.ErrHardwareUnavailable; failures
// the tool itself reports only surface on the first Read, once the process
// has exited without delivering samples.
func (s *Source) Open(ctx context.Context) error {
	if s.cmd != nil {
		return fmt.Errorf("source is already open")
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return fmt.Errorf("%w: finding %s runtime: %w", sdr.ErrHardwareUnavailable, Runtime, err)
	}

	args, err := s.config.Args()
	if err != nil {
		return fmt.Errorf("%w: building args: %w", sdr.ErrHardwareUnavailable, err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.cancel()
		return fmt.Errorf("%w: creating stdout pipe: %w", sdr.ErrHardwareUnavailable, err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.cancel()
		return fmt.Errorf("%w: creating stderr pipe: %w", sdr.ErrHardwareUnavailable, err)
	}

	if err = cmd.Start(); err != nil {
		s.cancel()
		return fmt.Errorf("%w: starting %s: %w", sdr.ErrHardwareUnavailable, Runtime, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.buf = make([]byte, 2*s.config.BlockSize)

	s.wg.Add(1)
	go s.handleStderr(stderr)

	s.logger.Info("sample source started", slog.String("cmd", s.config.String()))
	return nil
}

// Read blocks until one full block of samples has been delivered by the
// capture process and converts it to complex form. A failure before any
// block was delivered indicates the device could not be opened; any later
// failure is an acquisition error. Both are fatal to the stream.
func (s *Source) Read(ctx context.Context) (*sdr.SampleBlock, error) {
	if s.cmd == nil {
		return nil, fmt.Errorf("source is not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		base := sdr.ErrAcquisition
		if s.delivered.Load() == 0 {
			base = sdr.ErrHardwareUnavailable
		}
		if tail := s.tail(); tail != "" {
			return nil, fmt.Errorf("%w: reading samples: %w (%s: %s)", base, err, Runtime, tail)
		}
		return nil, fmt.Errorf("%w: reading samples: %w", base, err)
	}

	samples := make([]complex128, s.config.BlockSize)
	for i := range samples {
		// rtl_sdr emits unsigned 8-bit I/Q centered on 127.5
		re := (float64(s.buf[2*i]) - 127.5) / 127.5
		im := (float64(s.buf[2*i+1]) - 127.5) / 127.5
		samples[i] = complex(re, im)
	}

	block := sdr.SampleBlock{
		Timestamp:  time.Now().Add(-s.config.BlockDuration()),
		SampleRate: s.config.SampleRate,
		Samples:    samples,
	}

	s.delivered.Add(1)
	return &block, nil
}

// Close stops the capture process and releases the stream. Idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd == nil {
			return
		}

		s.cancel()
		if err := s.cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			// The process is killed on cancel; a non-zero exit here is the
			// expected way down, not a close failure.
			s.logger.Debug(fmt.Sprintf("%s exited: %s", Runtime, err))
		}
		s.wg.Wait()

		s.logger.Info("sample source closed",
			slog.Uint64("blocksDelivered", s.delivered.Load()))
	})

	return nil
}

// handleStderr relays tool diagnostics to the logger and keeps a short tail
// for error context.
func (s *Source) handleStderr(stderr io.Reader) {
	defer s.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", Runtime, line))

		s.mu.Lock()
		s.stderrTail = append(s.stderrTail, line)
		if len(s.stderrTail) > stderrTailSize {
			s.stderrTail = s.stderrTail[1:]
		}
		s.mu.Unlock()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		s.logger.Warn(fmt.Sprintf("error reading stderr: %s", err))
	}
}

func (s *Source) tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.stderrTail, "; ")
}
