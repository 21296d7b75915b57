package stego

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Backend hides container bytes in a carrier image and gets them back.
// Capacity is expressed in container bytes.
type Backend interface {
	Name() string
	// Available returns nil when the backend can run on this host.
	Available() error
	Capacity(carrierPath string) (int, error)
	// Embed writes the stego image and returns the path actually written,
	// which may differ from outputPath in its extension.
	Embed(ctx context.Context, carrierPath, outputPath string, container []byte, password string) (string, error)
	Extract(ctx context.Context, carrierPath, password string) ([]byte, error)
}

const (
	DefaultQuality = 90
	DefaultTimeout = 2 * time.Minute
	OutGuessEnvVar = "PHONEX_OUTGUESS"
)

// Options configures an Engine and the default backends it builds.
type Options struct {
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	// Timeout bounds each backend attempt. Zero means DefaultTimeout,
	// negative disables the bound.
	Timeout time.Duration
	// Quality is the JPEG quality of re-encoded output (75-95).
	Quality int
	// OutGuessPath overrides the external tool; defaults to $PHONEX_OUTGUESS
	// and then "outguess" on PATH.
	OutGuessPath string
	// Progress receives progress bars; nil discards them.
	Progress io.Writer
	// Backends replaces the default backend list, in detection order.
	Backends []Backend
	// Fallback is the backend auto mode embeds with when OutGuess cannot
	// be used. Defaults to ModeSpatial; ModeSpatialRS survives isolated
	// bit errors at the cost of a third of the capacity.
	Fallback Mode
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return log.Logger
}

func (o Options) timeout() time.Duration {
	if o.Timeout == 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) quality() int {
	q := o.Quality
	if q == 0 {
		q = DefaultQuality
	}
	return min(95, max(75, q))
}

func (o Options) fallback() Mode {
	if o.Fallback == "" || o.Fallback == ModeAuto {
		return ModeSpatial
	}
	return o.Fallback
}

func (o Options) outguessPath() string {
	if o.OutGuessPath != "" {
		return o.OutGuessPath
	}
	if env := os.Getenv(OutGuessEnvVar); env != "" {
		return env
	}
	return "outguess"
}

func (o Options) progress() io.Writer {
	if o.Progress == nil {
		return io.Discard
	}
	return o.Progress
}

// DefaultBackends returns every backend in auto-detection order: the
// frequency-domain ones first, then the spatial ones.
func DefaultBackends(o Options) []Backend {
	return []Backend{
		NewFrequencyBackend(o),
		NewCoefficientBackend(o),
		NewSpatialBackend(o),
		NewSpatialRSBackend(o),
	}
}

func newBar(w io.Writer, total int, desc string) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(false),
	)
}

// withExt swaps the extension of path unless it already is one of allowed.
func withExt(path string, allowed ...string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return path
		}
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + allowed[0]
}
