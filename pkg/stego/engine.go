package stego

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects a backend explicitly, or lets the engine decide.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeOutGuess  Mode = BackendOutGuess
	ModeJsteg     Mode = BackendJsteg
	ModeSpatial   Mode = BackendSpatial
	ModeSpatialRS Mode = BackendSpatialRS
)

var modes = []Mode{ModeAuto, ModeOutGuess, ModeJsteg, ModeSpatial, ModeSpatialRS}

// ParseMode accepts the mode names listed by Modes. Empty means auto.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeAuto, nil
	}
	for _, m := range modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want one of %s)", s, strings.Join(Modes(), ", "))
}

func Modes() []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// Engine picks backends on embed and auto-detects them on extract. It holds
// no per-operation state and is safe for concurrent use on distinct files.
type Engine struct {
	backends []Backend
	logger   zerolog.Logger
	timeout  time.Duration
	fallback Mode
}

func NewEngine(o Options) *Engine {
	backends := o.Backends
	if len(backends) == 0 {
		backends = DefaultBackends(o)
	}
	return &Engine{
		backends: backends,
		logger:   o.logger(),
		timeout:  o.timeout(),
		fallback: o.fallback(),
	}
}

// Backends returns the backends in detection order.
func (e *Engine) Backends() []Backend {
	return append([]Backend(nil), e.backends...)
}

func (e *Engine) backend(name string) (Backend, bool) {
	for _, b := range e.backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// selectForEmbed applies the embed policy: OutGuess when it is installed and
// the carrier is a JPEG, the fallback backend otherwise. A forced mode uses
// exactly that backend.
func (e *Engine) selectForEmbed(mode Mode, carrierPath string) (Backend, error) {
	if mode == ModeAuto || mode == "" {
		if b, ok := e.backend(BackendOutGuess); ok {
			err := b.Available()
			if err == nil && !isJPEG(carrierPath) {
				err = fmt.Errorf("%w: %s is not a JPEG", ErrUnsupportedCarrier, carrierPath)
			}
			if err == nil {
				return b, nil
			}
			e.logger.Debug().Err(err).Str("fallback", string(e.fallback)).Msg("Frequency backend skipped")
		}
		mode = e.fallback
	}

	b, ok := e.backend(string(mode))
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrBackendUnavailable, mode)
	}
	if err := b.Available(); err != nil {
		return nil, err
	}
	return b, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) opLogger(op string) zerolog.Logger {
	return e.logger.With().Str("op", op).Str("id", uuid.NewString()).Logger()
}

type EmbedArgs struct {
	CarrierPath string
	OutputPath  string
	Payload     []byte
	Password    string
	Mode        Mode
	// DryRun stops after the capacity check and writes nothing.
	DryRun bool
}

type EmbedResult struct {
	Backend       string
	OutputPath    string
	PayloadSize   int
	ContainerSize int
	Capacity      int
}

// Embed encrypts the payload, frames it and hides it with the selected
// backend. Nothing is written unless the whole operation succeeds.
func (e *Engine) Embed(ctx context.Context, args EmbedArgs) (*EmbedResult, error) {
	logger := e.opLogger("embed")

	if args.Password == "" {
		return nil, ErrEmptyPassword
	}
	b, err := e.selectForEmbed(args.Mode, args.CarrierPath)
	if err != nil {
		return nil, err
	}

	capacity, err := b.Capacity(args.CarrierPath)
	if err != nil {
		return nil, err
	}
	need := PackedSize(len(args.Payload))
	res := &EmbedResult{
		Backend:       b.Name(),
		OutputPath:    args.OutputPath,
		PayloadSize:   len(args.Payload),
		ContainerSize: need,
		Capacity:      capacity,
	}

	logger.Debug().
		Str("backend", b.Name()).
		Int("payload", len(args.Payload)).
		Int("container", need).
		Int("capacity", capacity).
		Msg("Capacity check")

	if need > capacity {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %s offers %d", ErrCapacity, args.CarrierPath, need, b.Name(), capacity)
	}
	if args.DryRun {
		return res, nil
	}

	sealed, err := Encrypt(args.Payload, args.Password)
	if err != nil {
		return nil, err
	}
	container, err := Pack(sealed)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, err := b.Embed(ctx, args.CarrierPath, args.OutputPath, container, args.Password)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrBackendTimeout) {
			err = fmt.Errorf("%w: %v", ErrBackendTimeout, err)
		}
		return nil, err
	}
	res.OutputPath = out

	logger.Info().Str("backend", b.Name()).Str("output", out).Msg("Embedded payload")
	return res, nil
}

type ExtractArgs struct {
	CarrierPath string
	Password    string
	// Mode restricts detection to one backend; auto tries them all.
	Mode Mode
}

type ExtractResult struct {
	Backend   string
	Payload   []byte
	Container *Container
}

// Extract tries each backend in order until one yields a container that
// passes the CRC check and decrypts. Failed attempts are logged, not
// returned, unless every backend fails.
func (e *Engine) Extract(ctx context.Context, args ExtractArgs) (*ExtractResult, error) {
	logger := e.opLogger("extract")

	if args.Password == "" {
		return nil, ErrEmptyPassword
	}

	candidates := e.backends
	if args.Mode != ModeAuto && args.Mode != "" {
		b, ok := e.backend(string(args.Mode))
		if !ok {
			return nil, fmt.Errorf("%w: %s is not configured", ErrBackendUnavailable, args.Mode)
		}
		candidates = []Backend{b}
	}

	var attempts []Attempt
	for _, b := range candidates {
		res, err := e.try(ctx, b, args)
		if err == nil {
			logger.Info().Str("backend", b.Name()).Int("bytes", len(res.Payload)).Msg("Extracted payload")
			return res, nil
		}
		logger.Debug().Str("backend", b.Name()).Err(err).Msg("Backend attempt failed")
		attempts = append(attempts, Attempt{Backend: b.Name(), Err: err})
	}
	return nil, &ExtractionError{Attempts: attempts}
}

func (e *Engine) try(ctx context.Context, b Backend, args ExtractArgs) (*ExtractResult, error) {
	if err := b.Available(); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	raw, err := b.Extract(ctx, args.CarrierPath, args.Password)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrBackendTimeout) {
			err = fmt.Errorf("%w: %v", ErrBackendTimeout, err)
		}
		return nil, err
	}
	c, err := Open(raw)
	if err != nil {
		return nil, err
	}
	payload, err := Decrypt(c.Sealed(), args.Password)
	if err != nil {
		return nil, err
	}
	return &ExtractResult{Backend: b.Name(), Payload: payload, Container: c}, nil
}

type InspectResult struct {
	Backend       string
	ContainerSize int
	PayloadSize   int
	Payload       PayloadInfo
}

// Inspect runs a full extraction but only reports what was found.
func (e *Engine) Inspect(ctx context.Context, args ExtractArgs) (*InspectResult, error) {
	res, err := e.Extract(ctx, args)
	if err != nil {
		return nil, err
	}
	return &InspectResult{
		Backend:       res.Backend,
		ContainerSize: res.Container.Size(),
		PayloadSize:   len(res.Payload),
		Payload:       DescribePayload(res.Payload),
	}, nil
}

// CapacityReport describes one backend against one carrier.
type CapacityReport struct {
	Backend string
	// Container is the room in container bytes; MaxPayload the largest
	// plaintext that still fits after padding and framing.
	Container  int
	MaxPayload int
	Err        error
}

func (e *Engine) Capacity(carrierPath string) []CapacityReport {
	reports := make([]CapacityReport, 0, len(e.backends))
	for _, b := range e.backends {
		r := CapacityReport{Backend: b.Name()}
		if err := b.Available(); err != nil {
			r.Err = err
		} else if n, err := b.Capacity(carrierPath); err != nil {
			r.Err = err
		} else {
			r.Container = n
			r.MaxPayload = MaxPayload(n)
		}
		reports = append(reports, r)
	}
	return reports
}

// MaxPayload is the largest plaintext whose container fits in n bytes.
func MaxPayload(n int) int {
	blocks := (n - HeaderSize) / IVSize
	if blocks <= 0 {
		return 0
	}
	return blocks*IVSize - 1
}
