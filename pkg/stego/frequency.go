package stego

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const BackendOutGuess = "outguess"

// frequencyCapacityRatio is the documented ceiling of the external tool,
// as a share of the carrier's file size.
const frequencyCapacityRatio = 0.15

// toolWaitDelay bounds how long a killed tool may keep its pipes open.
const toolWaitDelay = 2 * time.Second

// FrequencyBackend delegates to an external F5-style DCT tool (OutGuess).
// The tool does its own matrix encoding and error correction; the password
// is handed to it as the embedding key.
type FrequencyBackend struct {
	binary string
	logger zerolog.Logger
}

func NewFrequencyBackend(o Options) *FrequencyBackend {
	return &FrequencyBackend{
		binary: o.outguessPath(),
		logger: o.logger(),
	}
}

func (f *FrequencyBackend) Name() string { return BackendOutGuess }

func (f *FrequencyBackend) Available() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, f.binary, err)
	}
	return nil
}

func (f *FrequencyBackend) Capacity(carrierPath string) (int, error) {
	if !isJPEG(carrierPath) {
		return 0, fmt.Errorf("%w: %s is not a JPEG", ErrUnsupportedCarrier, carrierPath)
	}
	fi, err := os.Stat(carrierPath)
	if err != nil {
		return 0, err
	}
	return int(float64(fi.Size()) * frequencyCapacityRatio), nil
}

func (f *FrequencyBackend) Embed(ctx context.Context, carrierPath, outputPath string, container []byte, password string) (string, error) {
	if err := f.Available(); err != nil {
		return "", err
	}
	capacity, err := f.Capacity(carrierPath)
	if err != nil {
		return "", err
	}
	if len(container) > capacity {
		return "", fmt.Errorf("%w: %d bytes, estimated room %d", ErrBackendCapacity, len(container), capacity)
	}

	work, err := os.MkdirTemp("", "phonex-outguess-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(work)

	dataPath := filepath.Join(work, "payload.dat")
	if err := os.WriteFile(dataPath, container, 0600); err != nil {
		return "", err
	}
	stegoPath := filepath.Join(work, "stego.jpg")

	res := f.run(ctx, "-k", password, "-d", dataPath, carrierPath, stegoPath)
	if err := res.err(); err != nil {
		return "", err
	}

	outputPath = withExt(outputPath, ".jpg", ".jpeg")
	err = writeFileAtomic(outputPath, func(w io.Writer) error {
		src, err := os.Open(stegoPath)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func (f *FrequencyBackend) Extract(ctx context.Context, carrierPath, password string) ([]byte, error) {
	if err := f.Available(); err != nil {
		return nil, err
	}
	if !isJPEG(carrierPath) {
		return nil, fmt.Errorf("%w: %s is not a JPEG", ErrUnsupportedCarrier, carrierPath)
	}

	work, err := os.MkdirTemp("", "phonex-outguess-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	dataPath := filepath.Join(work, "payload.dat")
	res := f.run(ctx, "-r", "-k", password, carrierPath, dataPath)
	if err := res.err(); err != nil {
		return nil, err
	}
	return os.ReadFile(dataPath)
}

type toolStatus int

const (
	toolOK toolStatus = iota
	toolMissing
	toolFailed
	toolTimedOut
)

// toolResult is the tagged outcome of one tool invocation; raw exit codes
// never leave this file.
type toolResult struct {
	status toolStatus
	stderr string
	cause  error
}

func (r toolResult) err() error {
	switch r.status {
	case toolOK:
		return nil
	case toolMissing:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, r.cause)
	case toolTimedOut:
		return fmt.Errorf("%w: %v", ErrBackendTimeout, r.cause)
	}
	if looksLikeCapacity(r.stderr) {
		return fmt.Errorf("%w: %s", ErrBackendCapacity, r.stderr)
	}
	if r.stderr != "" {
		return fmt.Errorf("%w: %v: %s", ErrBackendFailed, r.cause, r.stderr)
	}
	return fmt.Errorf("%w: %v", ErrBackendFailed, r.cause)
}

func looksLikeCapacity(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "too big") ||
		strings.Contains(s, "too large") ||
		strings.Contains(s, "too long") ||
		strings.Contains(s, "capacity")
}

func (f *FrequencyBackend) run(ctx context.Context, args ...string) toolResult {
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.WaitDelay = toolWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// The key is the password; never log the full argument list.
	f.logger.Debug().Str("tool", f.binary).Bool("extract", args[0] == "-r").Msg("Running external tool")

	err := cmd.Run()
	msg := strings.TrimSpace(stderr.String())
	switch {
	case err == nil:
		return toolResult{status: toolOK}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return toolResult{status: toolTimedOut, stderr: msg, cause: ctx.Err()}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return toolResult{status: toolMissing, stderr: msg, cause: err}
	case ctx.Err() != nil:
		return toolResult{status: toolFailed, stderr: msg, cause: ctx.Err()}
	default:
		return toolResult{status: toolFailed, stderr: msg, cause: err}
	}
}
