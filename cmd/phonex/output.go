package main

import (
	"errors"

	"github.com/fatih/color"
	"github.com/phon3x/phonex/pkg/stego"
)

var (
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

// hint turns a library error into one line of advice for the operator.
func hint(err error) string {
	var xerr *stego.ExtractionError
	switch {
	case errors.As(err, &xerr) && xerr.OnlyUnavailable():
		return "no backend could read this carrier; is outguess installed?"
	case errors.Is(err, stego.ErrDecryption):
		return "wrong password, or the image was altered"
	case errors.Is(err, stego.ErrIntegrity), errors.Is(err, stego.ErrTruncated):
		return "no intact payload found; wrong password or the image was re-encoded"
	case errors.Is(err, stego.ErrCapacity):
		return "payload too large; use a bigger image or a smaller payload"
	case errors.Is(err, stego.ErrBackendUnavailable):
		return "backend not installed; try --mode spatial"
	case errors.Is(err, stego.ErrBackendTimeout):
		return "backend timed out; raise --timeout"
	case errors.Is(err, stego.ErrUnsupportedCarrier):
		return "carrier format not supported by this backend"
	}
	return ""
}
