package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phon3x/phonex/pkg/stego"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	verbose  bool
	timeout  time.Duration
	outguess string
	quality  int
	fallback string
)

var rootCmd = &cobra.Command{
	Use:   "phonex",
	Short: "Hide encrypted payloads in images",
	Long: `phonex encrypts a payload with a password and hides it in an image.

JPEG output uses OutGuess when it is installed. Without it, or for non-JPEG
covers, payloads go into the spatial domain of a lossless PNG.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		switch stego.Mode(fallback) {
		case stego.ModeSpatial, stego.ModeSpatialRS:
			return nil
		}
		return fmt.Errorf("invalid --fallback-backend %q (want %s or %s)", fallback, stego.ModeSpatial, stego.ModeSpatialRS)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newEngine builds an engine from the global flags. Progress bars are drawn
// only when stderr is a terminal.
func newEngine() *stego.Engine {
	var progress io.Writer
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}
	return stego.NewEngine(stego.Options{
		Logger:       &log.Logger,
		Timeout:      timeout,
		Quality:      quality,
		OutGuessPath: outguess,
		Progress:     progress,
		Fallback:     stego.Mode(fallback),
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", stego.DefaultTimeout, "Time limit for each backend attempt")
	rootCmd.PersistentFlags().StringVar(&outguess, "outguess", "", "Path to the outguess binary (default $"+stego.OutGuessEnvVar+" or PATH)")
	rootCmd.PersistentFlags().StringVar(&fallback, "fallback-backend", string(stego.ModeSpatial), "Backend used when auto mode cannot use OutGuess: spatial or spatial-rs")
	rootCmd.PersistentFlags().IntVar(&quality, "quality", stego.DefaultQuality, "JPEG quality for re-encoded output (75-95)")
}
