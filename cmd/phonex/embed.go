package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/phon3x/phonex/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	embedFlags struct {
		Image    string
		Pass     string
		Msg      string
		File     string
		Out      string
		Mode     string
		Fallback bool
		DryRun   bool
	}
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Encrypt a payload and hide it in an image",
	Run: func(cmd *cobra.Command, args []string) {
		hasMsg, err := payloadFromMessage(cmd)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid payload flags")
		}

		mode, err := stego.ParseMode(embedFlags.Mode)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid mode")
		}
		if embedFlags.Fallback {
			mode = stego.Mode(fallback)
		}

		payload, err := readPayload(hasMsg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read payload")
		}

		pass, err := getPassphrase(embedFlags.Pass, true)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read passphrase")
		}
		if len(pass) < minPassphrase {
			fmt.Fprintln(os.Stderr, warningColor(fmt.Sprintf("Warning: passphrases shorter than %d characters are easy to guess", minPassphrase)))
		}

		if embedFlags.Out == "" {
			embedFlags.Out = defaultOutput(embedFlags.Image)
		}

		res, err := newEngine().Embed(context.Background(), stego.EmbedArgs{
			CarrierPath: embedFlags.Image,
			OutputPath:  embedFlags.Out,
			Payload:     payload,
			Password:    pass,
			Mode:        mode,
			DryRun:      embedFlags.DryRun,
		})
		if err != nil {
			log.Fatal().Err(err).Str("hint", hint(err)).Msg("Failed to embed payload")
		}

		if embedFlags.DryRun {
			fmt.Println(successColor("Payload fits."))
		} else {
			fmt.Println(successColor("Payload embedded."))
			fmt.Printf("Output:           %s\n", res.OutputPath)
		}
		fmt.Printf("Backend:          %s\n", infoColor(res.Backend))
		fmt.Printf("Payload:          %s\n", humanize.Bytes(uint64(res.PayloadSize)))
		fmt.Printf("Container:        %s of %s\n", humanize.Bytes(uint64(res.ContainerSize)), humanize.Bytes(uint64(res.Capacity)))
		if !embedFlags.DryRun {
			printSizes(embedFlags.Image, res.OutputPath)
		}
	},
}

// payloadFromMessage reports whether the payload comes from --message rather
// than --file. An explicit empty message is a valid payload.
func payloadFromMessage(cmd *cobra.Command) (bool, error) {
	hasMsg := cmd.Flags().Changed("message")
	hasFile := cmd.Flags().Changed("file")
	switch {
	case hasMsg && hasFile:
		return false, errors.New("message and file flags cannot both be provided")
	case !hasMsg && !hasFile:
		return false, errors.New("one of --message or --file is required")
	}
	return hasMsg, nil
}

func readPayload(fromMessage bool) ([]byte, error) {
	if fromMessage {
		return []byte(embedFlags.Msg), nil
	}
	switch embedFlags.File {
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(embedFlags.File)
	}
}

// defaultOutput puts the stego image next to the cover. The engine fixes the
// extension to match the backend.
func defaultOutput(cover string) string {
	ext := filepath.Ext(cover)
	base := cover[:len(cover)-len(ext)]
	return base + ".stego" + ext
}

func printSizes(cover, stegoPath string) {
	ci, err := os.Stat(cover)
	if err != nil {
		return
	}
	si, err := os.Stat(stegoPath)
	if err != nil {
		return
	}
	change := float64(si.Size()-ci.Size()) / float64(ci.Size()) * 100
	fmt.Printf("Size:             %s -> %s (%+.1f%%)\n", humanize.Bytes(uint64(ci.Size())), humanize.Bytes(uint64(si.Size())), change)
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVarP(&embedFlags.Image, "image-path", "i", "", "Path to cover image (required)")
	embedCmd.MarkFlagRequired("image-path")
	embedCmd.Flags().StringVarP(&embedFlags.Pass, "passphrase", "p", "", "Passphrase to encrypt the payload (default $"+PassphraseEnvVar+" or prompt)")
	embedCmd.Flags().StringVarP(&embedFlags.Msg, "message", "m", "", "Message to hide")
	embedCmd.Flags().StringVarP(&embedFlags.File, "file", "f", "", "Path to file to hide. Use '-' for stdin.")
	embedCmd.Flags().StringVarP(&embedFlags.Out, "output", "o", "", "Output path for the stego image")
	embedCmd.Flags().StringVar(&embedFlags.Mode, "mode", string(stego.ModeAuto), "Backend: auto, outguess, jsteg, spatial, spatial-rs")
	embedCmd.Flags().BoolVar(&embedFlags.Fallback, "fallback", false, "Force the fallback backend (see --fallback-backend)")
	embedCmd.Flags().BoolVar(&embedFlags.DryRun, "dry-run", false, "Check if the payload fits without writing anything")
}
