package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/phon3x/phonex/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	extractFlags struct {
		Image string
		Pass  string
		Out   string
		Mode  string
	}
)

// previewBytes is how much of a binary payload is shown on a terminal.
const previewBytes = 32

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Recover and decrypt a payload hidden in an image",
	Run: func(cmd *cobra.Command, args []string) {
		mode, err := stego.ParseMode(extractFlags.Mode)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid mode")
		}
		pass, err := getPassphrase(extractFlags.Pass, false)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read passphrase")
		}

		res, err := newEngine().Extract(context.Background(), stego.ExtractArgs{
			CarrierPath: extractFlags.Image,
			Password:    pass,
			Mode:        mode,
		})
		if err != nil {
			log.Fatal().Err(err).Str("hint", hint(err)).Msg("Failed to extract payload")
		}
		log.Debug().Str("backend", res.Backend).Msg("Payload recovered")

		if extractFlags.Out != "" {
			if err := os.WriteFile(extractFlags.Out, res.Payload, 0600); err != nil {
				log.Fatal().Err(err).Msg("Failed to write output file")
			}
			fmt.Fprintf(os.Stderr, "%s %s written to %s\n", successColor("Payload recovered:"), humanize.Bytes(uint64(len(res.Payload))), extractFlags.Out)
			return
		}

		info := stego.DescribePayload(res.Payload)
		if info.Text || !term.IsTerminal(int(os.Stdout.Fd())) {
			os.Stdout.Write(res.Payload)
			return
		}

		// Binary on a terminal: summarise instead of dumping.
		kind := info.Type
		if kind == "" {
			kind = "binary data"
		}
		n := min(previewBytes, len(res.Payload))
		fmt.Printf("%s %s (%s)\n", successColor("Recovered"), kind, humanize.Bytes(uint64(len(res.Payload))))
		fmt.Printf("First %d bytes:  %s\n", n, hex.EncodeToString(res.Payload[:n]))
		if info.Ext != "" {
			fmt.Println(warningColor("Use -o payload" + info.Ext + " to save the payload to a file."))
		} else {
			fmt.Println(warningColor("Use -o to save the payload to a file."))
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractFlags.Image, "image-path", "i", "", "Path to stego image (required)")
	extractCmd.MarkFlagRequired("image-path")
	extractCmd.Flags().StringVarP(&extractFlags.Pass, "passphrase", "p", "", "Passphrase to decrypt the payload (default $"+PassphraseEnvVar+" or prompt)")
	extractCmd.Flags().StringVarP(&extractFlags.Out, "output", "o", "", "Output path for the payload (default stdout)")
	extractCmd.Flags().StringVar(&extractFlags.Mode, "mode", string(stego.ModeAuto), "Backend to try: auto, outguess, jsteg, spatial, spatial-rs")
}
