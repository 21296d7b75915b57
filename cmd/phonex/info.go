package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/phon3x/phonex/pkg/stego"
	"github.com/spf13/cobra"
)

var (
	infoFlags struct {
		Image string
		Pass  string
	}
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Inspect a stego image and describe its payload",
	Long:  `Extracts the hidden container and reports the backend that carried it, the container and payload sizes, and the payload type.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := getPassphrase(infoFlags.Pass, false)
		if err != nil {
			return err
		}

		info, err := newEngine().Inspect(context.Background(), stego.ExtractArgs{
			CarrierPath: infoFlags.Image,
			Password:    pass,
		})
		if err != nil {
			return fmt.Errorf("failed to get info from %s: %w", infoFlags.Image, err)
		}

		kind := info.Payload.Type
		switch {
		case kind != "":
		case info.Payload.Text:
			kind = "text"
		default:
			kind = "binary data"
		}

		fmt.Println("Stego Container Information:")
		fmt.Println("----------------------------")
		fmt.Printf("Backend:          %s\n", info.Backend)
		fmt.Printf("Container Size:   %s (%d bytes)\n", humanize.Bytes(uint64(info.ContainerSize)), info.ContainerSize)
		fmt.Printf("Payload Size:     %s (%d bytes)\n", humanize.Bytes(uint64(info.PayloadSize)), info.PayloadSize)
		fmt.Printf("Payload Type:     %s\n", kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVarP(&infoFlags.Image, "image-path", "i", "", "Path to stego image (required)")
	infoCmd.MarkFlagRequired("image-path")
	infoCmd.Flags().StringVarP(&infoFlags.Pass, "passphrase", "p", "", "Passphrase used to embed")
}
