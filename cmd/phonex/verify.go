package main

import (
	"context"
	"fmt"

	"github.com/phon3x/phonex/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verifyFlags struct {
		Image string
		Pass  string
	}
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that a stego image carries an intact payload",
	Long:  `Runs a full extraction, including the CRC check and decryption, without writing the payload anywhere.`,
	Run: func(cmd *cobra.Command, args []string) {
		pass, err := getPassphrase(verifyFlags.Pass, false)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read passphrase")
		}

		res, err := newEngine().Inspect(context.Background(), stego.ExtractArgs{
			CarrierPath: verifyFlags.Image,
			Password:    pass,
		})
		if err != nil {
			fmt.Println(errorColor("Verification failed."))
			log.Fatal().Err(err).Str("hint", hint(err)).Msg("Verification failed")
		}

		fmt.Println(successColor("Image verification successful!"))
		fmt.Printf("Backend:          %s\n", res.Backend)
		fmt.Printf("Payload Size:     %d bytes\n", res.PayloadSize)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.Image, "image-path", "i", "", "Path to image (required)")
	verifyCmd.MarkFlagRequired("image-path")
	verifyCmd.Flags().StringVarP(&verifyFlags.Pass, "passphrase", "p", "", "Passphrase used to embed")
}
