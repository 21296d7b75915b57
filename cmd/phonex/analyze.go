package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/phon3x/phonex/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	analyzeFlags struct {
		Cover   string
		Stego   string
		Heatmap string
		Payload bool
		Pass    string
	}
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Measure how much embedding changed a cover image",
	Long: `Compares a cover with its stego image channel by channel. Reports PSNR,
the share of pixels touched and how many embedding bits flipped. With
--payload the stego image is also decoded so flips can be related to the
number of bits the payload occupies.`,
	Run: func(cmd *cobra.Command, args []string) {
		var progress io.Writer
		if term.IsTerminal(int(os.Stderr.Fd())) {
			progress = os.Stderr
		}
		result, err := stego.Analyze(&stego.AnalyzeArgs{
			CoverPath:   analyzeFlags.Cover,
			StegoPath:   analyzeFlags.Stego,
			HeatmapPath: analyzeFlags.Heatmap,
			Progress:    progress,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}

		fmt.Printf("%s %s\n", infoColor("Distortion:"), psnrVerdict(result.PSNR))
		fmt.Printf("PSNR:             %s\n", formatPSNR(result.PSNR))
		fmt.Printf("MSE:              %.4f\n", result.MSE)
		fmt.Printf("Pixels touched:   %s of %s (%.3f%%)\n",
			humanize.Comma(int64(result.ChangedPixels)), humanize.Comma(int64(result.Pixels)), result.ChangedShare()*100)
		fmt.Printf("Bits flipped:     %s of %s slots\n",
			humanize.Comma(int64(result.SlotFlips)), humanize.Comma(int64(result.Slots)))

		if analyzeFlags.Payload {
			reportPayloadFlips(result)
		}
		if analyzeFlags.Heatmap != "" {
			fmt.Printf("Heatmap:          %s\n", analyzeFlags.Heatmap)
		}
	},
}

// reportPayloadFlips decodes the stego image and relates the flip count to
// the slots its container occupies.
func reportPayloadFlips(result *stego.AnalysisResult) {
	pass, err := getPassphrase(analyzeFlags.Pass, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read passphrase")
	}
	info, err := newEngine().Inspect(context.Background(), stego.ExtractArgs{
		CarrierPath: analyzeFlags.Stego,
		Password:    pass,
	})
	if err != nil {
		log.Fatal().Err(err).Str("hint", hint(err)).Msg("Failed to decode payload")
	}

	used := stego.SlotsUsed(info.Backend, info.ContainerSize)
	if used == 0 {
		fmt.Printf("Payload:          %s via %s, not stored in pixel slots\n", humanize.Bytes(uint64(info.ContainerSize)), info.Backend)
		return
	}
	share := result.FlipShare(used)
	fmt.Printf("Payload slots:    %s (%s container via %s)\n", humanize.Comma(int64(used)), humanize.Bytes(uint64(info.ContainerSize)), info.Backend)
	fmt.Printf("Flips per slot:   %.3f\n", share)
	if share > 1 {
		fmt.Println(warningColor("More bits flipped than the payload wrote; the image was changed after embedding."))
	}
}

func formatPSNR(psnr float64) string {
	if math.IsInf(psnr, 1) {
		return "identical"
	}
	return fmt.Sprintf("%.2f dB", psnr)
}

func psnrVerdict(psnr float64) string {
	switch {
	case math.IsInf(psnr, 1):
		return successColor("none")
	case psnr >= 40:
		return successColor("invisible")
	case psnr >= 30:
		return warningColor("hard to see")
	default:
		return errorColor("visible")
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFlags.Cover, "cover", "c", "", "Path to the cover image (required)")
	analyzeCmd.MarkFlagRequired("cover")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Stego, "stego", "s", "", "Path to the stego image (required)")
	analyzeCmd.MarkFlagRequired("stego")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Heatmap, "heatmap", "d", "", "Write a PNG of the changed pixels to this path")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.Payload, "payload", false, "Decode the payload and relate flips to the bits it occupies")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Pass, "passphrase", "p", "", "Passphrase for --payload (default $"+PassphraseEnvVar+" or prompt)")
}
