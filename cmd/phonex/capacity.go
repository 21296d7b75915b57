package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity [image-path]",
	Short: "Show how much each backend can hide in an image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reports := newEngine().Capacity(args[0])

		wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(wtr, "Backend\tContainer\tMax Payload\tStatus")
		fmt.Fprintln(wtr, "-------\t---------\t-----------\t------")
		for _, r := range reports {
			if r.Err != nil {
				fmt.Fprintf(wtr, "%s\t-\t-\t%s\n", r.Backend, r.Err)
				continue
			}
			fmt.Fprintf(wtr, "%s\t%s\t%s\t%s\n", r.Backend,
				humanize.Bytes(uint64(r.Container)),
				humanize.Comma(int64(r.MaxPayload))+" B",
				"ok")
		}
		wtr.Flush()
	},
}

func init() {
	rootCmd.AddCommand(capacityCmd)
}
