package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Report which backends can run on this host",
	Run: func(cmd *cobra.Command, args []string) {
		for _, b := range newEngine().Backends() {
			if err := b.Available(); err != nil {
				fmt.Printf("%-12s %s  %v\n", b.Name(), errorColor("missing"), err)
				continue
			}
			fmt.Printf("%-12s %s\n", b.Name(), successColor("ok"))
		}
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
