package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumebot/lume/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "lume",
		Short: "Discord assistant that relays prompts to a completion service",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start handling prompts",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
