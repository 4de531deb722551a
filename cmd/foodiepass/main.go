// Command foodiepass scans a restaurant menu photo and shows it translated,
// either in the terminal or through a local web UI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/foodiepass/internal/config"
)

const appName = "foodiepass"

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// errReported is returned once the user has already been shown a localized
// message, so main only needs to set the exit code.
var errReported = errors.New("failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Scan a menu photo and read it in your language",
		Long: `FoodiePass sends a photo of a restaurant menu to the FoodiePass service,
which recognizes the dishes, translates them and converts their prices.

Configuration comes from the environment (API_URL, SCAN_TIMEOUT, LOCALE, ...)
with an optional YAML file layered on top.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("FOODIEPASS_CONFIG"),
		"YAML config file (env FOODIEPASS_CONFIG)")

	load := func() (*config.Config, error) {
		return config.LoadFile(configPath)
	}

	cmd.AddCommand(
		scanCmd(load),
		serveCmd(load),
		catalogCmd(load, "languages"),
		catalogCmd(load, "currencies"),
		surveysCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}
