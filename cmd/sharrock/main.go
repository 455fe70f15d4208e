// Command sharrock serves the example Sharrock applications and talks to
// running servers through the client package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axilent/sharrock/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sharrock",
	Short: "Versioned, self-describing RPC and REST services",
	Long: `sharrock exposes declared services over HTTP and calls them remotely.

Server:
  sharrock serve                 # serve the example applications
  sharrock spec --yaml           # print the OpenAPI document

Client:
  sharrock dir --url http://localhost:8000
  sharrock describe helloworld --app sharrock_example --api-version 1.0
  sharrock call helloworld -p name=Loren --app sharrock_example --api-version 1.0`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
}

// loadConfig reads --config, or returns the defaults when no file is given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
