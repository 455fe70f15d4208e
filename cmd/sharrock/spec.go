package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/axilent/sharrock/modelstore"
)

var (
	specOut  string
	specYAML bool
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Print the OpenAPI document of the example applications",
	RunE:  runSpec,
}

func init() {
	rootCmd.AddCommand(specCmd)

	specCmd.Flags().StringVarP(&specOut, "out", "o", "", "write to file instead of stdout")
	specCmd.Flags().BoolVar(&specYAML, "yaml", false, "write YAML instead of JSON")
}

func runSpec(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	r, err := newRouter(cfg, modelstore.NewMemory(), slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if specOut != "" {
		f, err := os.Create(specOut) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Error("failed to close output file", "err", err)
			}
		}()
		w = f
	}

	format := "json"
	if specYAML {
		format = "yaml"
	}
	return r.WriteSpec(w, format)
}
