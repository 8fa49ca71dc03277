// Package main implements simdexctl, an offline runner for the similarity
// engine over a JSON corpus file.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/simdex/internal/version"
)

var (
	// corpusPath is the JSON file holding the corpus
	corpusPath string
	// engineConfigPath optionally overrides engine defaults
	engineConfigPath string
	// logLevel for the stderr logger
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simdexctl",
		Short: "Run résumé similarity offline",
		Long: `simdexctl runs the lexical and field-weighted similarity paths against a
local JSON corpus, without a database or embedding provider.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&corpusPath, "corpus", "corpus.json", "path to a JSON array of documents")
	root.PersistentFlags().StringVar(&engineConfigPath, "config", "", "engine YAML overriding the defaults")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.AddCommand(newSimilarCmd())
	root.AddCommand(newSearchCmd())
	return root
}
