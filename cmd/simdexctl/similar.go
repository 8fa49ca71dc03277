package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/engine"
	logpkg "github.com/kailas-cloud/simdex/internal/logger"
	"github.com/kailas-cloud/simdex/internal/usecase/chunking"
	"github.com/kailas-cloud/simdex/internal/usecase/lexical"
	"github.com/kailas-cloud/simdex/internal/usecase/similarity"
)

func newSimilarCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Find documents similar to one corpus entry",
		Long: `Rank corpus documents by similarity to the target and classify the
plagiarism risk. The dense vector path is not available offline.

Examples:
  simdexctl similar --corpus resumes.json --target r-17
  simdexctl similar --corpus resumes.json --target r-17 --config engine.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimilar(cmd.Context(), cmd.OutOrStdout(), target)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "ID of the target document (required)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func runSimilar(ctx context.Context, out io.Writer, targetID string) error {
	cfg, err := loadEngineConfig(engineConfigPath)
	if err != nil {
		return err
	}
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(corpus, func(d domdoc.Document) bool { return d.ID() == targetID })
	if i < 0 {
		return fmt.Errorf("target %q not in corpus", targetID)
	}

	ctx = logpkg.ContextWithLogger(ctxOrBackground(ctx), newLogger())
	index, err := buildIndex(ctx, cfg, corpus)
	if err != nil {
		return err
	}
	res, err := similarity.New(cfg, index).FindSimilar(ctx, &corpus[i], corpus)
	if err != nil {
		return err
	}
	return writeJSON(out, res)
}

func buildIndex(ctx context.Context, cfg engine.Config, corpus []domdoc.Document) (*lexical.Index, error) {
	index := lexical.New(cfg.BM25, chunking.New(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkChars))
	if _, err := index.Build(ctx, corpus); err != nil {
		return nil, fmt.Errorf("build lexical index: %w", err)
	}
	return index, nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
