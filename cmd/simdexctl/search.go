package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/simdex/internal/domain/score"
)

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a BM25 keyword search over the corpus",
		Long: `Score every corpus document against free text with BM25 summed over the
compared fields.

Examples:
  simdexctl search --corpus resumes.json "payments backend golang" --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of hits")
	return cmd
}

type searchHit struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

func runSearch(ctx context.Context, out io.Writer, query string, limit int) error {
	cfg, err := loadEngineConfig(engineConfigPath)
	if err != nil {
		return err
	}
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}
	ctx = ctxOrBackground(ctx)
	index, err := buildIndex(ctx, cfg, corpus)
	if err != nil {
		return err
	}
	hits, err := index.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	return writeJSON(out, toSearchHits(hits))
}

func toSearchHits(hits []score.Hit) []searchHit {
	out := make([]searchHit, len(hits))
	for i, h := range hits {
		out[i] = searchHit{DocumentID: h.DocumentID, Score: score.Round2(h.Score)}
	}
	return out
}
