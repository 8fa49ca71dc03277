package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
	"github.com/kailas-cloud/simdex/internal/domain/engine"
	logpkg "github.com/kailas-cloud/simdex/internal/logger"
)

// corpusEntry is one record of the corpus file.
type corpusEntry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Position         string    `json:"position"`
	GrowthBackground string    `json:"growth_background"`
	Motivation       string    `json:"motivation"`
	CareerHistory    string    `json:"career_history"`
	CreatedAt        time.Time `json:"created_at"`
}

func loadCorpus(path string) ([]domdoc.Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()
	return decodeCorpus(f)
}

func decodeCorpus(r io.Reader) ([]domdoc.Document, error) {
	var entries []corpusEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	docs := make([]domdoc.Document, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		doc, err := domdoc.New(e.ID, e.Name, e.Position, map[domdoc.FieldName]string{
			domdoc.GrowthBackground: e.GrowthBackground,
			domdoc.Motivation:       e.Motivation,
			domdoc.CareerHistory:    e.CareerHistory,
		}, e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("corpus entry %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// loadEngineConfig reads an engine YAML, or returns defaults for an empty path.
func loadEngineConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return engine.Config{}, fmt.Errorf("read engine config: %w", err)
	}
	cfg := engine.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return engine.Config{}, fmt.Errorf("parse engine config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	logger, err := logpkg.NewLogger("local", logLevel)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
