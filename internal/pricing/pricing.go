// Package pricing holds the model price table used to turn token counts
// into dollar cost.
//
// The table is loaded once at process start and treated as read-only
// for the engine's lifetime. Prices are expressed per million tokens,
// matching how providers publish them; cost for a call is
//
//	promptTokens * promptPerMillion / 1e6
//	+ completionTokens * completionPerMillion / 1e6
//
// An unpriced model falls back to the default rate with a logged
// warning. Pricing never fails a run.
package pricing

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/synthpanel/synthpanel/internal/model"
)

// Price is the per-million-token rate for one model.
type Price struct {
	PromptPerMillion     float64 `yaml:"prompt_per_million"`
	CompletionPerMillion float64 `yaml:"completion_per_million"`
}

// Table maps model names to prices. Safe for concurrent readers once
// constructed; it is never mutated after load.
type Table struct {
	prices       map[string]Price
	defaultPrice Price

	mu     sync.Mutex
	warned map[string]bool // models already warned about, to avoid log spam
}

// tableFile is the YAML shape of a pricing file.
type tableFile struct {
	Default Price            `yaml:"default"`
	Models  map[string]Price `yaml:"models"`
}

// New builds a table from explicit entries and a default fallback rate.
func New(prices map[string]Price, fallback Price) *Table {
	cp := make(map[string]Price, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Table{
		prices:       cp,
		defaultPrice: fallback,
		warned:       make(map[string]bool),
	}
}

// Load reads a pricing table from a YAML file.
//
// Format:
//
//	default:
//	  prompt_per_million: 1.0
//	  completion_per_million: 2.0
//	models:
//	  gpt-4o-mini:
//	    prompt_per_million: 0.15
//	    completion_per_million: 0.60
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	return New(f.Models, f.Default), nil
}

// Default returns a built-in table covering common models, used when no
// pricing file is supplied.
func Default() *Table {
	return New(map[string]Price{
		"gpt-4o":        {PromptPerMillion: 2.50, CompletionPerMillion: 10.00},
		"gpt-4o-mini":   {PromptPerMillion: 0.15, CompletionPerMillion: 0.60},
		"gpt-4.1-mini":  {PromptPerMillion: 0.40, CompletionPerMillion: 1.60},
		"llama3.1:8b":   {PromptPerMillion: 0, CompletionPerMillion: 0},
		"qwen2.5:7b":    {PromptPerMillion: 0, CompletionPerMillion: 0},
	}, Price{PromptPerMillion: 1.00, CompletionPerMillion: 3.00})
}

// PriceFor returns the most specific price entry for a model, falling
// back to the default rate with a warning when the model is unpriced.
func (t *Table) PriceFor(modelName string) Price {
	if p, ok := t.prices[modelName]; ok {
		return p
	}
	t.warnOnce(modelName)
	return t.defaultPrice
}

// Cost computes the dollar cost of one call.
func (t *Table) Cost(modelName string, usage model.TokenUsage) float64 {
	p := t.PriceFor(modelName)
	return float64(usage.PromptTokens)*p.PromptPerMillion/1e6 +
		float64(usage.CompletionTokens)*p.CompletionPerMillion/1e6
}

func (t *Table) warnOnce(modelName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.warned[modelName] {
		return
	}
	t.warned[modelName] = true
	slog.Warn("model not in pricing table, using default rate",
		"model", modelName,
		"prompt_per_million", t.defaultPrice.PromptPerMillion,
		"completion_per_million", t.defaultPrice.CompletionPerMillion,
	)
}
