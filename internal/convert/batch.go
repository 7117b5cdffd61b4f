package convert

import (
	"github.com/local/sheetmd/internal/tabular"
	"github.com/rs/zerolog/log"
)

// PlanOptions bound batch growth. Zero values fall back to the defaults the
// coordinator uses in production.
type PlanOptions struct {
	MaxTokens        int // estimated-token budget per batch, instruction overhead included
	MaxBatchSize     int // sheet count ceiling per batch
	AvgCharsPerToken int // divisor for the length heuristic
	PromptOverhead   int // estimated tokens of the fixed instruction template + extras
}

func (o *PlanOptions) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 800000
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 20
	}
	if o.AvgCharsPerToken <= 0 {
		o.AvgCharsPerToken = 4
	}
}

// estimateTokens is a coarse length heuristic, not real tokenization.
func estimateTokens(text string, avgCharsPerToken int) int {
	if avgCharsPerToken <= 0 {
		avgCharsPerToken = 4
	}
	return len(text) / avgCharsPerToken
}

// PlanBatches greedily groups tables into ordered batches of table indices.
// Every table lands in exactly one batch, order is preserved, and a batch
// stays within both the token budget and the sheet-count ceiling. The one
// sanctioned exception: a table whose lone cost already exceeds the budget is
// never split and forms its own single-table batch.
func PlanBatches(tables []tabular.Table, opts PlanOptions) [][]int {
	opts.defaults()

	var batches [][]int
	var current []int
	currentTokens := 0

	for idx, t := range tables {
		cost := estimateTokens(sheetBlock(t), opts.AvgCharsPerToken)

		switch {
		case opts.PromptOverhead+currentTokens+cost > opts.MaxTokens && len(current) > 0:
			batches = append(batches, current)
			current = []int{idx}
			currentTokens = cost
		case len(current) >= opts.MaxBatchSize:
			batches = append(batches, current)
			current = []int{idx}
			currentTokens = cost
		default:
			current = append(current, idx)
			currentTokens += cost
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	log.Info().Int("sheets", len(tables)).Int("batches", len(batches)).Msg("planned generation batches")
	for i, b := range batches {
		log.Debug().Int("batch", i+1).Ints("indices", b).Msg("batch contents")
	}
	return batches
}
