package processor

import (
	"log/slog"
	"strings"

	"vnexim/mavach/internal/core/declaration"
)

// Processor applies the business rules that decide which declarations are
// eligible for barcode retrieval.
type Processor struct {
	log *slog.Logger
}

// New creates a processor.
func New(log *slog.Logger) *Processor {
	return &Processor{log: log}
}

// Eligible reports whether a single declaration passes all business rules,
// ignoring the processed set.
func Eligible(d declaration.Declaration) bool {
	if d.Channel != declaration.ChannelGreen && d.Channel != declaration.ChannelYellow {
		return false
	}
	if d.Status != declaration.StatusCleared {
		return false
	}
	if d.TransportMethod == declaration.TransportExcluded {
		return false
	}
	if strings.Contains(d.GoodsDescription, declaration.MarkerImportExcluded) ||
		strings.Contains(d.GoodsDescription, declaration.MarkerExportExcluded) {
		return false
	}
	return true
}

// Filter returns the subsequence of candidates that pass every rule and are
// not in the already-processed set. Ordering is preserved; the function is
// pure and idempotent.
func (p *Processor) Filter(candidates []declaration.Declaration, processed map[string]struct{}) []declaration.Declaration {
	eligible := make([]declaration.Declaration, 0, len(candidates))
	for _, d := range candidates {
		if !Eligible(d) {
			continue
		}
		if _, done := processed[d.ID()]; done {
			continue
		}
		eligible = append(eligible, d)
	}

	p.log.Debug("filtered declarations",
		"candidates", len(candidates),
		"eligible", len(eligible),
		"already_processed", len(processed))
	return eligible
}
