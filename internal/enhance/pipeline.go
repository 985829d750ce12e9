package enhance

import (
	"context"
	"log/slog"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/extract"
	"OnionHarvester/internal/ports"
)

// Pipeline composes the matcher with an Enhancer.
type Pipeline struct {
	enhancer Enhancer
	logger   *slog.Logger
}

var _ ports.Annotator = (*Pipeline)(nil)

// NewPipeline wires an enhancer; nil means Disabled.
func NewPipeline(enhancer Enhancer, logger *slog.Logger) *Pipeline {
	if enhancer == nil {
		enhancer = Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{enhancer: enhancer, logger: logger.With("component", "pipeline")}
}

// Enabled reports whether the external collaborator is in use.
func (p *Pipeline) Enabled() bool {
	return p.enhancer.Enabled()
}

// Candidates returns the deduplicated addresses of text. When enhancement is
// enabled, hidden addresses are added and sets with more than one element
// are filtered.
func (p *Pipeline) Candidates(ctx context.Context, text string) []domain.Address {
	if !p.enhancer.Enabled() {
		return extract.ExtractUnique(text)
	}

	matched := extract.Extract(text)

	hidden := p.enhancer.FindHidden(ctx, text)
	candidates := domain.DedupeAddresses(append(matched, hidden...))
	if len(candidates) > 1 {
		candidates = p.enhancer.FilterFalsePositives(ctx, candidates, text)
	}
	p.logger.Debug("candidates resolved", "matched", len(matched), "hidden", len(hidden), "kept", len(candidates))
	return candidates
}

// Annotate returns the candidates of text with classifications. An address
// already classified according to known keeps that classification. Without
// enhancement no classification is attached.
func (p *Pipeline) Annotate(ctx context.Context, text string, known ports.KnownClassification) []domain.AnnotatedAddress {
	candidates := p.Candidates(ctx, text)
	if !p.enhancer.Enabled() {
		return domain.Annotate(candidates)
	}

	out := make([]domain.AnnotatedAddress, 0, len(candidates))
	for _, addr := range candidates {
		var c domain.Classification
		if prev, ok := lookup(known, addr); ok {
			c = prev
		} else {
			c = p.enhancer.Classify(ctx, addr, text)
		}
		out = append(out, domain.AnnotatedAddress{Address: addr, Classification: &c})
	}
	return out
}

func lookup(known ports.KnownClassification, addr domain.Address) (domain.Classification, bool) {
	if known == nil {
		return domain.Classification{}, false
	}
	return known(addr)
}
