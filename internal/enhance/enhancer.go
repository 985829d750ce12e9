// Package enhance improves recall and precision of plain address matching
// with an optional text-understanding collaborator.
package enhance

import (
	"context"

	"OnionHarvester/internal/domain"
)

// Enhancer is the capability set the pipeline composes. Implementations never
// fail: errors degrade to the matcher-only result or the unknown classification.
type Enhancer interface {
	Enabled() bool
	FindHidden(ctx context.Context, text string) []domain.Address
	FilterFalsePositives(ctx context.Context, addrs []domain.Address, text string) []domain.Address
	Classify(ctx context.Context, addr domain.Address, text string) domain.Classification
}

// Disabled is the no-op Enhancer used without a credential.
type Disabled struct{}

var _ Enhancer = Disabled{}

func (Disabled) Enabled() bool { return false }

func (Disabled) FindHidden(context.Context, string) []domain.Address { return nil }

func (Disabled) FilterFalsePositives(_ context.Context, addrs []domain.Address, _ string) []domain.Address {
	return addrs
}

func (Disabled) Classify(context.Context, domain.Address, string) domain.Classification {
	return domain.UnknownClassification(reasonNoAPIKey)
}
