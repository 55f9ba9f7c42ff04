package harvesting

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/domain/repositories"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/advisory"
)

// SuggestionClient is the advisory-service surface the recommender needs.
// The production implementation is advisory.Client, which fails open;
// tests substitute a stub.
type SuggestionClient interface {
	Suggest(ctx context.Context, req *advisory.SuggestionRequest) []advisory.Candidate
}

// Recommender produces safe replacement securities for a harvested
// position, merging graph-based and advisory-service candidates. The
// substantially-identical safety filter runs last and applies to both
// sources.
type Recommender struct {
	relationships repositories.RelationshipRepository
	suggestions   SuggestionClient
	logger        *zap.Logger
}

// NewRecommender creates a replacement recommender. suggestions may be nil,
// in which case only graph candidates are produced.
func NewRecommender(relationships repositories.RelationshipRepository, suggestions SuggestionClient, logger *zap.Logger) *Recommender {
	return &Recommender{
		relationships: relationships,
		suggestions:   suggestions,
		logger:        logger,
	}
}

// Recommend computes up to max replacement candidates for the opportunity.
// When the opportunity already carries cached recommendations they are
// returned unchanged; otherwise the result is set on the opportunity for
// the caller to persist.
func (r *Recommender) Recommend(ctx context.Context, opp *entities.HarvestOpportunity, max int) ([]entities.Recommendation, error) {
	if len(opp.Recommendations) > 0 {
		return opp.Recommendations, nil
	}

	graph, err := r.graphCandidates(ctx, opp.Symbol)
	if err != nil {
		return nil, err
	}

	merged := mergeCandidates(graph, r.advisoryCandidates(ctx, opp))

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Correlation.GreaterThan(merged[j].Correlation)
	})

	filtered, err := r.applySafetyFilter(ctx, opp.Symbol, merged)
	if err != nil {
		return nil, err
	}

	if len(filtered) > max {
		filtered = filtered[:max]
	}

	opp.Recommendations = filtered
	return filtered, nil
}

// graphCandidates pulls rule-based candidates from the relationship graph.
func (r *Recommender) graphCandidates(ctx context.Context, symbol string) ([]entities.Recommendation, error) {
	relationships, err := r.relationships.ListForSymbol(ctx, symbol,
		entities.RelationshipReplacementCandidate,
		entities.RelationshipSameSectorETF,
		entities.RelationshipCorrelated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query replacement relationships for %s: %w", symbol, err)
	}

	candidates := make([]entities.Recommendation, 0, len(relationships))
	for _, rel := range relationships {
		candidates = append(candidates, entities.Recommendation{
			Symbol:      rel.Other(symbol),
			Reason:      graphReason(rel.RelationshipType),
			Correlation: rel.Correlation,
			Source:      entities.RecommendationSourceGraph,
		})
	}

	return candidates, nil
}

// advisoryCandidates consults the advisory service. An unavailable or slow
// service yields nothing; it is never an error.
func (r *Recommender) advisoryCandidates(ctx context.Context, opp *entities.HarvestOpportunity) []entities.Recommendation {
	if r.suggestions == nil {
		return nil
	}

	suggested := r.suggestions.Suggest(ctx, &advisory.SuggestionRequest{
		Symbol:       opp.Symbol,
		SecurityName: opp.Symbol,
		LossAmount:   opp.TotalLoss,
		MaxResults:   5,
	})

	candidates := make([]entities.Recommendation, 0, len(suggested))
	for _, c := range suggested {
		candidates = append(candidates, entities.Recommendation{
			Symbol:      c.Symbol,
			Name:        c.Name,
			Reason:      c.Reason,
			Correlation: c.EstimatedCorrelation,
			Source:      entities.RecommendationSourceAdvisory,
		})
	}

	return candidates
}

// mergeCandidates de-duplicates by symbol, graph entries winning over
// advisory ones.
func mergeCandidates(graph, advisoryList []entities.Recommendation) []entities.Recommendation {
	merged := make([]entities.Recommendation, 0, len(graph)+len(advisoryList))
	seen := make(map[string]bool, len(graph))

	for _, c := range graph {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			merged = append(merged, c)
		}
	}
	for _, c := range advisoryList {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			merged = append(merged, c)
		}
	}

	return merged
}

// applySafetyFilter removes the sold symbol itself and anything
// substantially identical to it. Neither source can bypass this.
func (r *Recommender) applySafetyFilter(ctx context.Context, symbol string, candidates []entities.Recommendation) ([]entities.Recommendation, error) {
	identical, err := r.relationships.ListForSymbol(ctx, symbol, entities.RelationshipSubstantiallyIdentical)
	if err != nil {
		return nil, fmt.Errorf("failed to query substantially-identical relatives of %s: %w", symbol, err)
	}

	unsafe := map[string]bool{symbol: true}
	for _, rel := range identical {
		unsafe[rel.Other(symbol)] = true
	}

	safe := candidates[:0]
	for _, c := range candidates {
		if unsafe[c.Symbol] {
			r.logger.Debug("replacement candidate rejected as substantially identical",
				zap.String("sold_symbol", symbol),
				zap.String("candidate", c.Symbol),
				zap.String("source", string(c.Source)),
			)
			continue
		}
		safe = append(safe, c)
	}

	return safe, nil
}

func graphReason(t entities.RelationshipType) string {
	switch t {
	case entities.RelationshipReplacementCandidate:
		return "Designated replacement candidate"
	case entities.RelationshipSameSectorETF:
		return "ETF in the same sector"
	case entities.RelationshipCorrelated:
		return "Historically correlated security"
	default:
		return "Related security"
	}
}
