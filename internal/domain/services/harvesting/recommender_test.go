package harvesting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/advisory"
)

var recommendationTypes = []entities.RelationshipType{
	entities.RelationshipReplacementCandidate,
	entities.RelationshipSameSectorETF,
	entities.RelationshipCorrelated,
}

var identicalTypes = []entities.RelationshipType{
	entities.RelationshipSubstantiallyIdentical,
}

func edge(a, b string, t entities.RelationshipType, correlation string) *entities.SecurityRelationship {
	return &entities.SecurityRelationship{
		ID:               uuid.New(),
		SymbolA:          a,
		SymbolB:          b,
		RelationshipType: t,
		Correlation:      decimal.RequireFromString(correlation),
		IsActive:         true,
	}
}

func harvestedOpportunity(symbol string) *entities.HarvestOpportunity {
	return &entities.HarvestOpportunity{
		ID:        uuid.New(),
		Symbol:    symbol,
		TotalLoss: decimal.RequireFromString("1500.00"),
		Status:    entities.OpportunityStatusIdentified,
	}
}

func TestRecommender_GraphOnly_SortedByCorrelation(t *testing.T) {
	relationships := &mockRelationshipRepository{}
	recommender := NewRecommender(relationships, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	opp := harvestedOpportunity("VTI")

	relationships.On("ListForSymbol", ctx, "VTI", recommendationTypes).
		Return([]*entities.SecurityRelationship{
			edge("VTI", "ITOT", entities.RelationshipCorrelated, "0.97"),
			edge("VTI", "SCHB", entities.RelationshipReplacementCandidate, "0.99"),
			edge("SPTM", "VTI", entities.RelationshipSameSectorETF, "0.95"),
		}, nil)
	relationships.On("ListForSymbol", ctx, "VTI", identicalTypes).
		Return([]*entities.SecurityRelationship{}, nil)

	recs, err := recommender.Recommend(ctx, opp, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "SCHB", recs[0].Symbol)
	assert.Equal(t, "ITOT", recs[1].Symbol)
	assert.Equal(t, "SPTM", recs[2].Symbol)
	for _, rec := range recs {
		assert.Equal(t, entities.RecommendationSourceGraph, rec.Source)
	}
	// Cached on the opportunity for the caller to persist
	assert.Equal(t, recs, opp.Recommendations)
}

func TestRecommender_SafetyFilterRemovesIdenticalCandidates(t *testing.T) {
	relationships := &mockRelationshipRepository{}
	suggestions := &mockSuggestionClient{}
	recommender := NewRecommender(relationships, suggestions, zaptest.NewLogger(t))
	ctx := context.Background()
	opp := harvestedOpportunity("VTI")

	relationships.On("ListForSymbol", ctx, "VTI", recommendationTypes).
		Return([]*entities.SecurityRelationship{
			edge("VTI", "SCHB", entities.RelationshipReplacementCandidate, "0.99"),
		}, nil)
	// The advisory service suggests a mutual-fund twin of the sold ETF; the
	// graph knows they are substantially identical.
	suggestions.On("Suggest", ctx, mock.Anything).
		Return([]advisory.Candidate{
			{Symbol: "VTSAX", Name: "Vanguard Total Stock Market Index Fund", Reason: "Same exposure", EstimatedCorrelation: decimal.RequireFromString("1.0")},
			{Symbol: "ITOT", Name: "iShares Core S&P Total U.S. Stock Market ETF", Reason: "Broad market ETF", EstimatedCorrelation: decimal.RequireFromString("0.97")},
		})
	relationships.On("ListForSymbol", ctx, "VTI", identicalTypes).
		Return([]*entities.SecurityRelationship{
			edge("VTI", "VTSAX", entities.RelationshipSubstantiallyIdentical, "1.0"),
		}, nil)

	recs, err := recommender.Recommend(ctx, opp, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	symbols := []string{recs[0].Symbol, recs[1].Symbol}
	assert.Equal(t, []string{"SCHB", "ITOT"}, symbols)
	assert.NotContains(t, symbols, "VTSAX")
}

func TestRecommender_GraphWinsMergeOverAdvisory(t *testing.T) {
	relationships := &mockRelationshipRepository{}
	suggestions := &mockSuggestionClient{}
	recommender := NewRecommender(relationships, suggestions, zaptest.NewLogger(t))
	ctx := context.Background()
	opp := harvestedOpportunity("VTI")

	relationships.On("ListForSymbol", ctx, "VTI", recommendationTypes).
		Return([]*entities.SecurityRelationship{
			edge("VTI", "SCHB", entities.RelationshipReplacementCandidate, "0.99"),
		}, nil)
	suggestions.On("Suggest", ctx, mock.Anything).
		Return([]advisory.Candidate{
			{Symbol: "SCHB", Name: "Schwab U.S. Broad Market ETF", Reason: "Broad market", EstimatedCorrelation: decimal.RequireFromString("0.50")},
		})
	relationships.On("ListForSymbol", ctx, "VTI", identicalTypes).
		Return([]*entities.SecurityRelationship{}, nil)

	recs, err := recommender.Recommend(ctx, opp, 3)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "SCHB", recs[0].Symbol)
	assert.Equal(t, entities.RecommendationSourceGraph, recs[0].Source)
	assert.True(t, recs[0].Correlation.Equal(decimal.RequireFromString("0.99")))
}

func TestRecommender_CachedRecommendationsShortCircuit(t *testing.T) {
	relationships := &mockRelationshipRepository{}
	recommender := NewRecommender(relationships, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	opp := harvestedOpportunity("VTI")
	opp.Recommendations = []entities.Recommendation{
		{Symbol: "SCHB", Reason: "Designated replacement candidate", Correlation: decimal.RequireFromString("0.99"), Source: entities.RecommendationSourceGraph},
	}

	recs, err := recommender.Recommend(ctx, opp, 3)
	require.NoError(t, err)
	assert.Equal(t, opp.Recommendations, recs)

	relationships.AssertNotCalled(t, "ListForSymbol", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecommender_TruncatesToMax(t *testing.T) {
	relationships := &mockRelationshipRepository{}
	recommender := NewRecommender(relationships, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	opp := harvestedOpportunity("VTI")

	relationships.On("ListForSymbol", ctx, "VTI", recommendationTypes).
		Return([]*entities.SecurityRelationship{
			edge("VTI", "SCHB", entities.RelationshipReplacementCandidate, "0.99"),
			edge("VTI", "ITOT", entities.RelationshipCorrelated, "0.97"),
			edge("VTI", "SPTM", entities.RelationshipSameSectorETF, "0.95"),
			edge("VTI", "IWV", entities.RelationshipCorrelated, "0.94"),
		}, nil)
	relationships.On("ListForSymbol", ctx, "VTI", identicalTypes).
		Return([]*entities.SecurityRelationship{}, nil)

	recs, err := recommender.Recommend(ctx, opp, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "SCHB", recs[0].Symbol)
	assert.Equal(t, "ITOT", recs[1].Symbol)
}
