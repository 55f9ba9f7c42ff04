package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// RelationshipRepository reads the security relationship graph. Edges are
// stored directed but queried symmetrically.
type RelationshipRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *sqlx.DB, logger *zap.Logger) *RelationshipRepository {
	return &RelationshipRepository{
		db:     db,
		logger: logger,
	}
}

// ListForSymbol returns active edges touching symbol on either side,
// optionally filtered by relationship type.
func (r *RelationshipRepository) ListForSymbol(ctx context.Context, symbol string, types ...entities.RelationshipType) ([]*entities.SecurityRelationship, error) {
	defer metrics.ObserveDBQuery("list_for_symbol", "security_relationships", time.Now())
	query := `
		SELECT id, symbol_a, symbol_b, relationship_type, correlation, is_active, created_at
		FROM security_relationships
		WHERE (symbol_a = $1 OR symbol_b = $1)
		  AND is_active = true`

	args := []interface{}{symbol}
	if len(types) > 0 {
		typeNames := make([]string, len(types))
		for i, t := range types {
			typeNames[i] = string(t)
		}
		query += ` AND relationship_type = ANY($2)`
		args = append(args, pq.StringArray(typeNames))
	}
	query += ` ORDER BY correlation DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var edges []*entities.SecurityRelationship
	for rows.Next() {
		var e entities.SecurityRelationship
		err := rows.Scan(
			&e.ID, &e.SymbolA, &e.SymbolB, &e.RelationshipType,
			&e.Correlation, &e.IsActive, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return edges, nil
}
