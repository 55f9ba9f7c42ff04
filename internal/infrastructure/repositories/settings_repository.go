package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// SettingsRepository persists harvesting settings scoped to
// (advisor, client?, account?).
type SettingsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sqlx.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

const settingsColumns = `
	id, advisor_id, client_id, account_id,
	min_loss_amount, min_loss_percent, min_tax_savings,
	short_term_rate, long_term_rate,
	excluded_account_types, excluded_symbols,
	is_active, created_at, updated_at`

// Create inserts a new settings row.
func (r *SettingsRepository) Create(ctx context.Context, settings *entities.HarvestingSettings) error {
	defer metrics.ObserveDBQuery("create", "harvesting_settings", time.Now())
	query := `
		INSERT INTO harvesting_settings (` + settingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		settings.ID, settings.AdvisorID, settings.ClientID, settings.AccountID,
		settings.MinLossAmount, settings.MinLossPercent, settings.MinTaxSavings,
		settings.ShortTermRate, settings.LongTermRate,
		pq.StringArray(settings.ExcludedAccountTypes), pq.StringArray(settings.ExcludedSymbols),
		settings.IsActive, settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create harvesting settings",
			zap.Error(err),
			zap.String("advisor_id", settings.AdvisorID.String()),
		)
		return fmt.Errorf("failed to create harvesting settings: %w", err)
	}

	return nil
}

// Update replaces a settings row in full.
func (r *SettingsRepository) Update(ctx context.Context, settings *entities.HarvestingSettings) error {
	defer metrics.ObserveDBQuery("update", "harvesting_settings", time.Now())
	query := `
		UPDATE harvesting_settings SET
			min_loss_amount = $1, min_loss_percent = $2, min_tax_savings = $3,
			short_term_rate = $4, long_term_rate = $5,
			excluded_account_types = $6, excluded_symbols = $7,
			is_active = $8, updated_at = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		settings.MinLossAmount, settings.MinLossPercent, settings.MinTaxSavings,
		settings.ShortTermRate, settings.LongTermRate,
		pq.StringArray(settings.ExcludedAccountTypes), pq.StringArray(settings.ExcludedSymbols),
		settings.IsActive, settings.UpdatedAt, settings.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update harvesting settings: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("harvesting settings %s not found", settings.ID)
	}

	return nil
}

// Delete removes a settings row.
func (r *SettingsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer metrics.ObserveDBQuery("delete", "harvesting_settings", time.Now())
	_, err := r.db.ExecContext(ctx, `DELETE FROM harvesting_settings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete harvesting settings: %w", err)
	}
	return nil
}

// GetByID loads a settings row, or nil when absent.
func (r *SettingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestingSettings, error) {
	defer metrics.ObserveDBQuery("get_by_id", "harvesting_settings", time.Now())
	query := `SELECT ` + settingsColumns + ` FROM harvesting_settings WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByScope returns the active settings row for the exact scope, or nil
// when none exists. NULL client/account columns match only nil arguments so
// each cascade rung hits exactly one scope.
func (r *SettingsRepository) GetByScope(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) (*entities.HarvestingSettings, error) {
	defer metrics.ObserveDBQuery("get_by_scope", "harvesting_settings", time.Now())
	query := `
		SELECT ` + settingsColumns + `
		FROM harvesting_settings
		WHERE advisor_id = $1
		  AND client_id IS NOT DISTINCT FROM $2
		  AND account_id IS NOT DISTINCT FROM $3
		  AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, advisorID, clientID, accountID))
}

func (r *SettingsRepository) scanOne(row *sql.Row) (*entities.HarvestingSettings, error) {
	var (
		s            entities.HarvestingSettings
		accountTypes pq.StringArray
		symbols      pq.StringArray
	)
	err := row.Scan(
		&s.ID, &s.AdvisorID, &s.ClientID, &s.AccountID,
		&s.MinLossAmount, &s.MinLossPercent, &s.MinTaxSavings,
		&s.ShortTermRate, &s.LongTermRate,
		&accountTypes, &symbols,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan harvesting settings: %w", err)
	}

	s.ExcludedAccountTypes = accountTypes
	s.ExcludedSymbols = symbols
	return &s, nil
}
