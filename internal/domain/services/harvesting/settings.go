package harvesting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/domain/repositories"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/cache"
)

// SettingsResolver resolves effective harvesting parameters through the
// account -> client -> advisor cascade. Resolution always succeeds: absent
// rows and repository failures both fall through to the next scope and
// ultimately to the hard-coded defaults.
type SettingsResolver struct {
	repo   repositories.SettingsRepository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewSettingsResolver creates a settings resolver. cache may be nil.
func NewSettingsResolver(repo repositories.SettingsRepository, c *cache.Cache, logger *zap.Logger) *SettingsResolver {
	return &SettingsResolver{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

// settingsScope is one rung of the cascade.
type settingsScope struct {
	clientID  *uuid.UUID
	accountID *uuid.UUID
}

// Resolve returns the effective settings for (advisor, client?, account?),
// trying (client, account), then (client), then advisor-wide, first active
// match wins.
func (r *SettingsResolver) Resolve(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) *entities.HarvestingSettings {
	cacheKey := settingsCacheKey(advisorID, clientID, accountID)

	var cached entities.HarvestingSettings
	if r.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached
	}

	scopes := make([]settingsScope, 0, 3)
	if clientID != nil && accountID != nil {
		scopes = append(scopes, settingsScope{clientID: clientID, accountID: accountID})
	}
	if clientID != nil {
		scopes = append(scopes, settingsScope{clientID: clientID})
	}
	scopes = append(scopes, settingsScope{})

	for _, scope := range scopes {
		settings, err := r.repo.GetByScope(ctx, advisorID, scope.clientID, scope.accountID)
		if err != nil {
			r.logger.Warn("settings lookup failed, falling through cascade",
				zap.String("advisor_id", advisorID.String()),
				zap.Error(err),
			)
			continue
		}
		if settings != nil && settings.IsActive {
			r.cache.SetJSON(ctx, cacheKey, settings)
			return settings
		}
	}

	defaults := entities.DefaultHarvestingSettings(advisorID)
	r.cache.SetJSON(ctx, cacheKey, defaults)
	return defaults
}

// Invalidate drops the cached resolution for a scope after settings change.
func (r *SettingsResolver) Invalidate(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) {
	r.cache.Invalidate(ctx, settingsCacheKey(advisorID, clientID, accountID))
}

func settingsCacheKey(advisorID uuid.UUID, clientID, accountID *uuid.UUID) string {
	client, account := "-", "-"
	if clientID != nil {
		client = clientID.String()
	}
	if accountID != nil {
		account = accountID.String()
	}
	return fmt.Sprintf("settings:%s:%s:%s", advisorID, client, account)
}
