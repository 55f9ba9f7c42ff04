package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

func TestStaticAdvisorDirectory(t *testing.T) {
	advisorID := uuid.New().String()
	resolve := StaticAdvisorDirectory(map[string]string{
		advisorID: "advisor@meridianwealth.com",
	}, "desk@meridianwealth.com")

	assert.Equal(t, "advisor@meridianwealth.com", resolve(advisorID))
	assert.Equal(t, "desk@meridianwealth.com", resolve(uuid.New().String()))

	noFallback := StaticAdvisorDirectory(nil, "")
	assert.Equal(t, "", noFallback(advisorID))
}

func violationWindow() *entities.WashSaleTransaction {
	violationDate := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	return &entities.WashSaleTransaction{
		ID:             uuid.New(),
		AdvisorID:      uuid.New(),
		AccountID:      uuid.New(),
		OpportunityID:  uuid.New(),
		Symbol:         "VTI",
		SaleDate:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Status:         entities.WashSaleStatusViolated,
		ViolationDate:  &violationDate,
		DisallowedLoss: decimal.RequireFromString("1500.00"),
	}
}

func TestEmailService_SendViolationAlert_MockMode(t *testing.T) {
	ws := violationWindow()
	service := NewEmailService(zaptest.NewLogger(t), EmailServiceConfig{
		FromEmail:   "alerts@meridianwealth.com",
		FromName:    "Meridian Advisory",
		Environment: "development",
		AdvisorEmail: StaticAdvisorDirectory(map[string]string{
			ws.AdvisorID.String(): "advisor@meridianwealth.com",
		}, ""),
	})

	require.NoError(t, service.SendViolationAlert(context.Background(), ws))
}

func TestEmailService_SendViolationAlert_NoRecipientSkips(t *testing.T) {
	service := NewEmailService(zaptest.NewLogger(t), EmailServiceConfig{
		FromEmail:   "alerts@meridianwealth.com",
		Environment: "development",
	})

	require.NoError(t, service.SendViolationAlert(context.Background(), violationWindow()))
}
