package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

// FinanceService reads and writes the owner's finance aggregate as a whole.
type FinanceService struct {
	store store.FinanceStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewFinanceService(s store.FinanceStore, log zerolog.Logger) *FinanceService {
	return &FinanceService{
		store: s,
		log:   log.With().Str("component", "finance").Logger(),
		now:   time.Now,
	}
}

// Get returns the owner's aggregate. A missing, unreadable or unreachable
// aggregate yields an empty one.
func (s *FinanceService) Get(ctx context.Context, owner models.UserID) models.FinanceData {
	rec, err := s.store.GetFinance(ctx, owner)
	if err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to get finance data")
		return models.EmptyFinance()
	}
	if rec == nil {
		return models.EmptyFinance()
	}
	data, err := DecodeFinance(rec.Data)
	if err != nil {
		s.log.Warn().Err(err).Stringer("owner", owner).Msg("discarding unreadable finance data")
		return models.EmptyFinance()
	}
	return data
}

// Save replaces the owner's aggregate in one store call.
func (s *FinanceService) Save(ctx context.Context, owner models.UserID, data models.FinanceData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode finance data: %w", err)
	}
	rec := &store.FinanceRecord{
		ID:        models.FinanceIDFor(owner),
		OwnerID:   owner,
		Data:      datatypes.JSON(raw),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.SaveFinance(ctx, rec); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to save finance data")
		return err
	}
	return nil
}

// DecodeFinance parses a stored blob. Missing sub-collections come back empty.
func DecodeFinance(raw []byte) (models.FinanceData, error) {
	data := models.EmptyFinance()
	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.EmptyFinance(), fmt.Errorf("failed to decode finance data: %w", err)
	}
	data.Normalize()
	return data, nil
}
