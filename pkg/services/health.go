package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// HealthService stores protocols and quit habits one row each.
type HealthService struct {
	store store.HealthStore
	log   zerolog.Logger
}

func NewHealthService(s store.HealthStore, log zerolog.Logger) *HealthService {
	return &HealthService{
		store: s,
		log:   log.With().Str("component", "health").Logger(),
	}
}

// GetAll returns the owner's protocols and habits. Each list falls back to
// empty on its own when the store fails.
func (s *HealthService) GetAll(ctx context.Context, owner models.UserID) models.HealthData {
	data := models.EmptyHealth()

	var g errgroup.Group
	g.Go(func() error {
		recs, err := s.store.ListProtocols(ctx, owner)
		if err != nil {
			s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to list protocols")
			return nil
		}
		for _, rec := range recs {
			p, err := ProtocolFromRecord(rec)
			if err != nil {
				s.log.Warn().Err(err).Stringer("protocol", rec.ID).Msg("skipping unreadable protocol")
				continue
			}
			data.Protocols = append(data.Protocols, p)
		}
		return nil
	})
	g.Go(func() error {
		recs, err := s.store.ListHabits(ctx, owner)
		if err != nil {
			s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to list habits")
			return nil
		}
		for _, rec := range recs {
			h, err := HabitFromRecord(rec)
			if err != nil {
				s.log.Warn().Err(err).Stringer("habit", rec.ID).Msg("skipping unreadable habit")
				continue
			}
			data.Habits = append(data.Habits, h)
		}
		return nil
	})
	_ = g.Wait()
	return data
}

func (s *HealthService) SaveProtocol(ctx context.Context, owner models.UserID, p models.HealthProtocol) error {
	rec, err := ProtocolToRecord(owner, p)
	if err != nil {
		return err
	}
	if err := s.store.SaveProtocol(ctx, rec); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("protocol", p.ID).Msg("failed to save protocol")
		return err
	}
	return nil
}

func (s *HealthService) DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error {
	if err := s.store.DeleteProtocol(ctx, owner, id); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("protocol", id).Msg("failed to delete protocol")
		return err
	}
	return nil
}

func (s *HealthService) SaveHabit(ctx context.Context, owner models.UserID, h models.QuitHabit) error {
	rec, err := HabitToRecord(owner, h)
	if err != nil {
		return err
	}
	if err := s.store.SaveHabit(ctx, rec); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("habit", h.ID).Msg("failed to save habit")
		return err
	}
	return nil
}

func (s *HealthService) DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error {
	if err := s.store.DeleteHabit(ctx, owner, id); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("habit", id).Msg("failed to delete habit")
		return err
	}
	return nil
}

func ProtocolToRecord(owner models.UserID, p models.HealthProtocol) (*store.ProtocolRecord, error) {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode protocol content: %w", err)
	}
	milestones, err := encodeMilestones(p.Milestones)
	if err != nil {
		return nil, err
	}
	return &store.ProtocolRecord{
		ID:          p.ID,
		OwnerID:     owner,
		Title:       p.Title,
		Description: p.Description,
		Content:     datatypes.JSON(content),
		StartedAt:   utc(p.StartedAt),
		Milestones:  milestones,
		CreatedAt:   utc(p.CreatedAt),
		UpdatedAt:   utc(p.UpdatedAt),
	}, nil
}

func ProtocolFromRecord(rec *store.ProtocolRecord) (models.HealthProtocol, error) {
	p := models.HealthProtocol{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Content:     models.JSONMap{},
		StartedAt:   utc(rec.StartedAt),
		CreatedAt:   utc(rec.CreatedAt),
		UpdatedAt:   utc(rec.UpdatedAt),
	}
	if len(rec.Content) > 0 && string(rec.Content) != "null" {
		if err := json.Unmarshal(rec.Content, &p.Content); err != nil {
			return p, fmt.Errorf("failed to decode protocol content: %w", err)
		}
	}
	milestones, err := decodeMilestones(rec.Milestones)
	if err != nil {
		return p, err
	}
	p.Milestones = milestones
	return p, nil
}

func HabitToRecord(owner models.UserID, h models.QuitHabit) (*store.HabitRecord, error) {
	milestones, err := encodeMilestones(h.Milestones)
	if err != nil {
		return nil, err
	}
	return &store.HabitRecord{
		ID:         h.ID,
		OwnerID:    owner,
		Name:       h.Name,
		QuitAt:     utc(h.QuitAt),
		DailyCost:  h.DailyCost,
		Notes:      h.Notes,
		Milestones: milestones,
		CreatedAt:  utc(h.CreatedAt),
		UpdatedAt:  utc(h.UpdatedAt),
	}, nil
}

// HabitFromRecord decodes a stored habit. Habits without milestones get the
// default quit schedule.
func HabitFromRecord(rec *store.HabitRecord) (models.QuitHabit, error) {
	h := models.QuitHabit{
		ID:        rec.ID,
		Name:      rec.Name,
		QuitAt:    utc(rec.QuitAt),
		DailyCost: rec.DailyCost,
		Notes:     rec.Notes,
		CreatedAt: utc(rec.CreatedAt),
		UpdatedAt: utc(rec.UpdatedAt),
	}
	milestones, err := decodeMilestones(rec.Milestones)
	if err != nil {
		return h, err
	}
	if len(milestones) == 0 {
		milestones = models.DefaultQuitMilestones()
	}
	h.Milestones = milestones
	return h, nil
}

func encodeMilestones(ms []models.Milestone) (datatypes.JSON, error) {
	if ms == nil {
		ms = []models.Milestone{}
	}
	raw, err := json.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode milestones: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeMilestones(raw datatypes.JSON) ([]models.Milestone, error) {
	out := []models.Milestone{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode milestones: %w", err)
	}
	return out, nil
}
