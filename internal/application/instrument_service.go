package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmanzanog/instrument-registry/internal/domain"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListFilter narrows List. Empty fields match everything; string filters
// compare exactly.
type ListFilter struct {
	InstrumentType domain.InstrumentType
	Sector         string
	Country        string
	Limit          int
	Offset         int
}

func (f ListFilter) matches(inst domain.Instrument) bool {
	if f.InstrumentType != "" && inst.InstrumentType != f.InstrumentType {
		return false
	}
	if f.Sector != "" && (inst.Sector == nil || *inst.Sector != f.Sector) {
		return false
	}
	if f.Country != "" && (inst.Country == nil || *inst.Country != f.Country) {
		return false
	}
	return true
}

type InstrumentService struct {
	repo domain.InstrumentRepository
}

func NewInstrumentService(repo domain.InstrumentRepository) *InstrumentService {
	return &InstrumentService{repo: repo}
}

// List returns the instruments matching filter in ascending id order, paged
// by filter.Limit and filter.Offset.
func (s *InstrumentService) List(ctx context.Context, filter ListFilter) ([]domain.Instrument, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit must be in 1..%d and offset non-negative", domain.ErrInvalidInstrument, MaxListLimit)
	}
	if filter.InstrumentType != "" && !filter.InstrumentType.IsValid() {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInstrument, domain.ErrInvalidInstrumentType)
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}

	matched := make([]domain.Instrument, 0, len(all))
	for _, inst := range all {
		if filter.matches(inst) {
			matched = append(matched, inst)
		}
	}

	if filter.Offset >= len(matched) {
		return []domain.Instrument{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matched))
	return matched[filter.Offset:end], nil
}

func (s *InstrumentService) Get(ctx context.Context, id int64) (domain.Instrument, error) {
	inst, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("failed to get instrument %d: %w", id, err)
	}
	if !found {
		return domain.Instrument{}, fmt.Errorf("%w: %d", domain.ErrInstrumentNotFound, id)
	}
	return inst, nil
}

func (s *InstrumentService) Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	inst.ID = 0
	inst.CreatedAt = nil
	inst.UpdatedAt = nil

	created, err := s.repo.Create(ctx, inst)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("failed to create instrument: %w", err)
	}

	slog.Info("Instrument created", "instrument_id", created.ID, "short_name", created.ShortName)
	return created, nil
}

func (s *InstrumentService) Update(ctx context.Context, id int64, patch domain.InstrumentPatch) (domain.Instrument, error) {
	updated, found, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("failed to update instrument %d: %w", id, err)
	}
	if !found {
		return domain.Instrument{}, fmt.Errorf("%w: %d", domain.ErrInstrumentNotFound, id)
	}
	return updated, nil
}

func (s *InstrumentService) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete instrument %d: %w", id, err)
	}
	if !found {
		return fmt.Errorf("%w: %d", domain.ErrInstrumentNotFound, id)
	}

	slog.Info("Instrument deleted", "instrument_id", id)
	return nil
}

// Health reports whether the backing store is reachable.
func (s *InstrumentService) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
