package domain

import "context"

// InstrumentRepository defines the interface for instrument persistence.
// It follows the Domain-Driven Design repository pattern.
// All methods accept context.Context to enable proper timeout handling,
// cancellation propagation, and request-scoped values like tracing IDs.
//
// A missing id is reported through the found flag, never as an error.
type InstrumentRepository interface {
	List(ctx context.Context) ([]Instrument, error)
	FindByID(ctx context.Context, id int64) (inst Instrument, found bool, err error)
	Create(ctx context.Context, inst Instrument) (Instrument, error)
	Update(ctx context.Context, id int64, patch InstrumentPatch) (inst Instrument, found bool, err error)
	Delete(ctx context.Context, id int64) (found bool, err error)
	Ping(ctx context.Context) error
}
