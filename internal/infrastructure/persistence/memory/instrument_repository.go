package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmanzanog/instrument-registry/internal/domain"
)

// InstrumentRepository keeps instruments in process memory. It enforces the
// same constraints as the SQL store: ids are assigned in increasing order and
// ISINs are unique.
type InstrumentRepository struct {
	mu          sync.RWMutex
	instruments map[int64]domain.Instrument
	nextID      int64
	now         func() time.Time
}

var _ domain.InstrumentRepository = (*InstrumentRepository)(nil)

func NewInstrumentRepository() *InstrumentRepository {
	return &InstrumentRepository{
		instruments: make(map[int64]domain.Instrument),
		nextID:      1,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *InstrumentRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *InstrumentRepository) List(ctx context.Context) ([]domain.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instruments := make([]domain.Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		instruments = append(instruments, cloneInstrument(inst))
	}
	sort.Slice(instruments, func(i, j int) bool { return instruments[i].ID < instruments[j].ID })

	return instruments, nil
}

func (r *InstrumentRepository) FindByID(ctx context.Context, id int64) (domain.Instrument, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, exists := r.instruments[id]
	if !exists {
		return domain.Instrument{}, false, nil
	}
	return cloneInstrument(inst), true, nil
}

func (r *InstrumentRepository) Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	if err := inst.Validate(); err != nil {
		return domain.Instrument{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkISIN(0, inst.ISIN); err != nil {
		return domain.Instrument{}, err
	}

	inst = cloneInstrument(inst)
	now := r.now()
	inst.ID = r.nextID
	inst.CreatedAt = &now
	inst.UpdatedAt = &now
	r.nextID++

	r.instruments[inst.ID] = inst
	return cloneInstrument(inst), nil
}

func (r *InstrumentRepository) Update(ctx context.Context, id int64, patch domain.InstrumentPatch) (domain.Instrument, bool, error) {
	if err := patch.Validate(); err != nil {
		return domain.Instrument{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inst, exists := r.instruments[id]
	if !exists {
		return domain.Instrument{}, false, nil
	}
	if patch.IsEmpty() {
		return cloneInstrument(inst), true, nil
	}

	patch.ApplyTo(&inst)
	inst = cloneInstrument(inst)
	if err := r.checkISIN(id, inst.ISIN); err != nil {
		return domain.Instrument{}, false, err
	}

	now := r.now()
	inst.UpdatedAt = &now
	r.instruments[id] = inst
	return cloneInstrument(inst), true, nil
}

func (r *InstrumentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[id]; !exists {
		return false, nil
	}

	delete(r.instruments, id)
	return true, nil
}

// checkISIN must be called with the write lock held.
func (r *InstrumentRepository) checkISIN(selfID int64, isin *string) error {
	if isin == nil {
		return nil
	}
	for id, other := range r.instruments {
		if id != selfID && other.ISIN != nil && *other.ISIN == *isin {
			return fmt.Errorf("%w: isin %s already used by instrument %d", domain.ErrDuplicateInstrument, *isin, id)
		}
	}
	return nil
}

// cloneInstrument copies every pointer field so stored records never share
// memory with callers.
func cloneInstrument(inst domain.Instrument) domain.Instrument {
	c := inst
	c.ISIN = clonePtr(inst.ISIN)
	c.Sector = clonePtr(inst.Sector)
	c.Industry = clonePtr(inst.Industry)
	c.Country = clonePtr(inst.Country)
	c.StatisticalCurrency = clonePtr(inst.StatisticalCurrency)
	c.InterestRate = cloneDecimal(inst.InterestRate)
	c.InterestPeriod = clonePtr(inst.InterestPeriod)
	c.LastPrice = cloneDecimal(inst.LastPrice)
	c.LastPriceDate = clonePtr(inst.LastPriceDate)
	c.IssueDate = clonePtr(inst.IssueDate)
	c.ExpirationDate = clonePtr(inst.ExpirationDate)
	c.FirstCallDate = clonePtr(inst.FirstCallDate)
	c.FirstCallPercentage = cloneDecimal(inst.FirstCallPercentage)
	c.CouponDate0 = clonePtr(inst.CouponDate0)
	c.CouponDate1 = clonePtr(inst.CouponDate1)
	c.CouponDate2 = clonePtr(inst.CouponDate2)
	c.CouponDate3 = clonePtr(inst.CouponDate3)
	c.PreferredExchange = clonePtr(inst.PreferredExchange)
	c.RestricedExchange = clonePtr(inst.RestricedExchange)
	c.ContractSize = clonePtr(inst.ContractSize)
	c.InitialMargin = cloneDecimal(inst.InitialMargin)
	c.TelekursSymbol = clonePtr(inst.TelekursSymbol)
	c.ReutersSymbol = clonePtr(inst.ReutersSymbol)
	c.YahooSymbol = clonePtr(inst.YahooSymbol)
	c.SectorAllocation = clonePtr(inst.SectorAllocation)
	c.FreeText0 = clonePtr(inst.FreeText0)
	c.FreeText1 = clonePtr(inst.FreeText1)
	c.FreeText2 = clonePtr(inst.FreeText2)
	c.FreeText3 = clonePtr(inst.FreeText3)
	c.MetadataJSON = clonePtr(inst.MetadataJSON)
	c.CreatedAt = clonePtr(inst.CreatedAt)
	c.UpdatedAt = clonePtr(inst.UpdatedAt)
	return c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// cloneDecimal copies the coefficient too; a plain struct copy would share
// its big.Int.
func cloneDecimal(d *domain.Decimal) *domain.Decimal {
	if d == nil {
		return nil
	}
	var c domain.Decimal
	c.Set(&d.Decimal)
	return &c
}
