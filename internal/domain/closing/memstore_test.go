package closing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/production"
)

// memStore is an in-memory MovementSource and Repository with the same
// filtering and conflict rules as the PostgreSQL implementation.
type memStore struct {
	mu sync.Mutex

	workshops map[id.ID]production.Workshop
	products  []product
	tickets   map[id.ID]*production.Ticket
	movements []production.Movement

	weeks map[id.ID]*WeeklyClosing
	subs  map[id.ID]*WorkshopClosing

	failFor    map[id.ID]error
	upsertCall int
}

func newMemStore() *memStore {
	return &memStore{
		workshops: make(map[id.ID]production.Workshop),
		tickets:   make(map[id.ID]*production.Ticket),
		weeks:     make(map[id.ID]*WeeklyClosing),
		subs:      make(map[id.ID]*WorkshopClosing),
		failFor:   make(map[id.ID]error),
	}
}

// --- fixtures ---

func (m *memStore) addWorkshop(name string) production.Workshop {
	pix := name + "@pix"
	w := production.Workshop{ID: id.New(), Name: name, TaxID: "00.000.000/0001-00", PixKey: &pix}
	m.workshops[w.ID] = w
	return w
}

// product mirrors a produtos row. Either price may be missing.
type product struct {
	ID        id.ID
	Name      string
	UnitPrice *types.Money
	SalePrice *types.Money
}

// price is the unit price, then the sale price, then zero, like the
// COALESCE in closing_repo.
func (p *product) price() types.Money {
	if p.UnitPrice != nil {
		return *p.UnitPrice
	}
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return types.Zero()
}

func (m *memStore) addProduct(name string, unit, sale *string) product {
	p := product{ID: id.New(), Name: name}
	if unit != nil {
		v := types.MustMoney(*unit)
		p.UnitPrice = &v
	}
	if sale != nil {
		v := types.MustMoney(*sale)
		p.SalePrice = &v
	}
	m.products = append(m.products, p)
	return p
}

func (m *memStore) addTicket(code string, w production.Workshop, product string, qty int, status production.TicketStatus) *production.Ticket {
	wid := w.ID
	t := &production.Ticket{
		ID: id.New(), Code: code, WorkshopID: &wid, WorkshopName: w.Name,
		ProductName: product, Color: "Azul", Size: "M", Quantity: qty, Status: status,
	}
	m.tickets[t.ID] = t
	return t
}

func (m *memStore) addMovement(t *production.Ticket, mt production.MovementType, qty int, at time.Time) production.Movement {
	mv := production.Movement{ID: id.New(), TicketID: t.ID, Type: mt, Quantity: qty, OccurredAt: at}
	m.movements = append(m.movements, mv)
	return mv
}

// --- MovementSource ---

func (m *memStore) ownerOf(t *production.Ticket) (production.Workshop, bool) {
	if t.WorkshopID != nil {
		w, ok := m.workshops[*t.WorkshopID]
		return w, ok
	}
	for _, w := range m.workshops {
		if w.Name == t.WorkshopName {
			return w, true
		}
	}
	return production.Workshop{}, false
}

func (m *memStore) billable(r period.Range) []production.Movement {
	var out []production.Movement
	for _, mv := range m.movements {
		t := m.tickets[mv.TicketID]
		if t == nil || !mv.Type.Billable() || !t.Status.Billable() || !r.Contains(mv.OccurredAt) {
			continue
		}
		out = append(out, mv)
	}
	return out
}

func (m *memStore) FindWorkshopsWithMovement(_ context.Context, r period.Range) ([]production.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[id.ID]production.Workshop)
	for _, mv := range m.billable(r) {
		if w, ok := m.ownerOf(m.tickets[mv.TicketID]); ok {
			seen[w.ID] = w
		}
	}
	out := make([]production.Workshop, 0, len(seen))
	for _, w := range seen {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) priceFor(t *production.Ticket) types.Money {
	for i := range m.products {
		p := &m.products[i]
		if (t.ProductID != nil && p.ID == *t.ProductID) || (t.ProductID == nil && p.Name == t.ProductName) {
			return p.price()
		}
	}
	return types.Zero()
}

func (m *memStore) FindBillableMovements(_ context.Context, w production.Workshop, r period.Range) ([]BillableMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failFor[w.ID]; err != nil {
		return nil, err
	}

	var out []BillableMovement
	for _, mv := range m.billable(r) {
		t := m.tickets[mv.TicketID]
		owner, ok := m.ownerOf(t)
		if !ok || owner.ID != w.ID {
			continue
		}
		out = append(out, BillableMovement{
			MovementID: mv.ID, MovementType: mv.Type, Quantity: mv.Quantity, OccurredAt: mv.OccurredAt,
			TicketID: t.ID, TicketCode: t.Code, Product: t.ProductName, Color: t.Color, Size: t.Size,
			UnitPrice: m.priceFor(t),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (m *memStore) GetWorkshop(_ context.Context, workshopID id.ID) (*production.Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workshops[workshopID]
	if !ok {
		return nil, apperror.NewNotFound("banca", workshopID)
	}
	return &w, nil
}

// --- Repository ---

func copyWeek(c *WeeklyClosing) *WeeklyClosing {
	out := *c
	out.Workshops = nil
	return &out
}

func copySub(w *WorkshopClosing) WorkshopClosing {
	out := *w
	out.Items = append([]LineItem(nil), w.Items...)
	return out
}

func (m *memStore) UpsertWeek(_ context.Context, c *WeeklyClosing) (*WeeklyClosing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCall++
	for _, existing := range m.weeks {
		if existing.Week == c.Week {
			return copyWeek(existing), nil
		}
	}
	m.weeks[c.ID] = copyWeek(c)
	return copyWeek(c), nil
}

func (m *memStore) GetByID(_ context.Context, closingID id.ID) (*WeeklyClosing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.weeks[closingID]
	if !ok {
		return nil, apperror.NewNotFound("fechamento", closingID)
	}
	return copyWeek(c), nil
}

func (m *memStore) GetForUpdate(ctx context.Context, closingID id.ID) (*WeeklyClosing, error) {
	return m.GetByID(ctx, closingID)
}

func (m *memStore) List(_ context.Context, filter ListFilter) ([]Summary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, c := range m.weeks {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		s := Summary{ID: c.ID, Week: c.Week, StartDate: c.StartDate, EndDate: c.EndDate, Status: c.Status,
			TotalPieces: c.TotalPieces, TotalValue: c.TotalValue, CreatedAt: c.CreatedAt, ClosedAt: c.ClosedAt}
		for _, w := range m.subs {
			if w.ClosingID == c.ID {
				s.WorkshopCount++
				if w.Status == WorkshopPaid {
					s.PaidCount++
				}
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week > out[j].Week })
	total := int64(len(out))
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memStore) UpdateTotals(_ context.Context, c *WeeklyClosing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.weeks[c.ID]
	if !ok {
		return errors.New("update totals: no row")
	}
	stored.TotalPieces, stored.TotalValue, stored.UpdatedAt = c.TotalPieces, c.TotalValue, c.UpdatedAt
	return nil
}

func (m *memStore) MarkClosed(_ context.Context, closingID id.ID, closedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.weeks[closingID]
	if !ok || c.Status != StatusOpen {
		return false, nil
	}
	c.Status = StatusClosed
	c.ClosedAt = &closedAt
	return true, nil
}

func (m *memStore) ListWorkshopClosings(_ context.Context, closingID id.ID) ([]WorkshopClosing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WorkshopClosing
	for _, w := range m.subs {
		if w.ClosingID == closingID {
			out = append(out, copySub(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkshopName < out[j].WorkshopName })
	return out, nil
}

func (m *memStore) WorkshopIDs(_ context.Context, closingID id.ID) (map[id.ID]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[id.ID]struct{})
	for _, w := range m.subs {
		if w.ClosingID == closingID {
			out[w.WorkshopID] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) find(closingID, workshopID id.ID) *WorkshopClosing {
	for _, w := range m.subs {
		if w.ClosingID == closingID && w.WorkshopID == workshopID {
			return w
		}
	}
	return nil
}

func (m *memStore) GetWorkshopClosing(_ context.Context, closingID, workshopID id.ID) (*WorkshopClosing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.find(closingID, workshopID)
	if w == nil {
		return nil, apperror.NewNotFound("fechamento_banca", workshopID)
	}
	out := copySub(w)
	return &out, nil
}

func (m *memStore) InsertWorkshopClosing(_ context.Context, w *WorkshopClosing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(w.ClosingID, w.WorkshopID) != nil {
		return false, nil
	}
	stored := copySub(w)
	m.subs[w.ID] = &stored
	return true, nil
}

func (m *memStore) ReplaceWorkshopItems(_ context.Context, w *WorkshopClosing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subs[w.ID]
	if !ok || stored.Status != WorkshopPending {
		return false, nil
	}
	replaced := copySub(w)
	replaced.Status = stored.Status
	m.subs[w.ID] = &replaced
	return true, nil
}

func (m *memStore) TransitionWorkshop(_ context.Context, workshopClosingID id.ID, from, to WorkshopStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.subs[workshopClosingID]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	if paidAt != nil {
		at := *paidAt
		w.PaidAt = &at
	}
	return true, nil
}

func (m *memStore) subCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
