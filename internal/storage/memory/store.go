// Package memory is an in-process implementation of the storage interfaces.
//
// Row locks are per-key mutexes taken inside WithTx and held until the
// transaction ends. Writes are buffered in the transaction and applied on
// commit, so a failed transaction leaves nothing behind. Nothing survives a
// restart; production deployments use the postgres package.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

var errDuplicate = errors.New("memory: duplicate key")

type Store struct {
	mu      sync.RWMutex
	events  map[string]domain.Event
	types   map[string]domain.TicketType
	entries map[string]domain.LedgerEntry
	tickets map[string]domain.Ticket
	byScan  map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		events:  make(map[string]domain.Event),
		types:   make(map[string]domain.TicketType),
		entries: make(map[string]domain.LedgerEntry),
		tickets: make(map[string]domain.Ticket),
		byScan:  make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}
}

type txKey struct{}

type tx struct {
	held    map[string]*sync.Mutex
	order   []string
	events  map[string]domain.Event
	types   map[string]domain.TicketType
	entries map[string]domain.LedgerEntry
	tickets map[string]domain.Ticket
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	t := &tx{
		held:    make(map[string]*sync.Mutex),
		events:  make(map[string]domain.Event),
		types:   make(map[string]domain.TicketType),
		entries: make(map[string]domain.LedgerEntry),
		tickets: make(map[string]domain.Ticket),
	}
	defer s.release(t)

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tk := range t.tickets {
		if owner, ok := s.byScan[tk.ScanCode]; ok && owner != id {
			return errDuplicate
		}
	}
	for id, e := range t.events {
		s.events[id] = e
	}
	for id, tt := range t.types {
		s.types[id] = tt
	}
	for id, e := range t.entries {
		s.entries[id] = e
	}
	for id, tk := range t.tickets {
		s.tickets[id] = tk
		s.byScan[tk.ScanCode] = id
	}
	return nil
}

func (s *Store) release(t *tx) {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.held[t.order[i]].Unlock()
	}
}

// lock takes the row lock for key when ctx carries a transaction.
func (s *Store) lock(ctx context.Context, key string) {
	t := txFromContext(ctx)
	if t == nil {
		return
	}
	if _, ok := t.held[key]; ok {
		return
	}
	s.locksMu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	t.held[key] = m
	t.order = append(t.order, key)
}

// Events and ticket types.

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return errDuplicate
	}
	s.events[event.ID] = event
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *Store) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[tt.EventID]; !ok {
		return domain.ErrNotFound
	}
	for _, existing := range s.types {
		if existing.ID == tt.ID {
			return errDuplicate
		}
		if existing.EventID == tt.EventID && existing.Name == tt.Name {
			return domain.ErrTicketTypeExists
		}
	}
	s.types[tt.ID] = tt
	return nil
}

func (s *Store) ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	s.mu.RLock()
	var out []domain.TicketType
	for _, tt := range s.types {
		if tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	if t := txFromContext(ctx); t != nil {
		if tt, ok := t.types[id]; ok {
			return tt, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tt, ok := s.types[id]
	if !ok {
		return domain.TicketType{}, domain.ErrNotFound
	}
	return tt, nil
}

func (s *Store) GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error) {
	s.lock(ctx, "type:"+id)
	return s.GetTicketType(ctx, id)
}

func (s *Store) UpdateTicketTypeStock(ctx context.Context, tt domain.TicketType) error {
	if _, err := s.GetTicketType(ctx, tt.ID); err != nil {
		return err
	}
	return s.write(ctx, func(t *tx) { t.types[tt.ID] = tt }, func() { s.types[tt.ID] = tt })
}

func (s *Store) GetSchedule(ctx context.Context, ticketTypeID string) (domain.EventSchedule, error) {
	tt, err := s.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return domain.EventSchedule{}, err
	}
	e, err := s.GetEvent(ctx, tt.EventID)
	if err != nil {
		return domain.EventSchedule{}, err
	}
	return domain.EventSchedule{
		EventID:   e.ID,
		StartsAt:  e.StartsAt,
		EndsAt:    e.EndsAt,
		Location:  e.Location,
		SaleStart: tt.SaleStart,
		SaleEnd:   tt.SaleEnd,
	}, nil
}

// Ledger entries.

func (s *Store) CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	if _, err := s.GetLedgerEntry(ctx, entry.ID); err == nil {
		return errDuplicate
	}
	return s.write(ctx, func(t *tx) { t.entries[entry.ID] = entry }, func() { s.entries[entry.ID] = entry })
}

func (s *Store) GetLedgerEntry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	if t := txFromContext(ctx); t != nil {
		if e, ok := t.entries[id]; ok {
			return e, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.LedgerEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetLedgerEntryForUpdate(ctx context.Context, id string) (domain.LedgerEntry, error) {
	s.lock(ctx, "entry:"+id)
	return s.GetLedgerEntry(ctx, id)
}

func (s *Store) UpdateLedgerEntryState(ctx context.Context, id string, state domain.LedgerState) error {
	e, err := s.GetLedgerEntry(ctx, id)
	if err != nil {
		return err
	}
	e.State = state
	return s.write(ctx, func(t *tx) { t.entries[id] = e }, func() { s.entries[id] = e })
}

func (s *Store) ListExpiredEntries(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.State == domain.LedgerStateActive && e.Expired(now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tickets.

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	if _, err := s.GetTicket(ctx, ticket.ID); err == nil {
		return errDuplicate
	}
	return s.write(ctx, func(t *tx) { t.tickets[ticket.ID] = ticket }, func() {
		s.tickets[ticket.ID] = ticket
		s.byScan[ticket.ScanCode] = ticket.ID
	})
}

func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if t := txFromContext(ctx); t != nil {
		if tk, ok := t.tickets[id]; ok {
			return tk, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tk, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return tk, nil
}

func (s *Store) GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	s.lock(ctx, "ticket:"+id)
	return s.GetTicket(ctx, id)
}

func (s *Store) GetTicketByScanCodeForUpdate(ctx context.Context, code string) (domain.Ticket, error) {
	s.mu.RLock()
	id, ok := s.byScan[code]
	s.mu.RUnlock()
	if !ok {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return s.GetTicketForUpdate(ctx, id)
}

func (s *Store) FindTicketsByIdempotencyKey(ctx context.Context, ticketTypeID, userID, key string) ([]domain.Ticket, error) {
	s.mu.RLock()
	var out []domain.Ticket
	for _, tk := range s.tickets {
		if tk.TicketTypeID == ticketTypeID && tk.OwnerUserID == userID && tk.IdempotencyKey == key {
			out = append(out, tk)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticket domain.Ticket, from domain.TicketState) error {
	current, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if current.State != from {
		return domain.ErrInvalidStateTransition
	}
	ticket.ScanCode = current.ScanCode
	return s.write(ctx, func(t *tx) { t.tickets[ticket.ID] = ticket }, func() { s.tickets[ticket.ID] = ticket })
}

// write buffers a change in the caller's transaction, or applies it
// immediately when there is none.
func (s *Store) write(ctx context.Context, buffered func(t *tx), direct func()) error {
	if t := txFromContext(ctx); t != nil {
		buffered(t)
		return nil
	}
	s.mu.Lock()
	direct()
	s.mu.Unlock()
	return nil
}
