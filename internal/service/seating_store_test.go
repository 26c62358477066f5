package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-seating-api/internal/models"
	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
	"github.com/noah-isme/sma-seating-api/pkg/events"
)

// memSeatingStore is an in-memory stand-in for the seat and assignment
// repositories. WithinTx serialises callbacks and restores a snapshot when
// the callback fails, and Create enforces the partial unique indexes.
type memSeatingStore struct {
	txMu sync.Mutex

	mu          sync.Mutex
	seats       map[string]models.Seat
	assignments []models.SeatAssignment
	seq         int

	failCreateFor map[string]error
	failUpdate    error
	failListAll   error
	txCount       int
}

func newMemSeatingStore(seatNumbers ...int) *memSeatingStore {
	store := &memSeatingStore{seats: make(map[string]models.Seat), failCreateFor: make(map[string]error)}
	now := time.Now().UTC()
	for _, n := range seatNumbers {
		store.seats[models.SeatID(n)] = models.NewSeat(n, 6, now)
	}
	return store
}

func (s *memSeatingStore) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}

	s.mu.Lock()
	s.txCount++
	seats := make(map[string]models.Seat, len(s.seats))
	for k, v := range s.seats {
		seats[k] = v
	}
	assignments := append([]models.SeatAssignment(nil), s.assignments...)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.seats = seats
		s.assignments = assignments
		s.mu.Unlock()
		return err
	}
	return nil
}

// seat side

func (s *memSeatingStore) Create(ctx context.Context, exec sqlx.ExtContext, seat *models.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.seats {
		if existing.SeatNumber == seat.SeatNumber {
			return appErrors.Clone(appErrors.ErrDuplicateSeatNumber, "")
		}
	}
	s.seats[seat.ID] = *seat
	return nil
}

func (s *memSeatingStore) CreateBatch(ctx context.Context, exec sqlx.ExtContext, seats []models.Seat) error {
	for i := range seats {
		if err := s.Create(ctx, exec, &seats[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSeatingStore) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, nil
	}
	return &seat, nil
}

func (s *memSeatingStore) seatByID(id string) (*models.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &seat, nil
}

func (s *memSeatingStore) List(ctx context.Context, filter models.SeatFilter) ([]models.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		if filter.Status != nil && seat.Status != *filter.Status {
			continue
		}
		if filter.Active != nil && seat.IsActive != *filter.Active {
			continue
		}
		if filter.Available && !seat.Available() {
			continue
		}
		items = append(items, seat)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SeatNumber < items[j].SeatNumber })
	return items, nil
}

func (s *memSeatingStore) ListAll(ctx context.Context) ([]models.Seat, error) {
	if s.failListAll != nil {
		return nil, s.failListAll
	}
	return s.List(ctx, models.SeatFilter{})
}

func (s *memSeatingStore) ListActive(ctx context.Context) ([]models.Seat, error) {
	active := true
	return s.List(ctx, models.SeatFilter{Active: &active})
}

func (s *memSeatingStore) ExistingNumbers(ctx context.Context, exec sqlx.ExtContext, start, end int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var numbers []int
	for _, seat := range s.seats {
		if seat.SeatNumber >= start && seat.SeatNumber <= end {
			numbers = append(numbers, seat.SeatNumber)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

func (s *memSeatingStore) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SeatStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	seat, ok := s.seats[id]
	if !ok {
		return sql.ErrNoRows
	}
	seat.Status = status
	seat.LastUpdated = time.Now().UTC()
	s.seats[id] = seat
	return nil
}

func (s *memSeatingStore) ResetOccupied(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, seat := range s.seats {
		if seat.Status == models.SeatStatusOccupied {
			seat.Status = models.SeatStatusVacant
			s.seats[id] = seat
			n++
		}
	}
	return n, nil
}

func (s *memSeatingStore) SetActive(ctx context.Context, id string, active bool) (*models.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	seat.IsActive = active
	s.seats[id] = seat
	return &seat, nil
}

func (s *memSeatingStore) CountByStatus(ctx context.Context) ([]models.SeatStatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		status models.SeatStatus
		active bool
	}
	counts := make(map[key]int)
	for _, seat := range s.seats {
		counts[key{seat.Status, seat.IsActive}]++
	}
	rows := make([]models.SeatStatusCount, 0, len(counts))
	for k, v := range counts {
		rows = append(rows, models.SeatStatusCount{Status: k.status, IsActive: k.active, Count: v})
	}
	return rows, nil
}

// test helpers

func (s *memSeatingStore) seat(id string) models.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[id]
}

func (s *memSeatingStore) setSeat(seat models.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[seat.ID] = seat
}

func (s *memSeatingStore) deleteSeat(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seats, id)
}

// forceAssignment appends an active binding without any checks, the way an
// out-of-band writer would.
func (s *memSeatingStore) forceAssignment(seatID, studentID string) models.SeatAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	now := time.Now().UTC().Add(time.Duration(s.seq) * time.Millisecond)
	a := models.SeatAssignment{
		ID:           fmt.Sprintf("forced-%d", s.seq),
		SeatID:       seatID,
		StudentID:    studentID,
		AssignedDate: now,
		Status:       models.AssignmentStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.assignments = append(s.assignments, a)
	return a
}

func (s *memSeatingStore) activeFor(seatID string) []models.SeatAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.SeatAssignment
	for _, a := range s.assignments {
		if a.Active() && a.SeatID == seatID {
			items = append(items, a)
		}
	}
	return items
}

// ledger side

type memLedger struct {
	*memSeatingStore
}

func (l memLedger) Create(ctx context.Context, exec sqlx.ExtContext, a *models.SeatAssignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failCreateFor[a.StudentID]; err != nil {
		return err
	}
	for _, existing := range l.assignments {
		if !existing.Active() {
			continue
		}
		if existing.SeatID == a.SeatID {
			return appErrors.Clone(appErrors.ErrSeatAlreadyAssigned, "")
		}
		if existing.StudentID == a.StudentID {
			return appErrors.Clone(appErrors.ErrStudentAlreadyAssigned, "")
		}
	}
	l.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("asg-%d", l.seq)
	}
	if a.Status == "" {
		a.Status = models.AssignmentStatusActive
	}
	now := time.Now().UTC().Add(time.Duration(l.seq) * time.Millisecond)
	a.CreatedAt = now
	a.UpdatedAt = now
	l.assignments = append(l.assignments, *a)
	return nil
}

func (l memLedger) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SeatAssignment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.assignments {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l memLedger) findActive(match func(models.SeatAssignment) bool) *models.SeatAssignment {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.assignments {
		if a.Active() && match(a) {
			found := a
			return &found
		}
	}
	return nil
}

func (l memLedger) FindActiveBySeat(ctx context.Context, exec sqlx.ExtContext, seatID string) (*models.SeatAssignment, error) {
	return l.findActive(func(a models.SeatAssignment) bool { return a.SeatID == seatID }), nil
}

func (l memLedger) FindActiveByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.SeatAssignment, error) {
	return l.findActive(func(a models.SeatAssignment) bool { return a.StudentID == studentID }), nil
}

func (l memLedger) FindActiveBySeatAndStudent(ctx context.Context, exec sqlx.ExtContext, seatID, studentID string) (*models.SeatAssignment, error) {
	return l.findActive(func(a models.SeatAssignment) bool { return a.SeatID == seatID && a.StudentID == studentID }), nil
}

func (l memLedger) Release(ctx context.Context, exec sqlx.ExtContext, id string, params models.ReleaseParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.assignments {
		if a.ID != id {
			continue
		}
		if !a.Active() {
			return appErrors.Clone(appErrors.ErrNotActive, "")
		}
		releasedAt := params.ReleasedAt
		a.Status = models.AssignmentStatusReleased
		a.ReleasedBy = params.ReleasedBy
		a.ReleaseNotes = params.Notes
		a.ReleasedAt = &releasedAt
		a.UpdatedAt = releasedAt
		l.assignments[i] = a
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotActive, "")
}

func (l memLedger) history(match func(models.SeatAssignment) bool) []models.SeatAssignment {
	l.mu.Lock()
	defer l.mu.Unlock()
	var items []models.SeatAssignment
	for _, a := range l.assignments {
		if match(a) {
			items = append(items, a)
		}
	}
	return items
}

func (l memLedger) HistoryBySeat(ctx context.Context, seatID string) ([]models.SeatAssignment, error) {
	return l.history(func(a models.SeatAssignment) bool { return a.SeatID == seatID }), nil
}

func (l memLedger) HistoryByStudent(ctx context.Context, studentID string) ([]models.SeatAssignment, error) {
	return l.history(func(a models.SeatAssignment) bool { return a.StudentID == studentID }), nil
}

func (l memLedger) ListActive(ctx context.Context) ([]models.SeatAssignment, error) {
	return l.history(func(a models.SeatAssignment) bool { return a.Active() }), nil
}

func (l memLedger) List(ctx context.Context, filter models.SeatAssignmentFilter) ([]models.SeatAssignment, int, error) {
	items := l.history(func(a models.SeatAssignment) bool {
		if filter.SeatID != "" && a.SeatID != filter.SeatID {
			return false
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			return false
		}
		return filter.Status == "" || a.Status == filter.Status
	})
	return items, len(items), nil
}

func (l memLedger) CountByStatus(ctx context.Context) (map[models.AssignmentStatus]int, error) {
	counts := make(map[models.AssignmentStatus]int)
	for _, a := range l.history(func(models.SeatAssignment) bool { return true }) {
		counts[a.Status]++
	}
	return counts, nil
}

func (l memLedger) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int64(len(l.assignments))
	l.assignments = nil
	return n, nil
}

// seatReader adapts the store to the FindByID signature used by the
// allocation service.
type memSeats struct {
	*memSeatingStore
}

func (s memSeats) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Seat, error) {
	return s.seatByID(id)
}

type memCacheRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{data: make(map[string][]byte)}
}

func (c *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCacheRepo) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	c.deletes++
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []events.Message
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type studentDirectoryStub struct {
	known map[string]bool
	err   error
}

func (s studentDirectoryStub) Exists(ctx context.Context, id string) (bool, error) {
	return s.known[id], s.err
}

type lockStub struct {
	mu       sync.Mutex
	held     bool
	acquired int
}

func (l *lockStub) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, appErrors.Clone(appErrors.ErrLocked, name+" is already running")
	}
	l.held = true
	l.acquired++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		return nil
	}, nil
}
