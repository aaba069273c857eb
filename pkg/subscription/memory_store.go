package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process RecordStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) GetByCustomerID(_ context.Context, customerID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if customerID == "" {
		return nil, ErrRecordNotFound
	}
	for _, rec := range s.records {
		if rec.BillingCustomerID == customerID {
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStore) Upsert(_ context.Context, userID uuid.UUID, patch Patch) (*Record, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec, ok := s.records[userID]
	if !ok {
		rec = NewRecord(userID)
		rec.CreatedAt = now
	}
	rec = rec.Apply(patch)
	rec.UpdatedAt = now
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	s.records[userID] = rec
	return &rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// KeyedLocker is an in-process Locker keyed by user id.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uuid.UUID]*keyedLock)}
}

func (l *KeyedLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[userID]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(userID, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(userID, kl)
		return nil, ctx.Err()
	}
}

func (l *KeyedLocker) release(userID uuid.UUID, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, userID)
	}
}

// MemoryPet is a pet row held by MemoryUsage.
type MemoryPet struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Active    bool
}

// MemoryUsage is an in-process UsageStore.
type MemoryUsage struct {
	mu       sync.Mutex
	pets     map[uuid.UUID][]MemoryPet
	analyses map[uuid.UUID][]time.Time
}

func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{
		pets:     make(map[uuid.UUID][]MemoryPet),
		analyses: make(map[uuid.UUID][]time.Time),
	}
}

func (u *MemoryUsage) AddPet(userID uuid.UUID, pet MemoryPet) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pets[userID] = append(u.pets[userID], pet)
}

func (u *MemoryUsage) AddAnalysis(userID uuid.UUID, at time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.analyses[userID] = append(u.analyses[userID], at)
}

// Pets returns a copy of the user's pets ordered by creation time.
func (u *MemoryUsage) Pets(userID uuid.UUID) []MemoryPet {
	u.mu.Lock()
	defer u.mu.Unlock()
	pets := slices.Clone(u.pets[userID])
	sortPets(pets)
	return pets
}

func (u *MemoryUsage) CountAnalysesSince(_ context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var n int64
	for _, at := range u.analyses[userID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (u *MemoryUsage) CountPets(_ context.Context, userID uuid.UUID) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var n int64
	for _, p := range u.pets[userID] {
		if p.Active {
			n++
		}
	}
	return n, nil
}

func (u *MemoryUsage) TrimPets(_ context.Context, userID uuid.UUID, keep int) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	pets := u.pets[userID]
	if len(pets) <= keep {
		return 0, nil
	}
	sortPets(pets)
	deleted := int64(len(pets) - keep)
	u.pets[userID] = slices.Clone(pets[:keep])
	return deleted, nil
}

func sortPets(pets []MemoryPet) {
	slices.SortStableFunc(pets, func(a, b MemoryPet) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}

// MemoryDeduper is an in-process EventDeduper.
type MemoryDeduper struct {
	mu     sync.Mutex
	events map[string]bool
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{events: make(map[string]bool)}
}

func (d *MemoryDeduper) Claim(_ context.Context, eventID string) (ClaimResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	done, seen := d.events[eventID]
	switch {
	case !seen:
		d.events[eventID] = false
		return ClaimAcquired, nil
	case done:
		return ClaimDuplicate, nil
	}
	return ClaimInFlight, nil
}

func (d *MemoryDeduper) Complete(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events[eventID] = true
	return nil
}

func (d *MemoryDeduper) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.events, eventID)
	return nil
}
