package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// fakeStore is an in-memory stand-in for the data layer, shared by the
// generator, lifecycle and assignment tests. Bulk operations hit it
// from several goroutines, hence the lock.
type fakeStore struct {
	mu      sync.Mutex
	clients     []model.Client
	types       map[uint]model.ObligationType
	profiles    map[uint][]model.ObligationProfile
	groups      map[uint][]uint
	obligations map[uint]*model.Obligation

	nextID        uint
	createdKeys   map[string]bool
	failCreateFor uint
	failSaveFor   uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		types:       make(map[uint]model.ObligationType),
		profiles:    make(map[uint][]model.ObligationProfile),
		groups:      make(map[uint][]uint),
		obligations: make(map[uint]*model.Obligation),
		createdKeys: make(map[string]bool),
	}
}

func (f *fakeStore) addType(id uint, code string) {
	f.types[id] = model.ObligationType{ID: id, Code: code, Name: code, DeadlineDay: 20, DeadlineMonthOffset: 1}
}

func (f *fakeStore) addClient(id uint, name, email string, typeIDs ...uint) {
	f.clients = append(f.clients, model.Client{ID: id, Name: name, Email: email, Active: true})
	for _, tid := range typeIDs {
		t := f.types[tid]
		f.profiles[id] = append(f.profiles[id], model.ObligationProfile{
			ClientID: id, ObligationTypeID: tid, ObligationType: &t,
		})
	}
}

func (f *fakeStore) ActiveClients(ids []uint) ([]model.Client, error) {
	if len(ids) == 0 {
		return f.clients, nil
	}
	var out []model.Client
	for _, c := range f.clients {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ProfilesForClient(clientID uint) ([]model.ObligationProfile, error) {
	return f.profiles[clientID], nil
}

func (f *fakeStore) CreateObligation(o *model.Obligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateFor != 0 && o.ClientID == f.failCreateFor {
		return errors.New("insert failed")
	}
	key := fmt.Sprintf("%d-%d-%d-%d", o.ClientID, o.ObligationTypeID, o.Month, o.Year)
	if f.createdKeys[key] {
		return apperr.ErrDuplicate
	}
	f.createdKeys[key] = true
	f.nextID++
	o.ID = f.nextID
	stored := *o
	f.obligations[o.ID] = &stored
	return nil
}

func (f *fakeStore) GetObligation(id uint) (*model.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.obligations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) SaveObligation(o *model.Obligation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaveFor != 0 && o.ID == f.failSaveFor {
		return errors.New("save failed")
	}
	cp := *o
	f.obligations[o.ID] = &cp
	return nil
}

func (f *fakeStore) PendingInDeadlineWindow(from, to time.Time) ([]model.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Obligation
	for _, o := range f.obligations {
		if o.Status != model.StatusPending && o.Status != model.StatusInProgress {
			continue
		}
		if !o.Deadline.Before(from) && o.Deadline.Before(to) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) AddProfile(clientID, typeID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles[clientID] {
		if p.ObligationTypeID == typeID {
			return apperr.ErrDuplicate
		}
	}
	t := f.types[typeID]
	f.profiles[clientID] = append(f.profiles[clientID], model.ObligationProfile{
		ClientID: clientID, ObligationTypeID: typeID, ObligationType: &t,
	})
	return nil
}

func (f *fakeStore) RemoveProfiles(clientID uint, typeIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []model.ObligationProfile
	for _, p := range f.profiles[clientID] {
		remove := false
		for _, tid := range typeIDs {
			if p.ObligationTypeID == tid {
				remove = true
			}
		}
		if !remove {
			kept = append(kept, p)
		}
	}
	f.profiles[clientID] = kept
	return nil
}

func (f *fakeStore) GroupTypeIDs(groupIDs []uint) ([]uint, error) {
	var out []uint
	for _, gid := range groupIDs {
		out = append(out, f.groups[gid]...)
	}
	return out, nil
}

func (f *fakeStore) TypesByID(ids []uint) (map[uint]model.ObligationType, error) {
	out := make(map[uint]model.ObligationType)
	for _, id := range ids {
		if t, ok := f.types[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

// fakeNotifier records lifecycle events instead of evaluating rules.
type fakeNotifier struct {
	mu       sync.Mutex
	events   []model.RuleTrigger
	manual   []uint
	jobs     int
	failWith error
}

func (n *fakeNotifier) ObligationEvent(o *model.Obligation, trigger model.RuleTrigger) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return 0, n.failWith
	}
	n.events = append(n.events, trigger)
	return n.jobs, nil
}

func (n *fakeNotifier) ManualNotify(o *model.Obligation, templateID uint, attachDocument bool) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return 0, n.failWith
	}
	n.manual = append(n.manual, templateID)
	return n.jobs, nil
}

func TestGenerateMonthCreatesFromProfiles(t *testing.T) {
	store := newFakeStore()
	store.addType(1, "FPA")
	store.addType(2, "MISTH")
	store.addClient(1, "Alpha", "alpha@example.com", 1, 2)
	store.addClient(2, "Beta", "beta@example.com", 1)

	gen := NewGenerator(store, nil)
	result, err := gen.GenerateMonth(3, 2025, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, result.CreatedCount)
	assert.Equal(t, 0, result.SkippedCount)
	assert.Equal(t, 2, result.ClientsProcessed)

	// Every created obligation is pending with a computed deadline
	for _, o := range store.obligations {
		assert.Equal(t, model.StatusPending, o.Status)
		assert.Equal(t, 3, o.Month)
		assert.Equal(t, 2025, o.Year)
		assert.Equal(t, time.Month(4), o.Deadline.Month())
		assert.Equal(t, 20, o.Deadline.Day())
	}
}

func TestGenerateMonthIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addType(1, "FPA")
	store.addClient(1, "Alpha", "alpha@example.com", 1)

	gen := NewGenerator(store, nil)
	first, err := gen.GenerateMonth(3, 2025, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.CreatedCount)

	second, err := gen.GenerateMonth(3, 2025, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Equal(t, 1, second.SkippedCount)
	assert.Equal(t, []string{"FPA"}, second.Details[0].Skipped)
	assert.Len(t, store.obligations, 1)
}

func TestGenerateMonthNoProfiles(t *testing.T) {
	store := newFakeStore()
	store.addClient(1, "Empty", "empty@example.com")

	gen := NewGenerator(store, nil)
	result, err := gen.GenerateMonth(3, 2025, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.CreatedCount)
	assert.Equal(t, 1, result.ClientsProcessed)
	assert.Equal(t, "no profile configured", result.Details[0].Note)
}

func TestGenerateMonthValidation(t *testing.T) {
	gen := NewGenerator(newFakeStore(), nil)

	_, err := gen.GenerateMonth(0, 2025, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = gen.GenerateMonth(13, 2025, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = gen.GenerateMonth(3, 1999, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGenerateMonthClientFailureIsolated(t *testing.T) {
	store := newFakeStore()
	store.addType(1, "FPA")
	store.addClient(1, "Broken", "broken@example.com", 1)
	store.addClient(2, "Fine", "fine@example.com", 1)
	store.failCreateFor = 1

	gen := NewGenerator(store, nil)
	result, err := gen.GenerateMonth(3, 2025, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 2, result.ClientsProcessed)
	assert.NotEmpty(t, result.Details[0].Error)
	assert.Empty(t, result.Details[1].Error)
}

func TestGenerateMonthClientSubset(t *testing.T) {
	store := newFakeStore()
	store.addType(1, "FPA")
	store.addClient(1, "Alpha", "alpha@example.com", 1)
	store.addClient(2, "Beta", "beta@example.com", 1)

	gen := NewGenerator(store, nil)
	result, err := gen.GenerateMonth(3, 2025, []uint{2})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.ClientsProcessed)
	assert.Equal(t, uint(2), result.Details[0].ClientID)
}
