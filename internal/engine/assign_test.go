package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
)

func assignFixture() *fakeStore {
	store := newFakeStore()
	store.addType(1, "IX1")
	store.addType(2, "IX2")
	store.addType(3, "FMY")
	return store
}

func TestBulkAssignAddMode(t *testing.T) {
	store := assignFixture()
	store.addClient(1, "Alpha", "alpha@example.com", 1)

	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)
	result, err := lc.BulkAssign([]uint{1}, AssignOptions{
		ObligationTypeIDs: []uint{1, 3},
		Mode:              ModeAdd,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.ClientsProcessed)
	assert.Equal(t, 1, result.AddedCount)
	assert.Equal(t, 0, result.RemovedCount)
	assert.Equal(t, []string{"FMY"}, result.Details[0].Added)

	profiles, _ := store.ProfilesForClient(1)
	assert.Len(t, profiles, 2)
}

func TestBulkAssignReplaceMode(t *testing.T) {
	store := assignFixture()
	// Client holds IX1 and IX2; the target set is FMY and IX1
	store.addClient(1, "Alpha", "alpha@example.com", 1, 2)

	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)
	result, err := lc.BulkAssign([]uint{1}, AssignOptions{
		ObligationTypeIDs: []uint{3, 1},
		Mode:              ModeReplace,
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"FMY"}, result.Details[0].Added)
	assert.Equal(t, []string{"IX2"}, result.Details[0].Removed)

	profiles, _ := store.ProfilesForClient(1)
	got := make(map[uint]bool)
	for _, p := range profiles {
		got[p.ObligationTypeID] = true
	}
	assert.Equal(t, map[uint]bool{1: true, 3: true}, got)
}

func TestBulkAssignIdempotent(t *testing.T) {
	store := assignFixture()
	store.addClient(1, "Alpha", "alpha@example.com", 1)

	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)
	opts := AssignOptions{ObligationTypeIDs: []uint{1, 3}, Mode: ModeReplace}

	first, err := lc.BulkAssign([]uint{1}, opts)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.AddedCount)

	second, err := lc.BulkAssign([]uint{1}, opts)
	assert.NoError(t, err)
	assert.Equal(t, 0, second.AddedCount)
	assert.Equal(t, 0, second.RemovedCount)
}

func TestBulkAssignGroupExpansion(t *testing.T) {
	store := assignFixture()
	store.addClient(1, "Alpha", "alpha@example.com")
	store.groups[5] = []uint{1, 2}

	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)
	// Group types plus a direct id, with an overlap that must not double
	result, err := lc.BulkAssign([]uint{1}, AssignOptions{
		ObligationTypeIDs: []uint{2, 3},
		ProfileGroupIDs:   []uint{5},
		Mode:              ModeAdd,
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, result.AddedCount)

	profiles, _ := store.ProfilesForClient(1)
	assert.Len(t, profiles, 3)
}

func TestBulkAssignValidation(t *testing.T) {
	store := assignFixture()
	store.addClient(1, "Alpha", "alpha@example.com")
	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)

	_, err := lc.BulkAssign(nil, AssignOptions{ObligationTypeIDs: []uint{1}, Mode: ModeAdd})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = lc.BulkAssign([]uint{1}, AssignOptions{Mode: ModeAdd})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = lc.BulkAssign([]uint{1}, AssignOptions{ObligationTypeIDs: []uint{1}, Mode: "merge"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Unknown obligation type
	_, err = lc.BulkAssign([]uint{1}, AssignOptions{ObligationTypeIDs: []uint{99}, Mode: ModeAdd})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBulkAssignChainedGeneration(t *testing.T) {
	store := assignFixture()
	store.addClient(1, "Alpha", "alpha@example.com")

	lc := NewLifecycle(store, nil, nil, NewGenerator(store, nil), nil)
	result, err := lc.BulkAssign([]uint{1}, AssignOptions{
		ObligationTypeIDs: []uint{1},
		Mode:              ModeAdd,
		GenerateMonth:     3,
		GenerateYear:      2025,
	})
	assert.NoError(t, err)
	assert.NotNil(t, result.Generation)
	assert.Equal(t, 1, result.Generation.CreatedCount)
	assert.Len(t, store.obligations, 1)
}
