package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// AssignMode selects how bulk assignment treats a client's existing
// profiles.
type AssignMode string

const (
	// ModeAdd inserts missing pairs and leaves existing ones untouched.
	ModeAdd AssignMode = "add"
	// ModeReplace reconciles the client's profile set to exactly the
	// requested types. Implemented as a diff, not delete-then-insert,
	// so concurrent readers never observe an empty profile set.
	ModeReplace AssignMode = "replace"
)

// AssignOptions selects the obligation types to assign, directly or via
// profile groups, and optionally chains into month generation.
type AssignOptions struct {
	ObligationTypeIDs []uint
	ProfileGroupIDs   []uint
	Mode              AssignMode

	// GenerateMonth/GenerateYear, when non-zero, trigger generation for
	// that period for the same client set after assignment. This is an
	// orchestration convenience, not part of the assignment invariant.
	GenerateMonth int
	GenerateYear  int
}

// ClientAssignDetail is one client's entry in the assignment report.
type ClientAssignDetail struct {
	ClientID uint     `json:"client_id"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Error    string   `json:"error,omitempty"`
}

// AssignResult reports a bulk assignment, plus the chained generation
// result when one was requested.
type AssignResult struct {
	ClientsProcessed int                  `json:"clients_processed"`
	AddedCount       int                  `json:"added_count"`
	RemovedCount     int                  `json:"removed_count"`
	Details          []ClientAssignDetail `json:"details"`
	Generation       *GenerationResult    `json:"generation,omitempty"`
}

// BulkAssign assigns obligation type profiles to a set of clients.
// Both modes are idempotent: the same call twice yields the same end
// state. Per-client failures are isolated in the detail entries.
func (l *Lifecycle) BulkAssign(clientIDs []uint, opts AssignOptions) (*AssignResult, error) {
	if len(clientIDs) == 0 {
		return nil, fmt.Errorf("%w: no clients given", apperr.ErrValidation)
	}
	if len(opts.ObligationTypeIDs) == 0 && len(opts.ProfileGroupIDs) == 0 {
		return nil, fmt.Errorf("%w: one of obligation_type_ids or profile_group_ids is required", apperr.ErrValidation)
	}
	if opts.Mode != ModeAdd && opts.Mode != ModeReplace {
		return nil, fmt.Errorf("%w: unknown mode %q", apperr.ErrValidation, opts.Mode)
	}

	typeIDs, err := l.resolveTypeIDs(opts)
	if err != nil {
		return nil, err
	}
	types, err := l.store.TypesByID(typeIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range typeIDs {
		if _, ok := types[id]; !ok {
			return nil, fmt.Errorf("%w: unknown obligation type %d", apperr.ErrValidation, id)
		}
	}

	result := &AssignResult{}
	for _, clientID := range clientIDs {
		detail := l.assignClient(clientID, typeIDs, types, opts.Mode)
		result.AddedCount += len(detail.Added)
		result.RemovedCount += len(detail.Removed)
		result.Details = append(result.Details, detail)
	}
	result.ClientsProcessed = len(result.Details)
	logrus.Infof("Bulk assign (%s): %d clients, %d added, %d removed",
		opts.Mode, result.ClientsProcessed, result.AddedCount, result.RemovedCount)

	if opts.GenerateMonth != 0 && opts.GenerateYear != 0 && l.generator != nil {
		gen, err := l.generator.GenerateMonth(opts.GenerateMonth, opts.GenerateYear, clientIDs)
		if err != nil {
			return nil, fmt.Errorf("assignment succeeded but chained generation failed: %w", err)
		}
		result.Generation = gen
	}
	return result, nil
}

func (l *Lifecycle) resolveTypeIDs(opts AssignOptions) ([]uint, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, id := range opts.ObligationTypeIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	groupTypes, err := l.store.GroupTypeIDs(opts.ProfileGroupIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range groupTypes {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: profile groups expanded to no obligation types", apperr.ErrValidation)
	}
	return ids, nil
}

func (l *Lifecycle) assignClient(clientID uint, want []uint, types map[uint]model.ObligationType, mode AssignMode) ClientAssignDetail {
	detail := ClientAssignDetail{ClientID: clientID, Added: []string{}, Removed: []string{}}

	existing, err := l.store.ProfilesForClient(clientID)
	if err != nil {
		detail.Error = err.Error()
		return detail
	}
	have := make(map[uint]bool, len(existing))
	haveCodes := make(map[uint]string, len(existing))
	for _, p := range existing {
		have[p.ObligationTypeID] = true
		if p.ObligationType != nil {
			haveCodes[p.ObligationTypeID] = p.ObligationType.Code
		}
	}
	wanted := make(map[uint]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}

	for _, id := range want {
		if have[id] {
			continue
		}
		err := l.store.AddProfile(clientID, id)
		if err != nil && !errors.Is(err, apperr.ErrDuplicate) {
			detail.Error = err.Error()
			return detail
		}
		// A duplicate means a concurrent assign already added the pair,
		// which is the end state this call wanted anyway.
		detail.Added = append(detail.Added, types[id].Code)
	}

	if mode == ModeReplace {
		var remove []uint
		for _, p := range existing {
			if !wanted[p.ObligationTypeID] {
				remove = append(remove, p.ObligationTypeID)
			}
		}
		if len(remove) > 0 {
			if err := l.store.RemoveProfiles(clientID, remove); err != nil {
				detail.Error = err.Error()
				return detail
			}
			for _, id := range remove {
				if code, ok := haveCodes[id]; ok {
					detail.Removed = append(detail.Removed, code)
				} else {
					detail.Removed = append(detail.Removed, fmt.Sprintf("type_%d", id))
				}
			}
		}
	}
	return detail
}
