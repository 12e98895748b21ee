package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// testStore opens a throwaway sqlite database. The queries under test
// are portable gorm, so sqlite stands in for mysql here.
func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := New(db)
	if err := s.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSaveRuleReplacesTypeFilter(t *testing.T) {
	s := testStore(t)
	fpa := model.ObligationType{Code: "FPA", Name: "VAT return"}
	fmy := model.ObligationType{Code: "FMY", Name: "Payroll withholding"}
	assert.NoError(t, s.CreateType(&fpa))
	assert.NoError(t, s.CreateType(&fmy))

	rule := model.AutomationRule{
		Name:            "completion notice",
		Trigger:         model.TriggerOnComplete,
		Timing:          model.TimingImmediate,
		IsActive:        true,
		ObligationTypes: []model.ObligationType{fpa, fmy},
	}
	assert.NoError(t, s.CreateRule(&rule))

	// Narrow the filter to one type; the join row for the other must go.
	rule.ObligationTypes = []model.ObligationType{fpa}
	assert.NoError(t, s.SaveRule(&rule))

	got, err := s.GetRule(rule.ID)
	assert.NoError(t, err)
	assert.Len(t, got.ObligationTypes, 1)
	assert.True(t, got.MatchesType(fpa.ID))
	assert.False(t, got.MatchesType(fmy.ID))

	active, err := s.ActiveRulesByTrigger(model.TriggerOnComplete)
	assert.NoError(t, err)
	assert.Len(t, active, 1)
	assert.False(t, active[0].MatchesType(fmy.ID))

	// An emptied filter matches every type again
	rule.ObligationTypes = nil
	assert.NoError(t, s.SaveRule(&rule))
	got, err = s.GetRule(rule.ID)
	assert.NoError(t, err)
	assert.Empty(t, got.ObligationTypes)
	assert.True(t, got.MatchesType(fmy.ID))
}

func TestListObligationsStatusFilterMatchesEffectiveStatus(t *testing.T) {
	s := testStore(t)
	now := time.Now()
	seed := func(clientID uint, status model.ObligationStatus, deadline time.Time) {
		o := model.Obligation{
			ClientID: clientID, ObligationTypeID: 1,
			Month: 3, Year: 2025, Status: status, Deadline: deadline,
		}
		assert.NoError(t, s.CreateObligation(&o))
	}
	seed(1, model.StatusPending, now.AddDate(0, 0, -2)) // overdue between sweeps
	seed(2, model.StatusPending, now.AddDate(0, 0, 5))
	seed(3, model.StatusOverdue, now.AddDate(0, 0, -10))
	seed(4, model.StatusCompleted, now.AddDate(0, 0, -10))

	overdue, total, err := s.ListObligations(ObligationFilter{Status: model.StatusOverdue, Now: now, Limit: 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, overdue, 2)
	for _, o := range overdue {
		assert.Equal(t, model.StatusOverdue, o.EffectiveStatus(now))
	}

	pending, total, err := s.ListObligations(ObligationFilter{Status: model.StatusPending, Now: now, Limit: 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, pending, 1)
	assert.Equal(t, uint(2), pending[0].ClientID)

	completed, total, err := s.ListObligations(ObligationFilter{Status: model.StatusCompleted, Now: now, Limit: 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, completed, 1)
	assert.Equal(t, uint(4), completed[0].ClientID)
}

func TestDocumentLookup(t *testing.T) {
	s := testStore(t)
	doc := model.Document{
		ClientID:  1,
		ObjectKey: "clients/1/general/abc_fpa_03_2025.pdf",
		Filename:  "fpa_03_2025.pdf",
		Category:  "general",
		SizeBytes: 3,
	}
	assert.NoError(t, s.CreateDocument(&doc))

	got, err := s.GetDocument(doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, "fpa_03_2025.pdf", got.Filename)
	assert.Equal(t, doc.ObjectKey, got.ObjectKey)

	_, err = s.GetDocument(999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
