package store

import (
	"time"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// CreateObligation inserts one generated work item. A racing insert on
// the same (client, type, month, year) key loses to the unique index
// and comes back as apperr.ErrDuplicate, which generation treats as a
// skip, not a failure.
func (s *Store) CreateObligation(o *model.Obligation) error {
	return wrap("failed to create obligation", s.db.Create(o).Error)
}

func (s *Store) GetObligation(id uint) (*model.Obligation, error) {
	var o model.Obligation
	err := s.db.Preload("Client").Preload("ObligationType").First(&o, id).Error
	if err != nil {
		return nil, wrap("failed to get obligation", err)
	}
	return &o, nil
}

func (s *Store) SaveObligation(o *model.Obligation) error {
	return wrap("failed to save obligation", s.db.Save(o).Error)
}

// ObligationFilter narrows ListObligations. Zero values mean "any".
// Now anchors the status filter: a pending row past its deadline reads
// overdue between sweeps, and the filter matches that reading.
type ObligationFilter struct {
	ClientID uint
	TypeID   uint
	Status   model.ObligationStatus
	Month    int
	Year     int
	Now      time.Time
	Offset   int
	Limit    int
}

func (s *Store) ListObligations(f ObligationFilter) ([]model.Obligation, int64, error) {
	q := s.db.Model(&model.Obligation{})
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.TypeID != 0 {
		q = q.Where("obligation_type_id = ?", f.TypeID)
	}
	if f.Status != "" {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		active := []model.ObligationStatus{model.StatusPending, model.StatusInProgress}
		switch f.Status {
		case model.StatusOverdue:
			// Rows past deadline but not yet swept count as overdue.
			q = q.Where("status = ? OR (status IN ? AND deadline < ?)",
				model.StatusOverdue, active, now)
		case model.StatusPending, model.StatusInProgress:
			// Deadlines are always set at generation, so past-deadline
			// rows are excluded here and surface under overdue instead.
			q = q.Where("status = ? AND deadline >= ?", f.Status, now)
		default:
			q = q.Where("status = ?", f.Status)
		}
	}
	if f.Month != 0 {
		q = q.Where("month = ?", f.Month)
	}
	if f.Year != 0 {
		q = q.Where("year = ?", f.Year)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap("failed to count obligations", err)
	}

	var obligations []model.Obligation
	err := q.Preload("Client").Preload("ObligationType").
		Order("deadline ASC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&obligations).Error
	if err != nil {
		return nil, 0, wrap("failed to list obligations", err)
	}
	return obligations, total, nil
}

// PendingInDeadlineWindow returns pending/in-progress obligations whose
// deadline falls inside [from, to), with client and type preloaded for
// rule evaluation.
func (s *Store) PendingInDeadlineWindow(from, to time.Time) ([]model.Obligation, error) {
	var obligations []model.Obligation
	err := s.db.Preload("Client").Preload("ObligationType").
		Where("status IN ? AND deadline >= ? AND deadline < ?",
			[]model.ObligationStatus{model.StatusPending, model.StatusInProgress}, from, to).
		Find(&obligations).Error
	if err != nil {
		return nil, wrap("failed to scan deadline window", err)
	}
	return obligations, nil
}

func (s *Store) CreateDocument(d *model.Document) error {
	return wrap("failed to create document", s.db.Create(d).Error)
}

// LatestDocumentForObligation returns the newest document linked to an
// obligation, for attach-to-email flows.
func (s *Store) LatestDocumentForObligation(obligationID uint) (*model.Document, error) {
	var d model.Document
	err := s.db.Where("obligation_id = ?", obligationID).
		Order("created_at DESC").First(&d).Error
	if err != nil {
		return nil, wrap("failed to find obligation document", err)
	}
	return &d, nil
}

func (s *Store) GetDocument(id uint) (*model.Document, error) {
	var d model.Document
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, wrap("failed to get document", err)
	}
	return &d, nil
}
