package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ObligationStatus is the lifecycle state of one obligation instance.
type ObligationStatus string

const (
	StatusPending    ObligationStatus = "pending"
	StatusInProgress ObligationStatus = "in_progress"
	StatusCompleted  ObligationStatus = "completed"
	StatusOverdue    ObligationStatus = "overdue"
	StatusCancelled  ObligationStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s ObligationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo validates a user-driven lifecycle transition.
// Overdue entry is time-driven and handled separately by the sweep.
func (s ObligationStatus) CanTransitionTo(next ObligationStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	case StatusOverdue:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Obligation is one generated work item: a client owing one obligation
// type for one (month, year) period. The composite unique index on
// (client_id, obligation_type_id, month, year) is the generation
// idempotence key; the database enforces it so racing generators cannot
// insert duplicates.
type Obligation struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID         uint           `json:"client_id" gorm:"not null;uniqueIndex:idx_obligation_period"`
	ObligationTypeID uint           `json:"obligation_type_id" gorm:"not null;uniqueIndex:idx_obligation_period"`
	Month            int            `json:"month" gorm:"not null;uniqueIndex:idx_obligation_period"`
	Year             int            `json:"year" gorm:"not null;uniqueIndex:idx_obligation_period"`
	Deadline         time.Time      `json:"deadline"`
	Status           ObligationStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	AssignedTo       string         `json:"assigned_to" gorm:"type:varchar(255)"`
	DocumentsCount   int            `json:"documents_count" gorm:"default:0"`
	Notes            string         `json:"notes" gorm:"type:text"`
	CompletedAt      *time.Time     `json:"completed_at"`
	TimeSpentMinutes int            `json:"time_spent_minutes" gorm:"default:0"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Client         *Client         `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	ObligationType *ObligationType `json:"obligation_type,omitempty" gorm:"foreignKey:ObligationTypeID"`
}

// TableName specifies the table name for Obligation
func (Obligation) TableName() string {
	return "obligations"
}

// PeriodDisplay renders the period as MM/YYYY for template variables.
func (o Obligation) PeriodDisplay() string {
	return fmt.Sprintf("%02d/%04d", o.Month, o.Year)
}

// EffectiveStatus folds lazy overdue detection into reads: a pending or
// in-progress obligation whose deadline has passed is reported overdue
// even before the sweep has persisted the transition.
func (o Obligation) EffectiveStatus(now time.Time) ObligationStatus {
	if (o.Status == StatusPending || o.Status == StatusInProgress) &&
		!o.Deadline.IsZero() && o.Deadline.Before(now) {
		return StatusOverdue
	}
	return o.Status
}
