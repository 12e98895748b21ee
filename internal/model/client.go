package model

import (
	"time"

	"gorm.io/gorm"
)

// Client is an accounting-practice customer. The AFM (Greek tax
// registration number) is the immutable business identity; contact
// fields are mutable.
type Client struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	AFM       string         `json:"afm" gorm:"type:varchar(20);not null;uniqueIndex"`
	Email     string         `json:"email" gorm:"type:varchar(255)"`
	Phone     string         `json:"phone" gorm:"type:varchar(50)"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Profiles []ObligationProfile `json:"profiles,omitempty" gorm:"foreignKey:ClientID"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}

// ObligationType is shared reference data describing one kind of
// recurring regulatory work (VAT return, payroll filing, ...).
//
// The deadline rule is "day DeadlineDay of the month DeadlineMonthOffset
// months after the period month", clamped to the last day of that month.
type ObligationType struct {
	ID                  uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Code                string         `json:"code" gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                string         `json:"name" gorm:"type:varchar(255);not null"`
	Group               string         `json:"group" gorm:"type:varchar(100)"`
	DeadlineDay         int            `json:"deadline_day" gorm:"default:20"`
	DeadlineMonthOffset int            `json:"deadline_month_offset" gorm:"default:1"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ObligationType
func (ObligationType) TableName() string {
	return "obligation_types"
}

// Deadline computes the concrete due date for a (month, year) period.
func (t ObligationType) Deadline(month, year int) time.Time {
	m := time.Month(month + t.DeadlineMonthOffset)
	// Normalized by time.Date, so December + 1 rolls into next January.
	firstOfNext := time.Date(year, m+1, 1, 0, 0, 0, 0, time.Local)
	lastDay := firstOfNext.AddDate(0, 0, -1).Day()

	day := t.DeadlineDay
	if day < 1 {
		day = 1
	}
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, m, day, 0, 0, 0, 0, time.Local)
}

// ObligationProfile marks "this client recurringly owes this obligation
// type". The composite unique index keeps at most one active row per
// (client, type) pair.
type ObligationProfile struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientID         uint           `json:"client_id" gorm:"not null;uniqueIndex:idx_profile_pair"`
	ObligationTypeID uint           `json:"obligation_type_id" gorm:"not null;uniqueIndex:idx_profile_pair"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	ObligationType *ObligationType `json:"obligation_type,omitempty" gorm:"foreignKey:ObligationTypeID"`
}

// TableName specifies the table name for ObligationProfile
func (ObligationProfile) TableName() string {
	return "obligation_profiles"
}

// ProfileGroup is a named bundle of obligation types ("standard VAT
// client") that bulk assignment expands into individual profiles.
type ProfileGroup struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	ObligationTypes []ObligationType `json:"obligation_types,omitempty" gorm:"many2many:profile_group_types"`
}

// TableName specifies the table name for ProfileGroup
func (ProfileGroup) TableName() string {
	return "profile_groups"
}
