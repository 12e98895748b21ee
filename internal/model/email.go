package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RuleTrigger is the obligation lifecycle event an automation rule
// listens for.
type RuleTrigger string

const (
	TriggerOnComplete     RuleTrigger = "on_complete"
	TriggerBeforeDeadline RuleTrigger = "before_deadline"
	TriggerOnOverdue      RuleTrigger = "on_overdue"
	TriggerManual         RuleTrigger = "manual"
)

// RuleTiming controls when a matched rule's email goes out.
type RuleTiming string

const (
	TimingImmediate RuleTiming = "immediate"
	TimingDelay1h   RuleTiming = "delay_1h"
	TimingDelay24h  RuleTiming = "delay_24h"
	TimingScheduled RuleTiming = "scheduled"
)

// EmailTemplate holds a subject/body pair with {variable} placeholders.
// A template bound to an obligation type is auto-selected when that type
// triggers a notification; unbound templates are chosen manually.
type EmailTemplate struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name             string         `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	Subject          string         `json:"subject" gorm:"type:varchar(500);not null"`
	Body             string         `json:"body" gorm:"type:text;not null"`
	ObligationTypeID *uint          `json:"obligation_type_id" gorm:"index"`
	IsActive         bool           `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	ObligationType *ObligationType `json:"obligation_type,omitempty" gorm:"foreignKey:ObligationTypeID"`
}

// TableName specifies the table name for EmailTemplate
func (EmailTemplate) TableName() string {
	return "email_templates"
}

// AutomationRule maps a lifecycle trigger to an email template and a
// send timing. An empty obligation-type filter matches every type.
type AutomationRule struct {
	ID                 uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name               string         `json:"name" gorm:"type:varchar(255);not null"`
	Trigger            RuleTrigger    `json:"trigger" gorm:"type:varchar(30);not null;index"`
	Timing             RuleTiming     `json:"timing" gorm:"type:varchar(20);not null;default:immediate"`
	DaysBeforeDeadline int            `json:"days_before_deadline" gorm:"default:0"`
	ScheduledTime      string         `json:"scheduled_time" gorm:"type:varchar(5)"`
	TemplateID         *uint          `json:"template_id" gorm:"index"`
	IsActive           bool           `json:"is_active" gorm:"default:true"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Template        *EmailTemplate   `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	ObligationTypes []ObligationType `json:"obligation_types,omitempty" gorm:"many2many:rule_obligation_types"`
}

// TableName specifies the table name for AutomationRule
func (AutomationRule) TableName() string {
	return "automation_rules"
}

// Validate checks the trigger/timing configuration invariants.
func (r AutomationRule) Validate() error {
	switch r.Trigger {
	case TriggerOnComplete, TriggerBeforeDeadline, TriggerOnOverdue, TriggerManual:
	default:
		return fmt.Errorf("unknown trigger %q", r.Trigger)
	}
	switch r.Timing {
	case TimingImmediate, TimingDelay1h, TimingDelay24h, TimingScheduled:
	default:
		return fmt.Errorf("unknown timing %q", r.Timing)
	}
	if r.Trigger == TriggerBeforeDeadline && r.DaysBeforeDeadline < 1 {
		return fmt.Errorf("trigger %s requires days_before_deadline >= 1", TriggerBeforeDeadline)
	}
	if r.Timing == TimingScheduled {
		if _, err := time.Parse("15:04", r.ScheduledTime); err != nil {
			return fmt.Errorf("timing %s requires scheduled_time in HH:MM form: %w", TimingScheduled, err)
		}
	}
	return nil
}

// MatchesType reports whether the rule's type filter covers the given
// obligation type. No filter rows means the rule matches every type.
func (r AutomationRule) MatchesType(typeID uint) bool {
	if len(r.ObligationTypes) == 0 {
		return true
	}
	for _, t := range r.ObligationTypes {
		if t.ID == typeID {
			return true
		}
	}
	return false
}

// RuleFire records that a scheduled rule already fired for an
// obligation. The composite unique index is the sent-once marker that
// keeps a later sweep from enqueueing a duplicate job.
type RuleFire struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ObligationID uint      `json:"obligation_id" gorm:"not null;uniqueIndex:idx_rule_fire"`
	RuleID       uint      `json:"rule_id" gorm:"not null;uniqueIndex:idx_rule_fire"`
	FiredAt      time.Time `json:"fired_at"`
}

// TableName specifies the table name for RuleFire
func (RuleFire) TableName() string {
	return "rule_fires"
}

// EmailJobStatus is the outbox state of a queued notification.
type EmailJobStatus string

const (
	JobPending EmailJobStatus = "pending"
	JobQueued  EmailJobStatus = "queued"
	JobSent    EmailJobStatus = "sent"
	JobFailed  EmailJobStatus = "failed"
)

// EmailJob is one resolved, ready-to-send notification emitted by the
// rule evaluator and drained asynchronously by the dispatcher.
type EmailJob struct {
	ID             uint              `json:"id" gorm:"primaryKey;autoIncrement"`
	RuleID         *uint             `json:"rule_id" gorm:"index"`
	TemplateID     uint              `json:"template_id" gorm:"not null"`
	ObligationID   uint              `json:"obligation_id" gorm:"index"`
	ClientID       uint              `json:"client_id" gorm:"index"`
	Recipient      string            `json:"recipient" gorm:"type:varchar(255);not null"`
	Context        datatypes.JSONMap `json:"context"`
	SendAt         time.Time         `json:"send_at" gorm:"index"`
	Status         EmailJobStatus    `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	AttachDocument bool              `json:"attach_document" gorm:"default:false"`
	ErrorMsg       string            `json:"error_msg" gorm:"type:text"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableName specifies the table name for EmailJob
func (EmailJob) TableName() string {
	return "email_jobs"
}

// EmailLog is the append-only record of one send attempt. Only the
// status may move, pending to sent or failed.
type EmailLog struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Recipient    string         `json:"recipient" gorm:"type:varchar(255);not null"`
	Subject      string         `json:"subject" gorm:"type:varchar(500)"`
	Body         string         `json:"body" gorm:"type:text"`
	Status       string         `json:"status" gorm:"type:varchar(20);not null"` // sent, failed
	ErrorMsg     string         `json:"error_msg" gorm:"type:text"`
	ObligationID *uint          `json:"obligation_id" gorm:"index"`
	ClientID     *uint          `json:"client_id" gorm:"index"`
	TemplateID   *uint          `json:"template_id" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for EmailLog
func (EmailLog) TableName() string {
	return "email_logs"
}
