// Package automation evaluates email automation rules against
// obligation lifecycle events and turns matches into queued
// notification jobs. It never sends mail itself; the dispatcher drains
// the queue.
package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// RuleStore is the slice of the data layer rule evaluation needs.
type RuleStore interface {
	GetObligation(id uint) (*model.Obligation, error)
	ActiveRulesByTrigger(trigger model.RuleTrigger) ([]model.AutomationRule, error)
	ActiveTemplateForType(typeID uint) (*model.EmailTemplate, error)
	GetTemplate(id uint) (*model.EmailTemplate, error)
	EnqueueJob(job *model.EmailJob) error
	EnqueueJobOnce(job *model.EmailJob, obligationID, ruleID uint) error
	PendingInDeadlineWindow(from, to time.Time) ([]model.Obligation, error)
}

// Event is one obligation lifecycle event handed to the evaluator. The
// evaluator does not care how it was raised: user action and sweep
// produce the same shape.
type Event struct {
	ObligationID     uint
	ClientID         uint
	ObligationTypeID uint
	Trigger          model.RuleTrigger
}

// Evaluator matches automation rules to lifecycle events.
type Evaluator struct {
	store          RuleStore
	companyName    string
	accountantName string
	metrics        *metrics.Metrics
}

func NewEvaluator(store RuleStore, companyName, accountantName string, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		store:          store,
		companyName:    companyName,
		accountantName: accountantName,
		metrics:        m,
	}
}

// Evaluate runs the full matching algorithm for one event: every active
// rule with the event's trigger whose type filter is empty or contains
// the event's obligation type fires. Multiple matches all fire. Returns
// the enqueued jobs.
func (e *Evaluator) Evaluate(ev Event) ([]model.EmailJob, error) {
	obligation, err := e.store.GetObligation(ev.ObligationID)
	if err != nil {
		return nil, err
	}
	return e.evaluateObligation(obligation, ev.Trigger)
}

// ObligationEvent adapts a lifecycle callback to Evaluate and reports
// how many jobs were enqueued.
func (e *Evaluator) ObligationEvent(o *model.Obligation, trigger model.RuleTrigger) (int, error) {
	jobs, err := e.evaluateObligation(o, trigger)
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

func (e *Evaluator) evaluateObligation(o *model.Obligation, trigger model.RuleTrigger) ([]model.EmailJob, error) {
	if o.Client == nil || o.ObligationType == nil {
		loaded, err := e.store.GetObligation(o.ID)
		if err != nil {
			return nil, err
		}
		o = loaded
	}

	rules, err := e.store.ActiveRulesByTrigger(trigger)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var enqueued []model.EmailJob
	for i := range rules {
		rule := rules[i]
		if !rule.MatchesType(o.ObligationTypeID) {
			continue
		}
		job, err := e.buildJob(o, &rule, now)
		if err != nil {
			logrus.Warnf("Rule %d skipped for obligation %d: %v", rule.ID, o.ID, err)
			continue
		}
		if err := e.store.EnqueueJob(job); err != nil {
			return enqueued, fmt.Errorf("%w: rule %d: %v", apperr.ErrDispatch, rule.ID, err)
		}
		e.countEnqueued()
		enqueued = append(enqueued, *job)
	}
	return enqueued, nil
}

// ManualNotify enqueues one immediate job for an explicitly chosen
// template, bypassing rule matching. Used by bulk completion with a
// manual template choice.
func (e *Evaluator) ManualNotify(o *model.Obligation, templateID uint, attachDocument bool) (int, error) {
	if o.Client == nil {
		loaded, err := e.store.GetObligation(o.ID)
		if err != nil {
			return 0, err
		}
		o = loaded
	}
	if o.Client.Email == "" {
		return 0, nil
	}
	tpl, err := e.store.GetTemplate(templateID)
	if err != nil {
		return 0, err
	}
	job := &model.EmailJob{
		TemplateID:     tpl.ID,
		ObligationID:   o.ID,
		ClientID:       o.ClientID,
		Recipient:      o.Client.Email,
		Context:        toJSONMap(BuildContext(o, e.companyName, e.accountantName)),
		SendAt:         time.Now(),
		Status:         model.JobPending,
		AttachDocument: attachDocument,
	}
	if err := e.store.EnqueueJob(job); err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrDispatch, err)
	}
	e.countEnqueued()
	return 1, nil
}

// SweepDeadlines is the periodic before_deadline scan. For every active
// before_deadline rule it looks at pending obligations whose deadline
// falls exactly rule.DaysBeforeDeadline days ahead (day granularity)
// and enqueues one job per (obligation, rule) pair, ever. The sent-once
// marker and the job commit together, so a cancelled sweep leaves no
// half-marked obligation.
func (e *Evaluator) SweepDeadlines(now time.Time) (int, error) {
	rules, err := e.store.ActiveRulesByTrigger(model.TriggerBeforeDeadline)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	enqueued := 0
	for i := range rules {
		rule := rules[i]
		if rule.DaysBeforeDeadline < 1 {
			logrus.Warnf("Rule %d has trigger %s without days_before_deadline, skipping",
				rule.ID, model.TriggerBeforeDeadline)
			continue
		}
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, rule.DaysBeforeDeadline)
		obligations, err := e.store.PendingInDeadlineWindow(day, day.AddDate(0, 0, 1))
		if err != nil {
			return enqueued, err
		}
		for j := range obligations {
			o := &obligations[j]
			if !rule.MatchesType(o.ObligationTypeID) {
				continue
			}
			job, err := e.buildJob(o, &rule, now)
			if err != nil {
				logrus.Warnf("Rule %d skipped for obligation %d: %v", rule.ID, o.ID, err)
				continue
			}
			err = e.store.EnqueueJobOnce(job, o.ID, rule.ID)
			switch {
			case err == nil:
				e.countEnqueued()
				enqueued++
			case errors.Is(err, apperr.ErrDuplicate):
				// An earlier sweep already fired this pair.
			default:
				logrus.Errorf("Failed to enqueue deadline job for obligation %d: %v", o.ID, err)
			}
		}
	}
	return enqueued, nil
}

// buildJob resolves the rule's template, recipient and send time into a
// concrete outbox row.
func (e *Evaluator) buildJob(o *model.Obligation, rule *model.AutomationRule, now time.Time) (*model.EmailJob, error) {
	tpl := rule.Template
	if tpl == nil {
		// Fall back to the active template bound to the obligation type.
		found, err := e.store.ActiveTemplateForType(o.ObligationTypeID)
		if err != nil {
			return nil, fmt.Errorf("no template for rule and none bound to type %d", o.ObligationTypeID)
		}
		tpl = found
	}
	if o.Client == nil || o.Client.Email == "" {
		return nil, fmt.Errorf("client %d has no email address", o.ClientID)
	}
	ruleID := rule.ID
	return &model.EmailJob{
		RuleID:       &ruleID,
		TemplateID:   tpl.ID,
		ObligationID: o.ID,
		ClientID:     o.ClientID,
		Recipient:    o.Client.Email,
		Context:      toJSONMap(BuildContext(o, e.companyName, e.accountantName)),
		SendAt:       ResolveSendAt(rule, now),
		Status:       model.JobPending,
	}, nil
}

func (e *Evaluator) countEnqueued() {
	if e.metrics != nil {
		e.metrics.JobsEnqueued.Inc()
	}
}

// ResolveSendAt turns a matched rule's timing into a concrete send
// time: immediate sends now, delay_1h an hour from now, delay_24h the
// next calendar day at the same local time, scheduled at the next
// occurrence of the rule's HH:MM.
func ResolveSendAt(rule *model.AutomationRule, now time.Time) time.Time {
	switch rule.Timing {
	case model.TimingDelay1h:
		return now.Add(time.Hour)
	case model.TimingDelay24h:
		return now.AddDate(0, 0, 1)
	case model.TimingScheduled:
		at, err := time.Parse("15:04", rule.ScheduledTime)
		if err != nil {
			logrus.Warnf("Rule %d has invalid scheduled_time %q, sending immediately",
				rule.ID, rule.ScheduledTime)
			return now
		}
		next := time.Date(now.Year(), now.Month(), now.Day(),
			at.Hour(), at.Minute(), 0, 0, now.Location())
		if next.Before(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default:
		return now
	}
}

func toJSONMap(vars map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
