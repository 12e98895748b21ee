package automation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

type fakeRuleStore struct {
	obligations   map[uint]*model.Obligation
	rules         map[model.RuleTrigger][]model.AutomationRule
	templates     map[uint]*model.EmailTemplate
	typeTemplates map[uint]*model.EmailTemplate

	jobs    []model.EmailJob
	fired   map[string]bool
	window  []model.Obligation
	windows [][2]time.Time
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{
		obligations:   make(map[uint]*model.Obligation),
		rules:         make(map[model.RuleTrigger][]model.AutomationRule),
		templates:     make(map[uint]*model.EmailTemplate),
		typeTemplates: make(map[uint]*model.EmailTemplate),
		fired:         make(map[string]bool),
	}
}

func (f *fakeRuleStore) GetObligation(id uint) (*model.Obligation, error) {
	o, ok := f.obligations[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (f *fakeRuleStore) ActiveRulesByTrigger(trigger model.RuleTrigger) ([]model.AutomationRule, error) {
	return f.rules[trigger], nil
}

func (f *fakeRuleStore) ActiveTemplateForType(typeID uint) (*model.EmailTemplate, error) {
	tpl, ok := f.typeTemplates[typeID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeRuleStore) GetTemplate(id uint) (*model.EmailTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeRuleStore) EnqueueJob(job *model.EmailJob) error {
	job.ID = uint(len(f.jobs) + 1)
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeRuleStore) EnqueueJobOnce(job *model.EmailJob, obligationID, ruleID uint) error {
	key := fmt.Sprintf("%d-%d", obligationID, ruleID)
	if f.fired[key] {
		return apperr.ErrDuplicate
	}
	f.fired[key] = true
	return f.EnqueueJob(job)
}

func (f *fakeRuleStore) PendingInDeadlineWindow(from, to time.Time) ([]model.Obligation, error) {
	f.windows = append(f.windows, [2]time.Time{from, to})
	return f.window, nil
}

func testObligation(id, typeID uint, email string) *model.Obligation {
	return &model.Obligation{
		ID: id, ClientID: 1, ObligationTypeID: typeID,
		Month: 3, Year: 2025, Status: model.StatusPending,
		Deadline: time.Date(2025, 4, 20, 0, 0, 0, 0, time.Local),
		Client:   &model.Client{ID: 1, Name: "Alpha", AFM: "123456789", Email: email},
		ObligationType: &model.ObligationType{ID: typeID, Code: "FPA", Name: "VAT return"},
	}
}

func ruleWithTemplate(id uint, trigger model.RuleTrigger, types ...uint) model.AutomationRule {
	rule := model.AutomationRule{
		ID: id, Name: fmt.Sprintf("rule %d", id), Trigger: trigger,
		Timing: model.TimingImmediate, IsActive: true,
		Template: &model.EmailTemplate{ID: 100 + id, Subject: "s", Body: "b"},
	}
	for _, t := range types {
		rule.ObligationTypes = append(rule.ObligationTypes, model.ObligationType{ID: t})
	}
	return rule
}

func TestEvaluateAllMatchingRulesFire(t *testing.T) {
	store := newFakeRuleStore()
	store.obligations[10] = testObligation(10, 1, "alpha@example.com")
	store.rules[model.TriggerOnComplete] = []model.AutomationRule{
		ruleWithTemplate(1, model.TriggerOnComplete),    // no filter, matches all
		ruleWithTemplate(2, model.TriggerOnComplete, 1), // filtered, matches
		ruleWithTemplate(3, model.TriggerOnComplete, 2), // filtered, no match
	}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	jobs, err := e.Evaluate(Event{ObligationID: 10, Trigger: model.TriggerOnComplete})
	assert.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "alpha@example.com", jobs[0].Recipient)
	assert.Equal(t, uint(1), *jobs[0].RuleID)
	assert.Equal(t, uint(2), *jobs[1].RuleID)
}

func TestEvaluateTemplateFallback(t *testing.T) {
	store := newFakeRuleStore()
	store.obligations[10] = testObligation(10, 1, "alpha@example.com")
	rule := ruleWithTemplate(1, model.TriggerOnComplete)
	rule.Template = nil
	store.rules[model.TriggerOnComplete] = []model.AutomationRule{rule}
	store.typeTemplates[1] = &model.EmailTemplate{ID: 55, Subject: "s", Body: "b"}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	jobs, err := e.Evaluate(Event{ObligationID: 10, Trigger: model.TriggerOnComplete})
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, uint(55), jobs[0].TemplateID)
}

func TestEvaluateSkipsWithoutTemplateOrEmail(t *testing.T) {
	store := newFakeRuleStore()
	store.obligations[10] = testObligation(10, 1, "alpha@example.com")
	rule := ruleWithTemplate(1, model.TriggerOnComplete)
	rule.Template = nil
	// No template on the rule and none bound to the type: rule skipped
	store.rules[model.TriggerOnComplete] = []model.AutomationRule{rule}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	jobs, err := e.Evaluate(Event{ObligationID: 10, Trigger: model.TriggerOnComplete})
	assert.NoError(t, err)
	assert.Empty(t, jobs)

	// Client without an email address: rule skipped as well
	store.obligations[11] = testObligation(11, 1, "")
	store.rules[model.TriggerOnComplete] = []model.AutomationRule{ruleWithTemplate(2, model.TriggerOnComplete)}
	jobs, err = e.Evaluate(Event{ObligationID: 11, Trigger: model.TriggerOnComplete})
	assert.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestEvaluateJobContext(t *testing.T) {
	store := newFakeRuleStore()
	store.obligations[10] = testObligation(10, 1, "alpha@example.com")
	store.rules[model.TriggerOnComplete] = []model.AutomationRule{ruleWithTemplate(1, model.TriggerOnComplete)}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	jobs, err := e.Evaluate(Event{ObligationID: 10, Trigger: model.TriggerOnComplete})
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, "Alpha", jobs[0].Context["client_name"])
	assert.Equal(t, "03/2025", jobs[0].Context["period_display"])
	assert.Equal(t, "Practice", jobs[0].Context["company_name"])
	assert.Equal(t, model.JobPending, jobs[0].Status)
}

func TestResolveSendAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)

	immediate := &model.AutomationRule{Timing: model.TimingImmediate}
	assert.Equal(t, now, ResolveSendAt(immediate, now))

	delay1h := &model.AutomationRule{Timing: model.TimingDelay1h}
	assert.Equal(t, now.Add(time.Hour), ResolveSendAt(delay1h, now))

	delay24h := &model.AutomationRule{Timing: model.TimingDelay24h}
	assert.Equal(t, now.AddDate(0, 0, 1), ResolveSendAt(delay24h, now))

	// Scheduled time still ahead today
	later := &model.AutomationRule{Timing: model.TimingScheduled, ScheduledTime: "15:30"}
	assert.Equal(t, time.Date(2025, 3, 10, 15, 30, 0, 0, time.Local), ResolveSendAt(later, now))

	// Scheduled time already past: tomorrow
	earlier := &model.AutomationRule{Timing: model.TimingScheduled, ScheduledTime: "09:30"}
	assert.Equal(t, time.Date(2025, 3, 11, 9, 30, 0, 0, time.Local), ResolveSendAt(earlier, now))

	// Unparseable scheduled time degrades to immediate
	broken := &model.AutomationRule{Timing: model.TimingScheduled, ScheduledTime: "nope"}
	assert.Equal(t, now, ResolveSendAt(broken, now))
}

func TestSweepDeadlinesWindow(t *testing.T) {
	store := newFakeRuleStore()
	rule := ruleWithTemplate(1, model.TriggerBeforeDeadline)
	rule.DaysBeforeDeadline = 5
	store.rules[model.TriggerBeforeDeadline] = []model.AutomationRule{rule}
	store.window = []model.Obligation{*testObligation(10, 1, "alpha@example.com")}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	now := time.Date(2025, 4, 15, 8, 0, 0, 0, time.Local)
	enqueued, err := e.SweepDeadlines(now)
	assert.NoError(t, err)
	assert.Equal(t, 1, enqueued)

	// The scan looked at exactly the day five days ahead
	assert.Len(t, store.windows, 1)
	assert.Equal(t, time.Date(2025, 4, 20, 0, 0, 0, 0, time.Local), store.windows[0][0])
	assert.Equal(t, time.Date(2025, 4, 21, 0, 0, 0, 0, time.Local), store.windows[0][1])
}

func TestSweepDeadlinesFiresOncePerPair(t *testing.T) {
	store := newFakeRuleStore()
	rule := ruleWithTemplate(1, model.TriggerBeforeDeadline)
	rule.DaysBeforeDeadline = 5
	store.rules[model.TriggerBeforeDeadline] = []model.AutomationRule{rule}
	store.window = []model.Obligation{*testObligation(10, 1, "alpha@example.com")}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	now := time.Date(2025, 4, 15, 8, 0, 0, 0, time.Local)

	first, err := e.SweepDeadlines(now)
	assert.NoError(t, err)
	assert.Equal(t, 1, first)

	// The obligation still sits in the window an hour later; the fire
	// marker keeps the sweep from enqueueing again.
	second, err := e.SweepDeadlines(now.Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, store.jobs, 1)
}

func TestSweepDeadlinesRespectsTypeFilter(t *testing.T) {
	store := newFakeRuleStore()
	rule := ruleWithTemplate(1, model.TriggerBeforeDeadline, 2)
	rule.DaysBeforeDeadline = 5
	store.rules[model.TriggerBeforeDeadline] = []model.AutomationRule{rule}
	store.window = []model.Obligation{*testObligation(10, 1, "alpha@example.com")}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	enqueued, err := e.SweepDeadlines(time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, enqueued)
}

func TestManualNotify(t *testing.T) {
	store := newFakeRuleStore()
	store.templates[7] = &model.EmailTemplate{ID: 7, Subject: "s", Body: "b"}

	e := NewEvaluator(store, "Practice", "Maria", nil)
	n, err := e.ManualNotify(testObligation(10, 1, "alpha@example.com"), 7, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, store.jobs, 1)
	assert.True(t, store.jobs[0].AttachDocument)
	assert.Nil(t, store.jobs[0].RuleID)

	// A client without an email is a silent no-op
	n, err = e.ManualNotify(testObligation(11, 1, ""), 7, false)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
