package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// bulkWorkers bounds the per-item concurrency of bulk operations.
// Items are independent by construction, so parallel processing is
// safe; results still list each input id exactly once.
const bulkWorkers = 4

// LifecycleStore is the slice of the data layer the lifecycle manager
// needs.
type LifecycleStore interface {
	GetObligation(id uint) (*model.Obligation, error)
	SaveObligation(o *model.Obligation) error
	PendingInDeadlineWindow(from, to time.Time) ([]model.Obligation, error)
	ActiveClients(ids []uint) ([]model.Client, error)
	ProfilesForClient(clientID uint) ([]model.ObligationProfile, error)
	AddProfile(clientID, typeID uint) error
	RemoveProfiles(clientID uint, typeIDs []uint) error
	GroupTypeIDs(groupIDs []uint) ([]uint, error)
	TypesByID(ids []uint) (map[uint]model.ObligationType, error)
}

// DocumentStore is the document storage boundary consumed when a
// completion carries a file.
type DocumentStore interface {
	Store(ctx context.Context, clientID uint, obligationID *uint, filename, category, description string, r io.Reader, size int64) (*model.Document, error)
}

// Notifier is the automation boundary. Evaluation failures never roll
// back the lifecycle change that raised the event.
type Notifier interface {
	ObligationEvent(o *model.Obligation, trigger model.RuleTrigger) (int, error)
	ManualNotify(o *model.Obligation, templateID uint, attachDocument bool) (int, error)
}

// DocumentUpload is one file supplied with a completion.
type DocumentUpload struct {
	Filename    string
	Category    string
	Description string
	Reader      io.Reader
	Size        int64
}

// CompleteOptions carries the optional parts of a single completion.
type CompleteOptions struct {
	Notes            string
	TimeSpentMinutes int
	Notify           bool
	Document         *DocumentUpload
}

// CompleteResult reports a completion together with its side effects.
// EmailError never implies the completion failed.
type CompleteResult struct {
	Obligation *model.Obligation `json:"obligation"`
	DocumentID *uint             `json:"document_id,omitempty"`
	EmailSent  bool              `json:"email_sent"`
	EmailError string            `json:"email_error,omitempty"`
}

// Lifecycle owns obligation state transitions, bulk completion and
// bulk profile assignment.
type Lifecycle struct {
	store     LifecycleStore
	docs      DocumentStore
	notifier  Notifier
	generator *Generator
	metrics   *metrics.Metrics
}

func NewLifecycle(store LifecycleStore, docs DocumentStore, notifier Notifier, generator *Generator, m *metrics.Metrics) *Lifecycle {
	return &Lifecycle{store: store, docs: docs, notifier: notifier, generator: generator, metrics: m}
}

// Complete marks one obligation completed. Overdue is not a blocking
// state; completed and cancelled are terminal. A failing notification
// is reported in the result, never rolled back into the completion.
func (l *Lifecycle) Complete(ctx context.Context, id uint, opts CompleteOptions) (*CompleteResult, error) {
	obligation, err := l.store.GetObligation(id)
	if err != nil {
		return nil, err
	}
	if !obligation.Status.CanTransitionTo(model.StatusCompleted) {
		return nil, fmt.Errorf("%w: obligation %d is %s", apperr.ErrInvalidState, id, obligation.Status)
	}

	result := &CompleteResult{}

	if opts.Document != nil {
		if l.docs == nil {
			return nil, fmt.Errorf("%w: document storage not configured", apperr.ErrAttachment)
		}
		doc, err := l.docs.Store(ctx, obligation.ClientID, &obligation.ID,
			opts.Document.Filename, opts.Document.Category, opts.Document.Description,
			opts.Document.Reader, opts.Document.Size)
		if err != nil {
			return nil, err
		}
		result.DocumentID = &doc.ID
		obligation.DocumentsCount++
	}

	now := time.Now()
	obligation.Status = model.StatusCompleted
	obligation.CompletedAt = &now
	if opts.Notes != "" {
		obligation.Notes = opts.Notes
	}
	if opts.TimeSpentMinutes > 0 {
		obligation.TimeSpentMinutes += opts.TimeSpentMinutes
	}
	if err := l.store.SaveObligation(obligation); err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.ObligationsCompleted.Inc()
	}
	result.Obligation = obligation

	if opts.Notify && l.notifier != nil {
		jobs, err := l.notifier.ObligationEvent(obligation, model.TriggerOnComplete)
		if err != nil {
			result.EmailError = err.Error()
		} else {
			result.EmailSent = jobs > 0
		}
	}
	return result, nil
}

// BulkItem is one entry of a bulk completion batch.
type BulkItem struct {
	ObligationID uint
	Document     *DocumentUpload
}

// BulkCompleteOptions are the batch-level flags of BulkComplete.
type BulkCompleteOptions struct {
	SaveToFolders  bool
	SendEmails     bool
	AttachToEmails bool
	TemplateID     *uint
	Notes          string
}

// BulkItemResult is one obligation's outcome inside a bulk completion.
// Error reports a failed completion; EmailError reports a failed
// notification for an obligation that did complete. The two never mix.
type BulkItemResult struct {
	ObligationID uint   `json:"obligation_id"`
	ClientID     uint   `json:"client_id"`
	ClientName   string `json:"client_name,omitempty"`
	DocumentID   *uint  `json:"document_id,omitempty"`
	EmailSent    bool   `json:"email_sent"`
	EmailError   string `json:"email_error,omitempty"`
	Error        string `json:"error,omitempty"`
}

// EmailSummary aggregates the notification side of a bulk completion.
type EmailSummary struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Details []string `json:"details,omitempty"`
}

// BulkCompleteResult is the full report of one BulkComplete call.
type BulkCompleteResult struct {
	CompletedCount int              `json:"completed_count"`
	Results        []BulkItemResult `json:"results"`
	EmailResults   *EmailSummary    `json:"email_results,omitempty"`
}

// BulkComplete completes a batch of obligations with per-item
// isolation: one item's attachment or state failure is captured in its
// own result entry and never aborts the siblings. Items run on a
// bounded worker pool; result order is not input order.
func (l *Lifecycle) BulkComplete(ctx context.Context, items []BulkItem, opts BulkCompleteOptions) (*BulkCompleteResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty obligation list", apperr.ErrValidation)
	}

	jobs := make(chan BulkItem, len(items))
	results := make(chan BulkItemResult, len(items))

	workers := bulkWorkers
	if workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- l.completeBulkItem(ctx, item, opts)
			}
		}()
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := &BulkCompleteResult{Results: make([]BulkItemResult, 0, len(items))}
	if opts.SendEmails {
		out.EmailResults = &EmailSummary{}
	}
	for res := range results {
		out.Results = append(out.Results, res)
		if res.Error == "" {
			out.CompletedCount++
		}
		if out.EmailResults != nil {
			switch {
			case res.EmailSent:
				out.EmailResults.Sent++
			case res.EmailError != "":
				out.EmailResults.Failed++
				out.EmailResults.Details = append(out.EmailResults.Details,
					fmt.Sprintf("obligation %d: %s", res.ObligationID, res.EmailError))
			default:
				out.EmailResults.Skipped++
			}
		}
	}
	logrus.Infof("Bulk completion finished: %d/%d completed", out.CompletedCount, len(items))
	return out, nil
}

func (l *Lifecycle) completeBulkItem(ctx context.Context, item BulkItem, opts BulkCompleteOptions) BulkItemResult {
	res := BulkItemResult{ObligationID: item.ObligationID}

	var doc *DocumentUpload
	if opts.SaveToFolders {
		doc = item.Document
	}
	single, err := l.Complete(ctx, item.ObligationID, CompleteOptions{
		Notes:    opts.Notes,
		Document: doc,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.ClientID = single.Obligation.ClientID
	if single.Obligation.Client != nil {
		res.ClientName = single.Obligation.Client.Name
	}
	res.DocumentID = single.DocumentID

	if opts.SendEmails && l.notifier != nil {
		var jobs int
		var nerr error
		if opts.TemplateID != nil {
			jobs, nerr = l.notifier.ManualNotify(single.Obligation, *opts.TemplateID, opts.AttachToEmails)
		} else {
			jobs, nerr = l.notifier.ObligationEvent(single.Obligation, model.TriggerOnComplete)
		}
		if nerr != nil {
			// Completion stands; only the email side is reported.
			res.EmailError = fmt.Sprintf("%v", nerr)
		} else {
			res.EmailSent = jobs > 0
		}
	}
	return res
}

// MarkOverdue transitions every pending or in-progress obligation whose
// deadline has passed and raises an on_overdue event for each. Each
// obligation is its own unit of work.
func (l *Lifecycle) MarkOverdue(now time.Time) (int, error) {
	due, err := l.store.PendingInDeadlineWindow(time.Time{}, now)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range due {
		obligation := &due[i]
		obligation.Status = model.StatusOverdue
		if err := l.store.SaveObligation(obligation); err != nil {
			logrus.Errorf("Failed to mark obligation %d overdue: %v", obligation.ID, err)
			continue
		}
		moved++
		if l.metrics != nil {
			l.metrics.ObligationsOverdue.Inc()
		}
		if l.notifier != nil {
			if _, err := l.notifier.ObligationEvent(obligation, model.TriggerOnOverdue); err != nil {
				logrus.Errorf("Overdue notification for obligation %d failed: %v", obligation.ID, err)
			}
		}
	}
	if moved > 0 {
		logrus.Infof("Marked %d obligations overdue", moved)
	}
	return moved, nil
}
