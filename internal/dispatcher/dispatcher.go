// Package dispatcher drains the notification outbox: due jobs are
// claimed, rendered and sent over SMTP by a bounded worker pool, and
// every attempt is recorded in the email log.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/automation"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

const claimBatchSize = 100

// JobStore is the slice of the data layer the dispatcher needs.
type JobStore interface {
	ClaimDueJobs(now time.Time, limit int) ([]model.EmailJob, error)
	MarkJobSent(id uint) error
	MarkJobFailed(id uint, errMsg string) error
	CreateEmailLog(log *model.EmailLog) error
	GetTemplate(id uint) (*model.EmailTemplate, error)
	LatestDocumentForObligation(obligationID uint) (*model.Document, error)
}

// AttachmentFetcher loads stored document bytes for attach-to-email
// jobs.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, doc *model.Document) ([]byte, error)
}

// Dispatcher is the outbound side of the notification pipeline.
type Dispatcher struct {
	store       JobStore
	sender      Sender
	attachments AttachmentFetcher
	limiter     *rate.Limiter
	workers     int
	metrics     *metrics.Metrics
}

func New(store JobStore, sender Sender, attachments AttachmentFetcher, ratePerSecond float64, workers int, m *metrics.Metrics) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		store:       store,
		sender:      sender,
		attachments: attachments,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		workers:     workers,
		metrics:     m,
	}
}

// Drain claims every job due at now and processes the batch on the
// worker pool. Each job is independent; a failing send marks only its
// own job failed.
func (d *Dispatcher) Drain(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	jobs, err := d.store.ClaimDueJobs(now, claimBatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	ch := make(chan model.EmailJob, len(jobs))
	var wg sync.WaitGroup

	workers := d.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range ch {
				if err := d.limiter.Wait(ctx); err != nil {
					logrus.Warnf("Dispatcher worker %d stopped by context: %v", id, err)
					d.failJob(job, "dispatch cancelled")
					continue
				}
				d.process(ctx, job)
			}
		}(i)
	}
	for _, job := range jobs {
		ch <- job
	}
	close(ch)
	wg.Wait()

	if d.metrics != nil {
		d.metrics.DispatchTime.Observe(time.Since(start).Seconds())
	}
	logrus.Infof("Dispatched %d due notification jobs in %v", len(jobs), time.Since(start))
	return len(jobs), nil
}

// process renders and sends one claimed job.
func (d *Dispatcher) process(ctx context.Context, job model.EmailJob) {
	tpl, err := d.store.GetTemplate(job.TemplateID)
	if err != nil {
		d.failJob(job, "template lookup failed: "+err.Error())
		return
	}

	msg := Message{
		To:      job.Recipient,
		Subject: automation.RenderStringMap(tpl.Subject, job.Context),
		Body:    automation.RenderStringMap(tpl.Body, job.Context),
	}

	if job.AttachDocument && d.attachments != nil {
		doc, err := d.store.LatestDocumentForObligation(job.ObligationID)
		if err == nil {
			data, ferr := d.attachments.Fetch(ctx, doc)
			if ferr != nil {
				logrus.Warnf("Attachment for job %d unavailable, sending without: %v", job.ID, ferr)
			} else {
				msg.Attachment = &Attachment{Filename: doc.Filename, Data: data}
			}
		}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		d.failJob(job, err.Error())
		d.log(job, msg, "failed", err.Error())
		return
	}

	if err := d.store.MarkJobSent(job.ID); err != nil {
		logrus.Errorf("Failed to mark job %d sent: %v", job.ID, err)
	}
	if d.metrics != nil {
		d.metrics.EmailsSent.Inc()
	}
	d.log(job, msg, "sent", "")
}

func (d *Dispatcher) failJob(job model.EmailJob, reason string) {
	if err := d.store.MarkJobFailed(job.ID, reason); err != nil {
		logrus.Errorf("Failed to mark job %d failed: %v", job.ID, err)
	}
	if d.metrics != nil {
		d.metrics.EmailsFailed.Inc()
	}
}

// log appends the send attempt to the email history with the rendered
// subject/body snapshot.
func (d *Dispatcher) log(job model.EmailJob, msg Message, status, errMsg string) {
	obligationID := job.ObligationID
	clientID := job.ClientID
	templateID := job.TemplateID
	entry := &model.EmailLog{
		Recipient:    msg.To,
		Subject:      msg.Subject,
		Body:         msg.Body,
		Status:       status,
		ErrorMsg:     errMsg,
		ObligationID: &obligationID,
		ClientID:     &clientID,
		TemplateID:   &templateID,
	}
	if err := d.store.CreateEmailLog(entry); err != nil {
		logrus.Errorf("Failed to write email log for job %d: %v", job.ID, err)
	}
}
