package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"content_platform/internal/mail"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Frequency names a cron dispatch bucket
type Frequency string

// Supported frequencies
const (
	Minutely Frequency = "minutely"
	Hourly   Frequency = "hourly"
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
)

// Frequencies lists every frequency with its scheduler spec
var Frequencies = []struct {
	Frequency Frequency
	Spec      string
}{
	{Minutely, "@every 1m"},
	{Hourly, "@hourly"},
	{Daily, "@daily"},
	{Weekly, "@weekly"},
}

// Job is one unit of periodic work
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// JobResult is the outcome of one job
type JobResult struct {
	Job      string        `json:"job"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunReport summarises one dispatch
type RunReport struct {
	Frequency Frequency   `json:"frequency"`
	Results   []JobResult `json:"results"`
}

// Failed reports whether any job failed
func (r *RunReport) Failed() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return true
		}
	}
	return false
}

// JobDeps are the services the periodic jobs drive
type JobDeps struct {
	Posts         *PostService
	Campaigns     *CampaignService
	Subscriptions *SubscriptionService
	Comments      *CommentService
	Contacts      *ContactService
	Analytics     *AnalyticsService
	Mailer        mail.Sender
	AdminEmails   []string
	ViewRetention time.Duration
}

// Subscriptions still pending after this long are purged
const unconfirmedMaxAge = 7 * 24 * time.Hour

// DefaultJobs builds the dispatch table
func DefaultJobs(d JobDeps) map[Frequency][]Job {
	return map[Frequency][]Job{
		Minutely: {
			{Name: "send_due_campaigns", Run: func(ctx context.Context) error {
				n, err := d.Campaigns.SendDue(ctx)
				logIfAny("Scheduled campaigns sent", "campaigns", int64(n))
				return err
			}},
		},
		Hourly: {
			{Name: "publish_due_posts", Run: func(ctx context.Context) error {
				_, err := d.Posts.PublishDue(ctx) // Logs its own count
				return err
			}},
		},
		Daily: {
			{Name: "purge_unconfirmed_subscriptions", Run: func(ctx context.Context) error {
				n, err := d.Subscriptions.PurgeUnconfirmed(ctx, unconfirmedMaxAge)
				logIfAny("Unconfirmed subscriptions purged", "subscriptions", n)
				return err
			}},
			{Name: "prune_page_views", Run: func(ctx context.Context) error {
				n, err := d.Analytics.PruneBefore(ctx, time.Now().Add(-d.ViewRetention))
				logIfAny("Old page views pruned", "views", n)
				return err
			}},
		},
		Weekly: {
			{Name: "admin_digest", Run: func(ctx context.Context) error {
				return sendDigest(ctx, d, time.Now().AddDate(0, 0, -7))
			}},
		},
	}
}

func logIfAny(msg, field string, n int64) {
	if n > 0 {
		logrus.WithField(field, n).Info(msg)
	}
}

// Digest is the weekly admin summary
type Digest struct {
	Views       int64
	Visitors    int64
	Comments    int64
	Subscribers int64
	Contacts    int64
}

func sendDigest(ctx context.Context, d JobDeps, since time.Time) error {
	if len(d.AdminEmails) == 0 {
		return nil
	}
	summary, err := d.Analytics.Summary(ctx, since, time.Now())
	if err != nil {
		return err
	}
	digest := Digest{Views: summary.TotalViews, Visitors: summary.UniqueVisits}
	if digest.Comments, err = d.Comments.CountSince(ctx, since); err != nil {
		return err
	}
	if digest.Subscribers, err = d.Subscriptions.CountSince(ctx, since); err != nil {
		return err
	}
	if digest.Contacts, err = d.Contacts.CountSince(ctx, since); err != nil {
		return err
	}
	html, err := mail.Render("digest", digest)
	if err != nil {
		return err
	}
	return d.Mailer.Send(ctx, mail.Message{
		To:      d.AdminEmails,
		Subject: "Weekly summary",
		Text: "Page views: " + strconv.FormatInt(digest.Views, 10) +
			"\nUnique visitors: " + strconv.FormatInt(digest.Visitors, 10) +
			"\nNew comments: " + strconv.FormatInt(digest.Comments, 10) +
			"\nNew subscribers: " + strconv.FormatInt(digest.Subscribers, 10) +
			"\nContact messages: " + strconv.FormatInt(digest.Contacts, 10),
		HTML: html,
	})
}

// CronService dispatches periodic jobs by frequency
type CronService struct {
	jobs    map[Frequency][]Job
	timeout time.Duration
	sched   *cron.Cron
}

// NewCronService creates a CronService over a fixed job table
func NewCronService(jobs map[Frequency][]Job) *CronService {
	return &CronService{jobs: jobs, timeout: 10 * time.Minute}
}

// ParseFrequency validates a frequency name
func ParseFrequency(s string) (Frequency, error) {
	for _, f := range Frequencies {
		if string(f.Frequency) == s {
			return f.Frequency, nil
		}
	}
	return "", fmt.Errorf("frequency %q: %w", s, ErrNotFound)
}

// Run executes every job for freq in order. A failing job does not stop the run.
func (s *CronService) Run(ctx context.Context, freq Frequency) (*RunReport, error) {
	jobs, ok := s.jobs[freq]
	if !ok {
		return nil, fmt.Errorf("frequency %q: %w", freq, ErrNotFound)
	}
	report := &RunReport{Frequency: freq, Results: make([]JobResult, 0, len(jobs))}
	for _, job := range jobs {
		start := time.Now()
		err := runJob(ctx, job)
		res := JobResult{Job: job.Name, Duration: time.Since(start)}
		entry := logrus.WithFields(logrus.Fields{"frequency": freq, "job": job.Name, "duration": res.Duration})
		if err != nil {
			res.Error = err.Error()
			entry.WithError(err).Error("Cron job failed")
		} else {
			entry.Debug("Cron job finished")
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("stack", string(debug.Stack())).Error("Cron job panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

// Start registers every frequency with an in-process scheduler
func (s *CronService) Start() error {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s.sched = cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	for _, f := range Frequencies {
		freq := f.Frequency
		if _, err := s.sched.AddFunc(f.Spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			_, _ = s.Run(ctx, freq)
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", freq, err)
		}
	}
	s.sched.Start()
	logrus.Info("Cron scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs until ctx expires
func (s *CronService) Stop(ctx context.Context) {
	if s.sched == nil {
		return
	}
	select {
	case <-s.sched.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("Cron jobs still running at shutdown")
	}
}
