package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"solana-marketplace/internal/config"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/reporting"
)

const jobTimeout = 5 * time.Minute

// schedule registers the periodic jobs. Empty specs are skipped.
func (a *app) schedule(cfg config.ScheduleConfig) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) error
	}{
		{cfg.DailySummary, "daily_summary", a.summaryJob(reporting.PeriodDaily)},
		{cfg.WeeklySummary, "weekly_summary", a.summaryJob(reporting.PeriodWeekly)},
		{cfg.MonthlySummary, "monthly_summary", a.summaryJob(reporting.PeriodMonthly)},
		{cfg.Reconcile, "reconcile", a.reconcileJob},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		j := j
		if _, err := c.AddFunc(j.spec, func() { a.runJob(j.name, j.run) }); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		a.logger.Info("job scheduled", "job", j.name, "spec", j.spec)
	}
	return c, nil
}

func (a *app) runJob(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := run(ctx); err != nil {
		a.logger.Error("job failed", "job", name, "error", err)
		return
	}
	a.logger.Info("job finished", "job", name, "elapsed", time.Since(start))
}

// summaryJob enqueues the commission digest for period.
func (a *app) summaryJob(period reporting.Period) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sum, err := a.reports.Summary(ctx, period)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("%s:%s", period, sum.DateRange.End.Format(time.DateOnly))
		a.outbox.Enqueue(ctx, domain.NotifyCommissionSummary, subject, a.recipient, struct {
			*reporting.PeriodSummary
			Markdown string `json:"markdown"`
		}{sum, reporting.SummaryMarkdown(sum)})
		return nil
	}
}

// reconcileJob settles unconfirmed payouts, provisioning and graduations.
func (a *app) reconcileJob(ctx context.Context) error {
	settled, err := a.settlements.ReconcilePending(ctx, a.batch)
	if err != nil {
		return fmt.Errorf("reconcile settlements: %w", err)
	}
	tokens, err := a.market.ReconcilePending(ctx, a.batch)
	if err != nil {
		return fmt.Errorf("reconcile tokens: %w", err)
	}
	if settled > 0 || tokens > 0 {
		a.logger.Info("reconciled", "settlements", settled, "curve", tokens)
	}
	return nil
}
