package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itswl/balance-alert/pkg/metrics"
	"github.com/itswl/balance-alert/pkg/notify"
	"github.com/itswl/balance-alert/pkg/providers"
	"github.com/itswl/balance-alert/pkg/renewal"
	"github.com/itswl/balance-alert/pkg/storage"
)

// Sentinel errors callers branch on when scheduling a cycle.
var (
	ErrCycleInFlight = errors.New("check cycle already in flight")
	ErrCooldown      = errors.New("manual refresh inside cooldown window")
)

const (
	// DefaultMaxConcurrent bounds the provider fan-out.
	DefaultMaxConcurrent = 20
	maxConcurrentCeiling = 50

	// DefaultCycleTimeout is the soft deadline for one full cycle.
	DefaultCycleTimeout = 2 * time.Minute

	// DefaultCooldown is the minimum gap between manual refreshes.
	DefaultCooldown = 30 * time.Second
)

// Notifier is the dispatch half of the notification pipeline.
type Notifier interface {
	Send(ctx context.Context, event notify.Event) notify.NotificationEvent
}

// Options configures an Orchestrator.
type Options struct {
	Registry *providers.Registry
	Cache    *ResultCache
	State    *StateHolder
	Notifier Notifier
	Store    storage.Store // optional, nil disables history writes
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Projects and Subscriptions are read-only snapshots taken at the
	// start of each cycle, so config reloads never race a running
	// cycle.
	Projects      func() []Project
	Subscriptions func() []renewal.Subscription

	MaxConcurrent int
	CycleTimeout  time.Duration
	Cooldown      time.Duration
	DryRun        bool
}

// Orchestrator drives check cycles. At most one cycle runs at a time.
type Orchestrator struct {
	opts Options

	cycleMu  sync.Mutex
	detached sync.WaitGroup

	mu         sync.Mutex
	lastManual time.Time
	breached   map[string]bool

	now func() time.Time
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = NewResultCache(DefaultCacheTTL)
	}
	if opts.State == nil {
		opts.State = NewStateHolder()
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = DefaultCycleTimeout
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Orchestrator{
		opts:     opts,
		breached: make(map[string]bool),
		now:      time.Now,
	}
}

// State exposes the last-known state for the read-side API.
func (o *Orchestrator) State() *StateHolder {
	return o.opts.State
}

// RunCycle executes one full check cycle. It returns ErrCycleInFlight
// if a cycle is already running, and ErrCooldown for manual triggers
// arriving inside the cooldown window.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger Trigger) (CycleSummary, error) {
	if err := o.acquire(trigger); err != nil {
		return CycleSummary{}, err
	}
	defer o.cycleMu.Unlock()

	return o.runLocked(ctx, trigger), nil
}

// TriggerAsync starts a cycle in the background after the same
// admission checks as RunCycle. The caller learns immediately whether
// the cycle was accepted. ctx bounds the detached cycle's lifetime;
// pass the process lifetime context rather than an HTTP request
// context, so an accepted refresh outlives its request but still
// stops on shutdown. Wait blocks until detached cycles finish.
func (o *Orchestrator) TriggerAsync(ctx context.Context, trigger Trigger) error {
	if err := o.acquire(trigger); err != nil {
		return err
	}
	o.detached.Add(1)
	go func() {
		defer o.detached.Done()
		defer o.cycleMu.Unlock()
		o.runLocked(ctx, trigger)
	}()
	return nil
}

// Wait blocks until every cycle started by TriggerAsync has finished.
func (o *Orchestrator) Wait() {
	o.detached.Wait()
}

// acquire takes the single-cycle lock and, for manual triggers,
// enforces the cooldown. On success the caller owns cycleMu.
func (o *Orchestrator) acquire(trigger Trigger) error {
	if !o.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	if trigger == TriggerManual {
		if err := o.acceptManual(); err != nil {
			o.cycleMu.Unlock()
			return err
		}
	}
	return nil
}

// runLocked does the cycle work. The caller must hold cycleMu.
func (o *Orchestrator) runLocked(ctx context.Context, trigger Trigger) CycleSummary {
	ctx, cancel := context.WithTimeout(ctx, o.opts.CycleTimeout)
	defer cancel()

	start := o.now()
	summary := CycleSummary{
		Trigger:   trigger,
		StartedAt: start.UTC(),
		DryRun:    o.opts.DryRun,
	}

	o.opts.Logger.Info("cycle started", "trigger", string(trigger))

	results := o.checkProjects(ctx, &summary)
	o.evaluateAlarms(ctx, results, &summary)
	o.evaluateRenewals(ctx, &summary)

	summary.Duration = o.now().Sub(start)
	o.opts.State.UpdateSummary(summary)
	o.recordCycleMetrics(summary)

	o.opts.Logger.Info("cycle finished",
		"trigger", string(trigger),
		"checked", summary.Checked,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"alarmed", summary.Alarmed,
		"duration", summary.Duration,
	)
	return summary
}

// acceptManual enforces the cooldown between manual refreshes and, on
// acceptance, drops the cache so the refresh hits upstream.
func (o *Orchestrator) acceptManual() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if since := o.now().Sub(o.lastManual); since < o.opts.Cooldown {
		return fmt.Errorf("%w: retry in %s", ErrCooldown, (o.opts.Cooldown - since).Round(time.Second))
	}
	o.lastManual = o.now()
	o.opts.Cache.Invalidate()
	return nil
}

// checkProjects fans out provider fetches with a bounded worker count
// and returns the per-project results.
func (o *Orchestrator) checkProjects(ctx context.Context, summary *CycleSummary) []ProjectResult {
	projects := o.opts.Projects()
	summary.Checked = len(projects)

	results := make([]ProjectResult, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(o.opts.MaxConcurrent))

	for i, project := range projects {
		g.Go(func() error {
			results[i] = ProjectResult{
				Project: project,
				Result:  o.checkOne(gctx, project),
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		r := &results[i]
		status := "success"
		if r.Result.Success {
			summary.Succeeded++
			if o.opts.Metrics != nil {
				o.opts.Metrics.ProjectBalance.WithLabelValues(r.Project.Name).Set(r.Result.Value)
			}
		} else {
			summary.Failed++
			status = "failure"
			o.opts.Logger.Warn("check failed",
				"project", r.Project.Name,
				"provider", r.Project.Provider,
				"error", r.Result.Err,
			)
		}
		if o.opts.Metrics != nil {
			o.opts.Metrics.ChecksTotal.WithLabelValues(r.Project.Provider, status).Inc()
		}

		o.saveBalanceRecord(ctx, *r)
	}
	return results
}

// checkOne fetches one project's balance through the cache. A panicking
// adapter is contained and reported as a failed check.
func (o *Orchestrator) checkOne(ctx context.Context, project Project) (result providers.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			o.opts.Logger.Error("provider panicked",
				"project", project.Name,
				"provider", project.Provider,
				"panic", r,
			)
			result = providers.Fail("provider %s panicked: %v", project.Provider, r)
		}
	}()

	return o.opts.Cache.Fetch(ctx, project.ID, func(ctx context.Context) providers.CheckResult {
		p, err := o.opts.Registry.New(project.Provider, project.Credential)
		if err != nil {
			return providers.Fail("resolve provider: %v", err)
		}
		return p.Fetch(ctx)
	})
}

// evaluateAlarms applies the threshold predicate and raises
// edge-triggered low-balance events. Failed checks neither raise nor
// clear an alarm; the latch keeps the last evaluated breach state.
func (o *Orchestrator) evaluateAlarms(ctx context.Context, results []ProjectResult, summary *CycleSummary) {
	for i := range results {
		r := &results[i]
		if !r.Result.Success {
			o.opts.State.UpdateResult(*r)
			continue
		}

		r.NeedAlarm = r.Result.Value < r.Project.Threshold

		o.mu.Lock()
		wasBreached := o.breached[r.Project.ID]
		o.breached[r.Project.ID] = r.NeedAlarm
		o.mu.Unlock()

		if r.NeedAlarm {
			summary.Alarmed++
		}
		if r.NeedAlarm && !wasBreached {
			if o.opts.Metrics != nil {
				o.opts.Metrics.AlarmsTotal.Inc()
			}
			o.dispatch(ctx, notify.Event{
				Kind:        notify.KindLowBalance,
				Subject:     r.Project.ID,
				ProjectName: r.Project.Name,
				Provider:    r.Project.Provider,
				MeasureKind: string(r.Project.Kind),
				Value:       r.Result.Value,
				Threshold:   r.Project.Threshold,
				Currency:    r.Result.Currency,
			}, summary)
		} else if !r.NeedAlarm && wasBreached {
			o.opts.Logger.Info("alarm cleared",
				"project", r.Project.Name,
				"value", r.Result.Value,
				"threshold", r.Project.Threshold,
			)
		}

		o.opts.State.UpdateResult(*r)
	}
}

// evaluateRenewals computes the renewal outlook and raises reminder
// events for subscriptions inside their alert window.
func (o *Orchestrator) evaluateRenewals(ctx context.Context, summary *CycleSummary) {
	if o.opts.Subscriptions == nil {
		return
	}

	today := o.now()
	var statuses []SubscriptionStatus

	for _, sub := range o.opts.Subscriptions() {
		outcome, err := renewal.Evaluate(sub, today)
		if err != nil {
			o.opts.Logger.Warn("subscription skipped", "name", sub.Name, "error", err)
			continue
		}
		statuses = append(statuses, SubscriptionStatus{Subscription: sub, Outcome: outcome})
		summary.Renewals++

		o.saveSubscriptionSnapshot(ctx, sub, outcome)

		if outcome.NeedAlert {
			o.dispatch(ctx, notify.Event{
				Kind:             notify.KindRenewalReminder,
				Subject:          sub.Name,
				SubscriptionName: sub.Name,
				RenewalDay:       sub.RenewalDay,
				DaysUntilRenewal: outcome.DaysUntilRenewal,
				NextRenewal:      outcome.NextRenewal,
				Amount:           sub.Amount,
				Currency:         sub.Currency,
			}, summary)
		}
	}

	o.opts.State.UpdateSubscriptions(statuses)
}

// dispatch sends one event and records the outcome. History write
// failures are logged, never fatal.
func (o *Orchestrator) dispatch(ctx context.Context, event notify.Event, summary *CycleSummary) {
	if o.opts.Notifier == nil {
		return
	}

	outcome := o.opts.Notifier.Send(ctx, event)
	summary.Notified++

	if o.opts.Metrics != nil {
		o.opts.Metrics.NotificationsTotal.WithLabelValues(string(outcome.Kind), string(outcome.Status)).Inc()
	}
	if o.opts.Store != nil {
		if err := o.opts.Store.SaveAlertRecord(ctx, &outcome); err != nil {
			o.opts.Logger.Warn("alert record not saved", "subject", outcome.Subject, "error", err)
		}
	}
}

func (o *Orchestrator) saveBalanceRecord(ctx context.Context, r ProjectResult) {
	if o.opts.Store == nil {
		return
	}
	record := &storage.BalanceRecord{
		ProjectID: r.Project.ID,
		Project:   r.Project.Name,
		Provider:  r.Project.Provider,
		Success:   r.Result.Success,
		Value:     r.Result.Value,
		Currency:  r.Result.Currency,
		Error:     r.Result.Err,
		Timestamp: r.Result.CheckedAt,
	}
	if err := o.opts.Store.SaveBalanceRecord(ctx, record); err != nil {
		o.opts.Logger.Warn("balance record not saved", "project", r.Project.Name, "error", err)
	}
}

func (o *Orchestrator) saveSubscriptionSnapshot(ctx context.Context, sub renewal.Subscription, outcome renewal.Outcome) {
	if o.opts.Store == nil {
		return
	}
	snap := &storage.SubscriptionSnapshot{
		Name:        sub.Name,
		DaysUntil:   outcome.DaysUntilRenewal,
		NextRenewal: outcome.NextRenewal,
		NeedAlert:   outcome.NeedAlert,
	}
	if err := o.opts.Store.SaveSubscriptionSnapshot(ctx, snap); err != nil {
		o.opts.Logger.Warn("subscription snapshot not saved", "name", sub.Name, "error", err)
	}
}

func (o *Orchestrator) recordCycleMetrics(summary CycleSummary) {
	if o.opts.Metrics == nil {
		return
	}
	o.opts.Metrics.CyclesTotal.WithLabelValues(string(summary.Trigger)).Inc()
	o.opts.Metrics.CycleDuration.Observe(summary.Duration.Seconds())
}

// clampConcurrency bounds the fan-out limit to 1..50, defaulting to 20.
func clampConcurrency(n int) int {
	if n <= 0 {
		return DefaultMaxConcurrent
	}
	if n > maxConcurrentCeiling {
		return maxConcurrentCeiling
	}
	return n
}
