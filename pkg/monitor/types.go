// Package monitor runs the periodic check cycle: fan out provider
// fetches, evaluate thresholds and renewals, raise edge-triggered
// alarms, and keep the last-known state for the read-side API.
package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/itswl/balance-alert/pkg/providers"
	"github.com/itswl/balance-alert/pkg/renewal"
)

// Kind distinguishes what a project's value measures.
type Kind string

const (
	KindBalance Kind = "balance"
	KindCredits Kind = "credits"
)

// Project is one monitored account.
type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Provider   string  `json:"provider"`
	Credential string  `json:"-"`
	Threshold  float64 `json:"threshold"`
	Kind       Kind    `json:"kind"`
	Enabled    bool    `json:"enabled"`
}

// ProjectID derives the stable identifier for a provider/name pair. It
// does not depend on config ordering, so history rows stay joinable
// across restarts and config edits.
func ProjectID(provider, name string) string {
	sum := sha256.Sum256([]byte(provider + "/" + name))
	return hex.EncodeToString(sum[:])[:12]
}

// Validate checks the fields the engine depends on.
func (p Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.Provider == "" {
		return fmt.Errorf("project %q: provider is required", p.Name)
	}
	if p.Credential == "" {
		return fmt.Errorf("project %q: credential is required", p.Name)
	}
	switch p.Kind {
	case KindBalance, KindCredits:
	default:
		return fmt.Errorf("project %q: kind must be %q or %q", p.Name, KindBalance, KindCredits)
	}
	return nil
}

// ProjectResult pairs a project with its most recent check outcome.
// When Result is a failure, LastSuccess carries the most recent
// successful check so readers still see the last good value next to
// the error.
type ProjectResult struct {
	Project     Project                `json:"project"`
	Result      providers.CheckResult  `json:"result"`
	LastSuccess *providers.CheckResult `json:"last_success,omitempty"`
	NeedAlarm   bool                   `json:"need_alarm"`
}

// SubscriptionStatus is the computed renewal outlook for one
// subscription.
type SubscriptionStatus struct {
	Subscription renewal.Subscription `json:"subscription"`
	Outcome      renewal.Outcome      `json:"outcome"`
}

// Trigger identifies what started a cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerStartup   Trigger = "startup"
)

// CycleSummary is the aggregate outcome of one check cycle.
type CycleSummary struct {
	Trigger   Trigger       `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Checked   int           `json:"checked"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Alarmed   int           `json:"alarmed"`
	Renewals  int           `json:"renewals"`
	Notified  int           `json:"notified"`
	DryRun    bool          `json:"dry_run"`
}
