package health

import "local-cache/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// Engine failures in any record store.
func StorageErrorRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.StorageErrorsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Storage engine errors detected",
			Recommendation: "Check the database file and the disk it lives on",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Failed expiry sweeps leave stale records behind.
func SweepFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.SweepFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Expiry sweeps failed for one or more kinds",
			Recommendation: "Stale records may be served; trigger a manual clean once storage recovers",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// A failed clear may leave a logged-out user's data on disk.
func ClearFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.ClearFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Full cache clear failed for one or more kinds",
			Recommendation: "Retry the clear before the next login",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// The first-run catalog import did not complete.
func SeedFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.SeedFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Catalog import failed",
			Recommendation: "Check catalog service reachability; the import runs again on next start",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
