// Package health turns cache metrics and recent diagnostics into a health
// report.
package health

import (
	"strings"

	"local-cache/internal/logs"
	"local-cache/internal/metrics"
)

// failureThreshold is the number of recent error records that marks the
// cache as degraded even when the counters look fine.
const failureThreshold = 3

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			StorageErrorRule,
			SweepFailureRule,
			ClearFailureRule,
			SeedFailureRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	maintenanceFailures := 0
	panicCount := 0

	for _, entry := range a.logger.GetLast(100) {
		if entry.Category == logs.CategoryError {
			maintenanceFailures++
		}
		if entry.Level == logs.ERROR && strings.Contains(entry.Message, "panic") {
			panicCount++
		}
	}

	if maintenanceFailures >= failureThreshold {
		signals = append(signals, "Repeated cache maintenance failures in recent logs")
		recommendations = append(recommendations, "Check free disk space and database file permissions")
		status = escalate(status, StatusDegraded)
	}

	if panicCount > 0 {
		signals = append(signals, "Application panics detected in logs")
		recommendations = append(recommendations, "Inspect stack traces and stabilize error handling")
		status = StatusCritical
	}

	/* ---------- SUMMARY ---------- */

	summary := "Cache is healthy"
	if status != StatusOK {
		summary = "Cache health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}

func escalate(current, severity Status) Status {
	switch {
	case severity == StatusCritical:
		return StatusCritical
	case severity == StatusDegraded && current == StatusOK:
		return StatusDegraded
	}
	return current
}
