package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
)

// ComplianceMetrics summarizes action compliance over a reporting window.
type ComplianceMetrics struct {
	TotalActions         int      `json:"total_actions"`
	CompliantActions     int      `json:"compliant_actions"`
	Violations           int      `json:"violations"`
	ComplianceRate       float64  `json:"compliance_rate"`
	MostCommonViolations []string `json:"most_common_violations"`
}

// ComplianceReport is one generated report.
type ComplianceReport struct {
	ReportID         string             `json:"report_id"`
	AgentID          string             `json:"agent_id,omitempty"`
	PeriodStart      time.Time          `json:"period_start"`
	PeriodEnd        time.Time          `json:"period_end"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Metrics          ComplianceMetrics  `json:"metrics"`
	ViolatingActions []actionlog.Record `json:"detailed_violations,omitempty"`
	Recommendations  []string           `json:"recommendations"`
}

// ReportService generates compliance reports by folding over the action log.
type ReportService struct {
	logs   actionlog.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(logs actionlog.Store, clk clock.Clock, logger *slog.Logger) *ReportService {
	return &ReportService{logs: logs, clock: clk, logger: logger}
}

// Generate builds a compliance report for [start, end]. When agentID is
// non-empty the detailed violation list is limited to that agent; the
// aggregate metrics always cover all agents, matching the original report
// semantics. includeViolations controls whether violating action records are
// attached.
func (s *ReportService) Generate(ctx context.Context, start, end time.Time, agentID string, includeViolations bool) (*ComplianceReport, error) {
	stats, err := s.logs.Stats(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate action logs: %w", err)
	}

	now := s.clock.Now()
	report := &ComplianceReport{
		ReportID:    fmt.Sprintf("RPT_%s_%s", now.UTC().Format("20060102150405"), uuid.New().String()[:8]),
		AgentID:     agentID,
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedAt: now,
		Metrics: ComplianceMetrics{
			TotalActions:         stats.TotalActions,
			CompliantActions:     stats.CompliantActions,
			Violations:           stats.TotalViolations,
			ComplianceRate:       stats.ComplianceRate(),
			MostCommonViolations: topViolationTypes(stats.ViolationTypes, 5),
		},
	}

	if includeViolations {
		records, err := s.logs.QueryPeriod(ctx, start, end, agentID)
		if err != nil {
			return nil, fmt.Errorf("query action logs: %w", err)
		}
		for _, rec := range records {
			if rec.ViolationCount > 0 {
				report.ViolatingActions = append(report.ViolatingActions, rec)
			}
		}
	}

	report.Recommendations = buildRecommendations(report.Metrics, stats.ViolationTypes)

	s.logger.Info("compliance report generated",
		"report_id", report.ReportID,
		"agent_id", agentID,
		"period_start", start,
		"period_end", end,
	)

	return report, nil
}

// topViolationTypes returns up to n violation types ordered by frequency,
// ties broken alphabetically so reports are deterministic.
func topViolationTypes(counts map[string]int, n int) []string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > n {
		types = types[:n]
	}
	return types
}

// buildRecommendations derives advisory follow-ups from the report metrics.
func buildRecommendations(m ComplianceMetrics, counts map[string]int) []string {
	var recs []string
	if m.ComplianceRate < 0.9 {
		recs = append(recs, "Consider reviewing and updating policies")
	}
	if m.Violations > 10 {
		recs = append(recs, "Implement additional agent training")
	}
	if len(m.MostCommonViolations) > 0 {
		recs = append(recs, fmt.Sprintf("Focus on addressing %s violations", m.MostCommonViolations[0]))
	}
	return recs
}
