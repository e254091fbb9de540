package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
)

// fakeActionLogStore serves canned records and stats for report tests.
type fakeActionLogStore struct {
	records []actionlog.Record
}

func (f *fakeActionLogStore) Append(ctx context.Context, rec actionlog.Record) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeActionLogStore) QueryPeriod(ctx context.Context, start, end time.Time, agentID string) ([]actionlog.Record, error) {
	var out []actionlog.Record
	for _, rec := range f.records {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeActionLogStore) Stats(ctx context.Context, start, end time.Time) (actionlog.PeriodStats, error) {
	stats := actionlog.PeriodStats{ViolationTypes: make(map[string]int)}
	for _, rec := range f.records {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		stats.TotalActions++
		if rec.ViolationCount == 0 {
			stats.CompliantActions++
		}
		stats.TotalViolations += rec.ViolationCount
		for _, vt := range rec.ViolationTypes {
			stats.ViolationTypes[vt]++
		}
	}
	return stats, nil
}

func (f *fakeActionLogStore) Close() error { return nil }

var _ actionlog.Store = (*fakeActionLogStore)(nil)

func reportFixture() (time.Time, time.Time, *clock.Fixed) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	clk := clock.NewFixed(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	return start, end, clk
}

func logRecord(agentID string, ts time.Time, violationTypes ...string) actionlog.Record {
	return actionlog.Record{
		LogID:          "LOG_20250615120000_000001",
		AgentID:        agentID,
		ActionType:     actionlog.ActionDataAccess,
		Description:    "test action",
		Timestamp:      ts,
		ViolationCount: len(violationTypes),
		ViolationTypes: violationTypes,
	}
}

func TestGenerateReportMetrics(t *testing.T) {
	start, end, clk := reportFixture()
	mid := start.Add(12 * time.Hour)

	store := &fakeActionLogStore{records: []actionlog.Record{
		logRecord("agent-1", mid),
		logRecord("agent-1", mid, "unauthorized_access"),
		logRecord("agent-2", mid),
		logRecord("agent-2", start.Add(-time.Hour)), // outside the window
	}}

	svc := NewReportService(store, clk, discardLogger())
	report, err := svc.Generate(context.Background(), start, end, "", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if report.Metrics.TotalActions != 3 {
		t.Errorf("total actions = %d, want 3", report.Metrics.TotalActions)
	}
	if report.Metrics.CompliantActions != 2 {
		t.Errorf("compliant actions = %d, want 2", report.Metrics.CompliantActions)
	}
	if report.Metrics.Violations != 1 {
		t.Errorf("violations = %d, want 1", report.Metrics.Violations)
	}
	wantRate := 2.0 / 3.0
	if report.Metrics.ComplianceRate != wantRate {
		t.Errorf("compliance rate = %v, want %v", report.Metrics.ComplianceRate, wantRate)
	}
	if !report.GeneratedAt.Equal(clk.Now()) {
		t.Errorf("generated at = %v, want clock instant", report.GeneratedAt)
	}
	if report.ViolatingActions != nil {
		t.Errorf("detailed violations must be absent when not requested")
	}
}

func TestGenerateReportIDFormat(t *testing.T) {
	start, end, clk := reportFixture()
	svc := NewReportService(&fakeActionLogStore{}, clk, discardLogger())

	report, err := svc.Generate(context.Background(), start, end, "", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pattern := regexp.MustCompile(`^RPT_20250701090000_[0-9a-f]{8}$`)
	if !pattern.MatchString(report.ReportID) {
		t.Errorf("report ID %q does not match RPT_<timestamp>_<uuid8>", report.ReportID)
	}
}

func TestGenerateReportEmptyWindow(t *testing.T) {
	start, end, clk := reportFixture()
	svc := NewReportService(&fakeActionLogStore{}, clk, discardLogger())

	report, err := svc.Generate(context.Background(), start, end, "", true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Metrics.ComplianceRate != 1.0 {
		t.Errorf("empty window compliance rate = %v, want 1.0", report.Metrics.ComplianceRate)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("empty window recommendations = %v, want none", report.Recommendations)
	}
}

func TestGenerateReportDetailedViolations(t *testing.T) {
	start, end, clk := reportFixture()
	mid := start.Add(time.Hour)

	store := &fakeActionLogStore{records: []actionlog.Record{
		logRecord("agent-1", mid, "unauthorized_access"),
		logRecord("agent-1", mid),
		logRecord("agent-2", mid, "forbidden_action"),
	}}

	svc := NewReportService(store, clk, discardLogger())
	report, err := svc.Generate(context.Background(), start, end, "agent-1", true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Aggregate metrics span all agents; the detailed list is scoped to
	// the requested agent and only includes violating actions.
	if report.Metrics.TotalActions != 3 {
		t.Errorf("total actions = %d, want 3", report.Metrics.TotalActions)
	}
	if len(report.ViolatingActions) != 1 {
		t.Fatalf("detailed violations = %d records, want 1", len(report.ViolatingActions))
	}
	if report.ViolatingActions[0].AgentID != "agent-1" {
		t.Errorf("detailed violation agent = %q, want agent-1", report.ViolatingActions[0].AgentID)
	}
}

func TestGenerateReportRecommendations(t *testing.T) {
	start, end, clk := reportFixture()
	mid := start.Add(time.Hour)

	// 12 violating actions out of 12: rate 0.0 and violations > 10.
	store := &fakeActionLogStore{}
	for range 12 {
		store.records = append(store.records, logRecord("agent-1", mid, "unauthorized_access"))
	}
	store.records = append(store.records, logRecord("agent-1", mid, "time_violation"))

	svc := NewReportService(store, clk, discardLogger())
	report, err := svc.Generate(context.Background(), start, end, "", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		"Consider reviewing and updating policies",
		"Implement additional agent training",
		"Focus on addressing unauthorized_access violations",
	}
	if len(report.Recommendations) != len(want) {
		t.Fatalf("recommendations = %v, want %v", report.Recommendations, want)
	}
	for i := range want {
		if report.Recommendations[i] != want[i] {
			t.Errorf("recommendations[%d] = %q, want %q", i, report.Recommendations[i], want[i])
		}
	}
}

func TestTopViolationTypesOrdering(t *testing.T) {
	counts := map[string]int{
		"unauthorized_access": 3,
		"forbidden_action":    3,
		"time_violation":      5,
		"resource_abuse":      1,
		"data_breach":         1,
		"policy_violation":    1,
	}

	got := topViolationTypes(counts, 5)
	want := []string{
		"time_violation",
		"forbidden_action",
		"unauthorized_access",
		"data_breach",
		"policy_violation",
	}
	if len(got) != 5 {
		t.Fatalf("top types = %v, want 5 entries", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("top[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
