package service

import (
	"testing"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
)

func TestClassifyActionType(t *testing.T) {
	cases := []struct {
		proposed string
		want     string
	}{
		{"read customer records", actionlog.ActionDataAccess},
		{"Access the billing dashboard", actionlog.ActionDataAccess},
		{"delete stale sessions", actionlog.ActionSystemModify},
		{"update configuration file", actionlog.ActionSystemModify},
		{"notify the on-call engineer", actionlog.ActionUserInteraction},
		{"call the payments api", actionlog.ActionExternalAPICall},
		{"invoke external webhook", actionlog.ActionExternalAPICall},
		{"ponder silently", actionlog.ActionDataAccess},
		{"", actionlog.ActionDataAccess},
	}
	for _, tc := range cases {
		t.Run(tc.proposed, func(t *testing.T) {
			if got := ClassifyActionType(tc.proposed); got != tc.want {
				t.Errorf("ClassifyActionType(%q) = %q, want %q", tc.proposed, got, tc.want)
			}
		})
	}
}
