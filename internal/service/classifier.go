package service

import (
	"strings"

	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
)

// Keyword groups for action classification, checked in order. The first
// group with a keyword present in the description wins.
var actionKeywords = []struct {
	actionType string
	keywords   []string
}{
	{actionlog.ActionDataAccess, []string{"read", "access", "view", "get"}},
	{actionlog.ActionSystemModify, []string{"modify", "update", "delete", "create", "write"}},
	{actionlog.ActionUserInteraction, []string{"user", "interact", "message", "notify"}},
	{actionlog.ActionExternalAPICall, []string{"api", "external", "call", "request"}},
}

// ClassifyActionType derives an action type from a free-text proposed action.
// Descriptions that match no keyword group default to data_access.
func ClassifyActionType(proposedAction string) string {
	lower := strings.ToLower(proposedAction)
	for _, group := range actionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.actionType
			}
		}
	}
	return actionlog.ActionDataAccess
}
