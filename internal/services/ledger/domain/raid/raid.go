// Package raid defines the RAID item kinds (risks, actions, issues,
// decisions) extracted from meetings.
package raid

import "strings"

// ItemType is the kind of a RAID item.
type ItemType string

const (
	ItemAction   ItemType = "action"
	ItemDecision ItemType = "decision"
	ItemRisk     ItemType = "risk"
	ItemIssue    ItemType = "issue"
)

// ItemTypes lists every kind in display order.
func ItemTypes() []ItemType {
	return []ItemType{ItemAction, ItemDecision, ItemRisk, ItemIssue}
}

var aliases = map[string]ItemType{
	"action":       ItemAction,
	"actions":      ItemAction,
	"action_item":  ItemAction,
	"action_items": ItemAction,
	"decision":     ItemDecision,
	"decisions":    ItemDecision,
	"risk":         ItemRisk,
	"risks":        ItemRisk,
	"issue":        ItemIssue,
	"issues":       ItemIssue,
}

// ParseItemType maps user input such as "risks" or "action_item" to an
// ItemType.
func ParseItemType(raw string) (ItemType, bool) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// Valid reports whether t is a known kind.
func (t ItemType) Valid() bool {
	switch t {
	case ItemAction, ItemDecision, ItemRisk, ItemIssue:
		return true
	}
	return false
}
