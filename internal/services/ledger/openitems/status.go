package openitems

import "strings"

var closedStatuses = map[string]struct{}{
	"completed": {},
	"cancelled": {},
	"closed":    {},
	"resolved":  {},
}

// IsItemOpen reports whether status leaves an item open. Only completed,
// cancelled, closed, and resolved (any case) close an item; empty is open.
func IsItemOpen(status string) bool {
	_, closed := closedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return !closed
}
