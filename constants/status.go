package constants

import "strings"

// CardStatus is the lifecycle status of a route card once it leaves the issuer.
// The issuer itself never sets it; records are created with a NULL status.
type CardStatus string

// Stable values (store these exact strings in DB).
const (
	CardStatusAssigned   CardStatus = "ASSIGNED"    // handed to a cluster
	CardStatusInProgress CardStatus = "IN_PROGRESS" // work started
	CardStatusClosed     CardStatus = "CLOSED"      // terminal
	CardStatusVoid       CardStatus = "VOID"        // spoiled or cancelled, number stays burned
)

var allStatuses = []CardStatus{
	CardStatusAssigned,
	CardStatusInProgress,
	CardStatusClosed,
	CardStatusVoid,
}

func StatusStrings() []string {
	result := make([]string, len(allStatuses))
	for i, s := range allStatuses {
		result[i] = string(s)
	}
	return result
}

// CanonicalizeStatus maps operator spellings onto a stable status value.
func CanonicalizeStatus(input string) (CardStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]CardStatus{
		"in progress": CardStatusInProgress,
		"started":     CardStatusInProgress,
		"done":        CardStatusClosed,
		"cancelled":   CardStatusVoid,
		"canceled":    CardStatusVoid,
		"spoiled":     CardStatusVoid,
	}
	if s, ok := synonyms[normalized]; ok {
		return s, true
	}

	for _, s := range allStatuses {
		if normalized == strings.ToLower(string(s)) {
			return s, true
		}
	}
	return "", false
}
