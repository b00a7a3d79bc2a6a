package model

import "strings"

// HumanizeAgency rewrites the feed's inverted agency names into reading
// order, e.g. "Health, Department of" becomes "Department of Health".
// Names without a trailing ", X of" clause are only whitespace-normalized.
func HumanizeAgency(agency string) string {
	name := strings.Join(strings.Fields(agency), " ")
	if name == "" {
		return ""
	}

	idx := strings.LastIndex(name, ", ")
	if idx <= 0 {
		return name
	}
	head, tail := name[:idx], name[idx+2:]
	if !strings.HasSuffix(strings.ToLower(tail), " of") && !strings.HasSuffix(strings.ToLower(tail), " for") {
		return name
	}
	return tail + " " + head
}
