package matcher

// LinkUpdates returns the link field each matched record should carry:
// the context ids for a charge, and the charge id for each context record.
func LinkUpdates(matches []MatchResult) map[string][]string {
	updates := make(map[string][]string)
	for _, m := range matches {
		updates[m.ChargeID] = append([]string(nil), m.ContextIDs...)
		for _, id := range m.ContextIDs {
			updates[id] = []string{m.ChargeID}
		}
	}
	return updates
}

// Apply returns a copy of records with the links from matches written in.
// Links are overwritten, so applying the same matches twice changes nothing.
// Records are not modified.
func Apply(records []Record, matches []MatchResult) []Record {
	updates := LinkUpdates(matches)
	out := make([]Record, len(records))
	for i, r := range records {
		if links, ok := updates[r.ID]; ok {
			r.ExistingLinks = append([]string(nil), links...)
		} else if r.ExistingLinks != nil {
			r.ExistingLinks = append([]string(nil), r.ExistingLinks...)
		}
		out[i] = r
	}
	return out
}

// SameLinks reports whether two link lists are equal.
func SameLinks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
