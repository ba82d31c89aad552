package channel

import "strings"

// Target kinds.
const (
	TargetGroup   = "group"
	TargetPrivate = "private"
)

// Target is a send destination: a group or a direct conversation.
type Target struct {
	Kind string
	ID   string
}

// StripPrefix removes a leading "qq:" channel prefix, case-insensitively.
func StripPrefix(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "qq:") {
		return trimmed[3:]
	}
	return trimmed
}

// ParseTarget interprets a free-form destination string. "group:<id>" and
// "g:<id>" address a group, "user:<id>" a direct conversation, and a bare
// id defaults to direct. Returns false for empty or prefix-only input.
func ParseTarget(raw string) (Target, bool) {
	cleaned := StripPrefix(raw)
	if cleaned == "" {
		return Target{}, false
	}
	lower := strings.ToLower(cleaned)
	switch {
	case strings.HasPrefix(lower, "group:"):
		id := strings.TrimSpace(cleaned[len("group:"):])
		if id == "" {
			return Target{}, false
		}
		return Target{Kind: TargetGroup, ID: id}, true
	case strings.HasPrefix(lower, "g:"):
		id := strings.TrimSpace(cleaned[len("g:"):])
		if id == "" {
			return Target{}, false
		}
		return Target{Kind: TargetGroup, ID: id}, true
	case strings.HasPrefix(lower, "user:"):
		id := strings.TrimSpace(cleaned[len("user:"):])
		if id == "" {
			return Target{}, false
		}
		return Target{Kind: TargetPrivate, ID: id}, true
	}
	return Target{Kind: TargetPrivate, ID: cleaned}, true
}

// FormatTarget renders the canonical form: "group:<id>" or the bare id.
func FormatTarget(t Target) string {
	if t.Kind == TargetGroup {
		return "group:" + t.ID
	}
	return t.ID
}

// NormalizeAllowEntry canonicalizes one allow-list entry to the same form
// FormatTarget produces, so membership checks compare like with like.
func NormalizeAllowEntry(raw string) string {
	cleaned := StripPrefix(raw)
	lower := strings.ToLower(cleaned)
	switch {
	case strings.HasPrefix(lower, "group:"):
		return "group:" + strings.TrimSpace(cleaned[len("group:"):])
	case strings.HasPrefix(lower, "g:"):
		return "group:" + strings.TrimSpace(cleaned[len("g:"):])
	case strings.HasPrefix(lower, "user:"):
		return strings.TrimSpace(cleaned[len("user:"):])
	}
	return cleaned
}

// AllowList is a canonicalized entry set with a wildcard flag.
type AllowList struct {
	Entries     []string
	HasWildcard bool
}

// NormalizeAllowList canonicalizes raw entries, extracting the "*"
// wildcard and discarding blanks.
func NormalizeAllowList(entries []string) AllowList {
	var out AllowList
	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			out.HasWildcard = true
			continue
		}
		if normalized := NormalizeAllowEntry(trimmed); normalized != "" {
			out.Entries = append(out.Entries, normalized)
		}
	}
	return out
}

// Configured reports whether the list constrains anything at all.
func (a AllowList) Configured() bool {
	return a.HasWildcard || len(a.Entries) > 0
}

// Allows reports whether id passes the list.
func (a AllowList) Allows(id string) bool {
	if a.HasWildcard {
		return true
	}
	for _, entry := range a.Entries {
		if entry == id {
			return true
		}
	}
	return false
}

// MergeAllowLists canonicalizes and deduplicates entries from several
// sources, preserving first-seen order and the wildcard.
func MergeAllowLists(lists ...[]string) AllowList {
	var out AllowList
	seen := map[string]bool{}
	for _, list := range lists {
		for _, entry := range list {
			trimmed := strings.TrimSpace(entry)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				out.HasWildcard = true
				continue
			}
			normalized := NormalizeAllowEntry(trimmed)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			out.Entries = append(out.Entries, normalized)
		}
	}
	return out
}
