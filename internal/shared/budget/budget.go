// Package budget provides pure word-count helpers used by context assembly.
// All functions are deterministic and side-effect free.
package budget

import "strings"

// WordCount returns the number of whitespace-separated tokens in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// TruncateWords cuts s to at most maxWords words, keeping the prefix. When a
// cut happens the result ends in an ellipsis marker that counts against the
// budget, so the result never exceeds maxWords words. A non-positive maxWords
// yields the empty string.
func TruncateWords(s string, maxWords int) string {
	if maxWords <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	if maxWords == 1 {
		return words[0]
	}
	return strings.Join(words[:maxWords-1], " ") + " ..."
}

// SelectRecent walks msgs newest to oldest, keeping messages while the running
// word total stays within maxWords, and returns the kept suffix in original
// order. The last minRecent messages are always kept regardless of budget.
// wordsOf extracts the countable text of one message.
func SelectRecent[T any](msgs []T, maxWords, minRecent int, wordsOf func(T) string) []T {
	if minRecent < 1 {
		minRecent = 1
	}
	if len(msgs) <= minRecent {
		out := make([]T, len(msgs))
		copy(out, msgs)
		return out
	}
	if maxWords <= 0 {
		out := make([]T, len(msgs))
		copy(out, msgs)
		return out
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		w := WordCount(wordsOf(msgs[i]))
		if total+w > maxWords && len(msgs)-i > minRecent {
			break
		}
		total += w
		start = i
	}
	// Floor: never return fewer than minRecent messages.
	if len(msgs)-start < minRecent {
		start = len(msgs) - minRecent
	}
	out := make([]T, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}

// DedupeLines removes from text every line whose normalized form (trimmed,
// lowercased) already occurs in against. Blank lines are preserved. Returns
// the filtered text.
func DedupeLines(text, against string) string {
	if text == "" || against == "" {
		return text
	}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(against, "\n") {
		norm := normalizeLine(line)
		if norm != "" {
			seen[norm] = struct{}{}
		}
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		norm := normalizeLine(line)
		if norm == "" {
			kept = append(kept, line)
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func normalizeLine(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}

// FitTotal distributes a total word budget across the three context sections,
// trimming in the fixed order history, then summary, then memory. It returns
// the per-section allowances. A non-positive total leaves all sections
// untouched.
func FitTotal(history, summary, memory, total int) (int, int, int) {
	if total <= 0 || history+summary+memory <= total {
		return history, summary, memory
	}
	over := history + summary + memory - total

	cut := min(over, history)
	history -= cut
	over -= cut

	cut = min(over, summary)
	summary -= cut
	over -= cut

	memory -= min(over, memory)
	return history, summary, memory
}
