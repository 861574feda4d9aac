package budget

import (
	"strings"
	"testing"
)

func TestWordCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"two words", 2},
		{"  padded   out \n lines ", 3},
	}
	for _, tc := range cases {
		if got := WordCount(tc.in); got != tc.want {
			t.Errorf("WordCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("a b c d e", 3); got != "a b ..." {
		t.Errorf("got %q", got)
	}
	if got := TruncateWords("short text", 10); got != "short text" {
		t.Errorf("under budget should be unchanged, got %q", got)
	}
	if got := TruncateWords("anything", 0); got != "" {
		t.Errorf("zero budget should empty the text, got %q", got)
	}
	if got := TruncateWords("a b c", 1); got != "a" {
		t.Errorf("one-word budget has no room for a marker, got %q", got)
	}
	// The marker is part of the budget: a trimmed section never exceeds it.
	for budget := 1; budget <= 4; budget++ {
		if got := WordCount(TruncateWords("one two three four five", budget)); got > budget {
			t.Errorf("budget %d produced %d words", budget, got)
		}
	}
}

func TestSelectRecent_KeepsNewestWithinBudget(t *testing.T) {
	msgs := []string{"one two three", "four five", "six", "seven eight"}
	got := SelectRecent(msgs, 5, 1, func(s string) string { return s })
	// Walking newest first: "seven eight" (2) + "six" (1) + "four five" (2)
	// fit in 5 words; "one two three" would overflow.
	want := []string{"four five", "six", "seven eight"}
	if len(got) != len(want) {
		t.Fatalf("kept %d messages, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelectRecent_FloorBeatsBudget(t *testing.T) {
	msgs := []string{"a a a a a", "b b b b b", "c c c c c"}
	got := SelectRecent(msgs, 1, 2, func(s string) string { return s })
	if len(got) != 2 {
		t.Fatalf("kept %d messages, want floor of 2", len(got))
	}
	if got[0] != "b b b b b" || got[1] != "c c c c c" {
		t.Errorf("floor should keep the newest messages, got %v", got)
	}
}

func TestSelectRecent_ZeroBudgetKeepsAll(t *testing.T) {
	msgs := []string{"a", "b", "c"}
	if got := SelectRecent(msgs, 0, 1, func(s string) string { return s }); len(got) != 3 {
		t.Errorf("disabled budget should keep all messages, got %v", got)
	}
}

func TestDedupeLines(t *testing.T) {
	memory := "- Likes coffee\n- Works at ACME"
	summary := "- likes coffee\n- Prefers morning meetings\n\n- WORKS AT ACME  "
	got := DedupeLines(summary, memory)
	if strings.Contains(strings.ToLower(got), "coffee") {
		t.Errorf("duplicate line survived: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "acme") {
		t.Errorf("case/space variant duplicate survived: %q", got)
	}
	if !strings.Contains(got, "Prefers morning meetings") {
		t.Errorf("unique line was dropped: %q", got)
	}
}

func TestDedupeLines_EmptyInputs(t *testing.T) {
	if got := DedupeLines("", "anything"); got != "" {
		t.Errorf("got %q", got)
	}
	if got := DedupeLines("keep me", ""); got != "keep me" {
		t.Errorf("got %q", got)
	}
}

func TestFitTotal(t *testing.T) {
	cases := []struct {
		name                string
		hist, sum, mem, tot int
		wantH, wantS, wantM int
	}{
		{"under budget", 100, 50, 30, 500, 100, 50, 30},
		{"disabled", 100, 50, 30, 0, 100, 50, 30},
		{"trim history only", 100, 50, 30, 150, 70, 50, 30},
		{"history exhausted then summary", 100, 50, 30, 60, 0, 30, 30},
		{"all three trimmed", 100, 50, 30, 20, 0, 0, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, s, m := FitTotal(tc.hist, tc.sum, tc.mem, tc.tot)
			if h != tc.wantH || s != tc.wantS || m != tc.wantM {
				t.Errorf("got (%d, %d, %d), want (%d, %d, %d)", h, s, m, tc.wantH, tc.wantS, tc.wantM)
			}
			if tc.tot > 0 && h+s+m > tc.tot {
				t.Errorf("allowances %d exceed total %d", h+s+m, tc.tot)
			}
		})
	}
}
