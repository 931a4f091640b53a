package app

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	fuzzyCutoff     = 0.6
	fuzzyCandidates = 3
)

func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

type scoredCity struct {
	name  string
	score float64
}

// closeMatches returns up to n possibilities whose similarity ratio to word is
// at least cutoff, best first. Equal scores order by name descending.
func closeMatches(word string, possibilities []string, n int, cutoff float64) []string {
	if n <= 0 || word == "" {
		return nil
	}
	m := difflib.NewMatcher(nil, nil)
	m.SetSeq2(runes(word))

	var scored []scoredCity
	for _, p := range possibilities {
		m.SetSeq1(runes(p))
		if m.RealQuickRatio() >= cutoff && m.QuickRatio() >= cutoff {
			if r := m.Ratio(); r >= cutoff {
				scored = append(scored, scoredCity{name: p, score: r})
			}
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].name > scored[j].name
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.name
	}
	return out
}
