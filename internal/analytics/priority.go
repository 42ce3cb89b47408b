package analytics

import "strings"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityRules configures Classify. Ages are exclusive lower bounds and
// keywords match case-insensitively anywhere in the complaint.
type PriorityRules struct {
	HighAge        int      `mapstructure:"high_age"`
	MediumAge      int      `mapstructure:"medium_age"`
	HighKeywords   []string `mapstructure:"high_keywords"`
	MediumKeywords []string `mapstructure:"medium_keywords"`
}

func DefaultPriorityRules() PriorityRules {
	return PriorityRules{
		HighAge:        70,
		MediumAge:      50,
		HighKeywords:   []string{"cardiac", "post-op"},
		MediumKeywords: []string{"chronic"},
	}
}

// Classifier maps a patient to the priority of the task that concerns them.
type Classifier func(age int, complaint string) Priority

// Classify is the default patient complexity heuristic.
func Classify(age int, complaint string, rules PriorityRules) Priority {
	complaint = strings.ToLower(complaint)

	if age > rules.HighAge || containsAny(complaint, rules.HighKeywords) {
		return PriorityHigh
	}
	if age > rules.MediumAge || containsAny(complaint, rules.MediumKeywords) {
		return PriorityMedium
	}
	return PriorityLow
}

func (r PriorityRules) Classifier() Classifier {
	return func(age int, complaint string) Priority {
		return Classify(age, complaint, r)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
