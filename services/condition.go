package services

import (
	"regexp"
	"strings"

	"deal_hunter/identity"
)

// ConditionRule assigns a resale multiplier to condition text.
type ConditionRule struct {
	Name     string
	Match    func(cond string) bool
	Modifier float64
}

// DefaultConditionModifier applies when no rule matches.
const DefaultConditionModifier = 0.70

func has(words ...string) func(string) bool {
	return func(c string) bool {
		for _, w := range words {
			if strings.Contains(c, w) {
				return true
			}
		}
		return false
	}
}

func both(a, b func(string) bool) func(string) bool {
	return func(c string) bool { return a(c) && b(c) }
}

var newWord = regexp.MustCompile(`\bnew\b`)

var (
	isRefurbished = has("refurbished", "renewed", "refurb")
	isUsed        = has("pre-owned", "preowned", "pre owned", "used")
	isNew         = func(c string) bool { return newWord.MatchString(c) && !isUsed(c) }
)

// DefaultConditionRules encode the precedence new, refurbished, used,
// salvage, parts. Qualified variants come before their family default.
func DefaultConditionRules() []ConditionRule {
	return []ConditionRule{
		{"new", isNew, 1.0},
		{"refurbished-excellent", both(isRefurbished, has("excellent")), 0.85},
		{"refurbished-good", both(isRefurbished, has("good")), 0.75},
		{"refurbished", isRefurbished, 0.80},
		{"used-like-new", both(isUsed, has("like new")), 0.85},
		{"used-good", both(isUsed, has("good")), 0.70},
		{"used-acceptable", both(isUsed, has("acceptable")), 0.55},
		{"used", isUsed, 0.65},
		{"salvage", has("salvage"), 0.35},
		{"parts", has("parts", "not working"), 0.25},
	}
}

// ConditionTable resolves condition text to a modifier, first match wins.
type ConditionTable struct {
	rules []ConditionRule
}

func NewConditionTable(rules []ConditionRule) *ConditionTable {
	return &ConditionTable{rules: rules}
}

func (t *ConditionTable) Modifier(conditionText string) float64 {
	m, _ := t.Resolve(conditionText)
	return m
}

// Resolve returns the modifier and the name of the rule that chose it.
func (t *ConditionTable) Resolve(conditionText string) (float64, string) {
	c := identity.NormalizeText(conditionText)
	for _, r := range t.rules {
		if r.Match(c) {
			return r.Modifier, r.Name
		}
	}
	return DefaultConditionModifier, "default"
}
