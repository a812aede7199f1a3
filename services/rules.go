package services

import (
	"strings"

	"deal_hunter/models"
)

// Title is a lowercased title split into alphanumeric words, so that
// rule tokens match whole words ("12" does not match "128gb"). Glued
// model names are split at letter/digit boundaries ("iphone14" reads as
// "iphone 14"), except before a unit suffix.
type Title struct {
	Raw   string
	words []string
}

var unitSuffixes = map[string]bool{
	"gb": true, "tb": true, "mb": true, "in": true, "inch": true,
	"hz": true, "mah": true, "mp": true, "mm": true, "w": true,
}

func NewTitle(raw string) Title {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		words = append(words, splitAlnum(f)...)
	}
	return Title{Raw: raw, words: words}
}

func splitAlnum(w string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(w); i++ {
		prevDigit, curDigit := isDigit(w[i-1]), isDigit(w[i])
		if prevDigit == curDigit {
			continue
		}
		if prevDigit && unitSuffixes[w[i:]] {
			break
		}
		parts = append(parts, w[start:i])
		start = i
	}
	return append(parts, w[start:])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Has reports whether phrase occurs as consecutive whole words.
func (t Title) Has(phrase string) bool {
	want := NewTitle(phrase).words
	if len(want) == 0 || len(want) > len(t.words) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(t.words); i++ {
		for j, w := range want {
			if t.words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// Matcher is a predicate over a title.
type Matcher func(Title) bool

// Phrase matches when every phrase is present.
func Phrase(phrases ...string) Matcher {
	return func(t Title) bool {
		for _, p := range phrases {
			if !t.Has(p) {
				return false
			}
		}
		return true
	}
}

// AnyPhrase matches when at least one phrase is present.
func AnyPhrase(phrases ...string) Matcher {
	return func(t Title) bool {
		for _, p := range phrases {
			if t.Has(p) {
				return true
			}
		}
		return false
	}
}

func AllOf(matchers ...Matcher) Matcher {
	return func(t Title) bool {
		for _, m := range matchers {
			if !m(t) {
				return false
			}
		}
		return true
	}
}

func Not(m Matcher) Matcher {
	return func(t Title) bool { return !m(t) }
}

// PriceRule maps matching titles to a retail price. Rules are evaluated
// in order and the first match wins, so refinements precede the family
// default they refine.
type PriceRule struct {
	Name       string
	Category   string
	Match      Matcher
	Price      float64
	Confidence models.Confidence
}

var laptopWords = []string{
	"laptop", "notebook", "macbook", "thinkpad", "latitude", "chromebook",
	"elitebook", "probook", "ideapad", "pavilion", "inspiron", "xps",
	"surface pro", "surface laptop",
}

// DefaultAccessoryWords mark titles that are probably an accessory for
// a device rather than the device.
var DefaultAccessoryWords = []string{
	"cable", "cables", "lock", "bag", "bags", "backpack", "charger", "chargers",
	"adapter", "adapters", "case", "cases", "sleeve", "stand", "mount", "holder",
	"strap", "cleaning", "kit", "cover", "covers", "skin", "skins",
	"protector", "protectors", "lot of",
}

// DefaultPrimaryWords override accessory rejection.
var DefaultPrimaryWords = []string{"macbook", "thinkpad", "iphone", "ipad", "galaxy"}

// DefaultPriceRules is the built-in table of device families.
func DefaultPriceRules() []PriceRule {
	laptop := AnyPhrase(laptopWords...)
	iphone := Phrase("iphone")
	galaxy := AnyPhrase("galaxy", "samsung")
	ipad := Phrase("ipad")
	xbox := Phrase("xbox")
	nswitch := Phrase("nintendo switch")

	high, medium := models.ConfidenceHigh, models.ConfidenceMedium

	return []PriceRule{
		{"macbook-pro-large", "laptop", AllOf(laptop, Phrase("macbook pro"), AnyPhrase("16", "m3", "m2")), 2000, high},
		{"macbook-pro", "laptop", AllOf(laptop, Phrase("macbook pro")), 1200, medium},
		{"macbook-air", "laptop", AllOf(laptop, Phrase("macbook air")), 900, high},
		{"thinkpad-x1", "laptop", AllOf(laptop, Phrase("thinkpad x1")), 1200, high},
		{"thinkpad", "laptop", AllOf(laptop, Phrase("thinkpad")), 600, medium},
		{"dell-latitude", "laptop", AllOf(laptop, Phrase("dell latitude")), 500, medium},
		{"chromebook", "laptop", AllOf(laptop, Phrase("chromebook")), 200, medium},
		{"gaming-laptop", "laptop", AllOf(laptop, AnyPhrase("gaming", "predator", "rog")), 1000, medium},
		{"laptop", "laptop", laptop, 400, medium},

		{"iphone-15-pro", "phone", AllOf(iphone, Phrase("15 pro")), 1000, high},
		{"iphone-15", "phone", AllOf(iphone, Phrase("15")), 800, high},
		{"iphone-14-pro", "phone", AllOf(iphone, Phrase("14 pro")), 800, high},
		{"iphone-14", "phone", AllOf(iphone, Phrase("14")), 600, high},
		{"iphone-13", "phone", AllOf(iphone, Phrase("13")), 500, high},
		{"iphone-12", "phone", AllOf(iphone, Phrase("12")), 400, high},
		{"iphone", "phone", iphone, 350, medium},

		{"galaxy-s24-s23", "phone", AllOf(galaxy, AnyPhrase("s24", "s23")), 700, high},
		{"galaxy-s22-s21", "phone", AllOf(galaxy, AnyPhrase("s22", "s21")), 500, high},
		{"galaxy", "phone", galaxy, 300, medium},

		{"ipad-pro", "tablet", AllOf(ipad, Phrase("pro")), 800, high},
		{"ipad-air", "tablet", AllOf(ipad, Phrase("air")), 500, high},
		{"ipad", "tablet", ipad, 350, medium},

		{"playstation-5", "console", AnyPhrase("playstation", "ps5"), 450, medium},
		{"xbox-series-x", "console", AllOf(xbox, Phrase("series x")), 450, high},
		{"xbox", "console", xbox, 300, medium},
		{"switch-oled", "console", AllOf(nswitch, Phrase("oled")), 350, high},
		{"nintendo-switch", "console", nswitch, 250, medium},
	}
}
