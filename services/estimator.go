package services

import (
	"fmt"

	"deal_hunter/config"
	"deal_hunter/identity"
	"deal_hunter/models"
)

// Estimator guesses resale value from a listing title alone. It holds
// no mutable state and is safe for concurrent use.
type Estimator struct {
	rules       []PriceRule
	accessories Matcher
	primary     Matcher
}

func NewEstimator(rules []PriceRule, accessoryWords, primaryWords []string) *Estimator {
	return &Estimator{
		rules:       rules,
		accessories: AnyPhrase(accessoryWords...),
		primary:     AnyPhrase(primaryWords...),
	}
}

func NewDefaultEstimator() *Estimator {
	return NewEstimator(DefaultPriceRules(), DefaultAccessoryWords, DefaultPrimaryWords)
}

// NewEstimatorFromConfig builds the estimator from pricing.yaml when
// present, and from the built-in table otherwise.
func NewEstimatorFromConfig(p *config.PricingConfig) (*Estimator, error) {
	if p == nil || len(p.Rules) == 0 {
		return NewDefaultEstimator(), nil
	}
	rules, err := CompileRules(p.Rules)
	if err != nil {
		return nil, err
	}
	accessories, primary := DefaultAccessoryWords, DefaultPrimaryWords
	if len(p.AccessoryWords) > 0 {
		accessories = p.AccessoryWords
	}
	if len(p.PrimaryWords) > 0 {
		primary = p.PrimaryWords
	}
	return NewEstimator(rules, accessories, primary), nil
}

// CompileRules turns YAML rule specs into matchers, keeping file order.
func CompileRules(specs []config.PriceRuleSpec) ([]PriceRule, error) {
	rules := make([]PriceRule, 0, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("pricing rule %d: name is required", i)
		}
		if s.Price <= 0 {
			return nil, fmt.Errorf("pricing rule %s: price must be positive", s.Name)
		}
		if len(s.All) == 0 && len(s.Any) == 0 {
			return nil, fmt.Errorf("pricing rule %s: needs all or any tokens", s.Name)
		}

		var parts []Matcher
		if len(s.All) > 0 {
			parts = append(parts, Phrase(s.All...))
		}
		if len(s.Any) > 0 {
			parts = append(parts, AnyPhrase(s.Any...))
		}
		if len(s.None) > 0 {
			parts = append(parts, Not(AnyPhrase(s.None...)))
		}

		conf := models.Confidence(s.Confidence)
		switch conf {
		case models.ConfidenceHigh, models.ConfidenceMedium:
		case "":
			conf = models.ConfidenceMedium
		default:
			return nil, fmt.Errorf("pricing rule %s: confidence must be medium or high", s.Name)
		}

		rules = append(rules, PriceRule{
			Name:       s.Name,
			Category:   s.Category,
			Match:      AllOf(parts...),
			Price:      s.Price,
			Confidence: conf,
		})
	}
	return rules, nil
}

// Estimate returns a nil EstimatedRetail with low confidence when the
// title is an accessory or no rule matches.
func (e *Estimator) Estimate(title string) *models.RetailEstimate {
	est := &models.RetailEstimate{Title: title, Confidence: models.ConfidenceLow}

	t := NewTitle(identity.NormalizeText(title))
	if e.accessories(t) && !e.primary(t) {
		est.Rule = "accessory"
		return est
	}

	for _, r := range e.rules {
		if !r.Match(t) {
			continue
		}
		price := r.Price
		est.EstimatedRetail = &price
		est.Confidence = r.Confidence
		est.Category = r.Category
		est.Rule = r.Name
		return est
	}
	return est
}

func (e *Estimator) Rules() []PriceRule {
	return e.rules
}
