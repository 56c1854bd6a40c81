package domain

import (
	"slices"
	"strings"
	"time"
)

// SpecificityRule is appended when feedback complains about generic output.
const SpecificityRule = "Be more specific"

const feedbackWeightStep = 0.1

// SteeringProfile is an immutable, versioned snapshot of synthesis steering.
type SteeringProfile struct {
	ID                int64     `json:"id"`
	ProductFocus      string    `json:"product_focus"`
	ICP               string    `json:"icp"`
	KeyPains          []string  `json:"key_pains"`
	DisallowedClaims  []string  `json:"disallowed_claims"`
	CompetitorList    []string  `json:"competitor_list"`
	WeightNews        float64   `json:"weight_news"`
	WeightRolePains   float64   `json:"weight_role_pains"`
	WeightCompetitors float64   `json:"weight_competitors"`
	SpecificityRules  []string  `json:"specificity_rules"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultSteeringProfile is the version 1 profile created when none exists.
func DefaultSteeringProfile(now time.Time) SteeringProfile {
	return SteeringProfile{
		ProductFocus:      "Always-on meeting prep agent",
		ICP:               "B2B SaaS founders",
		KeyPains:          []string{"Generic outreach", "Low reply rates"},
		DisallowedClaims:  []string{"We guarantee outcomes"},
		CompetitorList:    []string{"CompetitorX", "CompetitorY"},
		WeightNews:        0.34,
		WeightRolePains:   0.33,
		WeightCompetitors: 0.33,
		SpecificityRules:  []string{"Reference recent news", "Avoid vague claims"},
		Version:           1,
		UpdatedAt:         now.UTC(),
	}
}

// Next returns a copy of p prepared to be stored as the following version.
func (p SteeringProfile) Next(now time.Time) SteeringProfile {
	next := p
	next.ID = 0
	next.KeyPains = slices.Clone(p.KeyPains)
	next.DisallowedClaims = slices.Clone(p.DisallowedClaims)
	next.CompetitorList = slices.Clone(p.CompetitorList)
	next.SpecificityRules = slices.Clone(p.SpecificityRules)
	next.Version = p.Version + 1
	next.UpdatedAt = now.UTC()
	return next
}

// Weights returns news, role-pains and competitor weights in that order.
func (p SteeringProfile) Weights() (float64, float64, float64) {
	return p.WeightNews, p.WeightRolePains, p.WeightCompetitors
}

// SetWeights clamps the weights at zero and rescales them to sum to 1.
// A zero sum leaves the current weights untouched.
func (p *SteeringProfile) SetWeights(news, rolePains, competitors float64) {
	news, rolePains, competitors = max(0, news), max(0, rolePains), max(0, competitors)
	total := news + rolePains + competitors
	if total == 0 {
		return
	}
	p.WeightNews = news / total
	p.WeightRolePains = rolePains / total
	p.WeightCompetitors = competitors / total
}

// AddRule appends rule unless an identical rule is already present.
func (p *SteeringProfile) AddRule(rule string) bool {
	if slices.Contains(p.SpecificityRules, rule) {
		return false
	}
	p.SpecificityRules = append(p.SpecificityRules, rule)
	return true
}

// AdaptToFeedback derives the profile that follows current after negative feedback.
// Keywords in notes nudge the matching weight and may add the specificity rule.
func AdaptToFeedback(current SteeringProfile, notes string, now time.Time) SteeringProfile {
	next := current.Next(now)
	text := strings.ToLower(notes)

	if strings.Contains(text, "generic") || strings.Contains(text, "specific") {
		next.AddRule(SpecificityRule)
	}

	news, rolePains, competitors := current.Weights()
	if strings.Contains(text, "news") {
		news += feedbackWeightStep
	}
	if strings.Contains(text, "role") || strings.Contains(text, "pain") {
		rolePains += feedbackWeightStep
	}
	if strings.Contains(text, "competitor") {
		competitors += feedbackWeightStep
	}
	next.SetWeights(news, rolePains, competitors)

	return next
}

// SteeringPatch carries an explicit, partial profile edit; nil fields are kept.
type SteeringPatch struct {
	ProductFocus      *string   `json:"product_focus,omitempty"`
	ICP               *string   `json:"icp,omitempty"`
	KeyPains          *[]string `json:"key_pains,omitempty"`
	DisallowedClaims  *[]string `json:"disallowed_claims,omitempty"`
	CompetitorList    *[]string `json:"competitor_list,omitempty"`
	WeightNews        *float64  `json:"weight_news,omitempty"`
	WeightRolePains   *float64  `json:"weight_role_pains,omitempty"`
	WeightCompetitors *float64  `json:"weight_competitors,omitempty"`
	SpecificityRules  *[]string `json:"specificity_rules,omitempty"`
}

// Apply builds the next version of current with the patch applied.
func (patch SteeringPatch) Apply(current SteeringProfile, now time.Time) SteeringProfile {
	next := current.Next(now)
	if patch.ProductFocus != nil {
		next.ProductFocus = *patch.ProductFocus
	}
	if patch.ICP != nil {
		next.ICP = *patch.ICP
	}
	if patch.KeyPains != nil {
		next.KeyPains = slices.Clone(*patch.KeyPains)
	}
	if patch.DisallowedClaims != nil {
		next.DisallowedClaims = slices.Clone(*patch.DisallowedClaims)
	}
	if patch.CompetitorList != nil {
		next.CompetitorList = slices.Clone(*patch.CompetitorList)
	}
	if patch.SpecificityRules != nil {
		next.SpecificityRules = nil
		for _, rule := range *patch.SpecificityRules {
			next.AddRule(rule)
		}
	}

	news, rolePains, competitors := next.Weights()
	if patch.WeightNews != nil {
		news = *patch.WeightNews
	}
	if patch.WeightRolePains != nil {
		rolePains = *patch.WeightRolePains
	}
	if patch.WeightCompetitors != nil {
		competitors = *patch.WeightCompetitors
	}
	next.SetWeights(news, rolePains, competitors)

	return next
}
