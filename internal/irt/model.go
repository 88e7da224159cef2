package irt

import (
	"fmt"
	"math"
	"strings"
)

// D is the logistic scaling constant. Parameters are expressed on the
// logistic metric, so no 1.702 normal-ogive correction is applied.
const D = 1.0

// Model selects the item response function. All three share one
// probability function; they differ only in which parameters they honour.
type Model string

const (
	ModelRasch Model = "rasch" // a fixed to 1, c fixed to 0
	Model2PL   Model = "2pl"   // c fixed to 0
	Model3PL   Model = "3pl"
)

// ParseModel accepts the wire names plus the common aliases "1pl" and "3PL".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rasch", "1pl":
		return ModelRasch, nil
	case "2pl":
		return Model2PL, nil
	case "3pl":
		return Model3PL, nil
	default:
		return "", fmt.Errorf("unknown irt model %q", s)
	}
}

func (m Model) Valid() bool {
	switch m {
	case ModelRasch, Model2PL, Model3PL:
		return true
	}
	return false
}

// UsesDiscrimination reports whether item discrimination affects the model.
func (m Model) UsesDiscrimination() bool { return m == Model2PL || m == Model3PL }

// Params are the per-item IRT constants.
type Params struct {
	Discrimination float64 `json:"discrimination" yaml:"discrimination"`
	Difficulty     float64 `json:"difficulty" yaml:"difficulty"`
	Guessing       float64 `json:"guessing,omitempty" yaml:"guessing,omitempty"`
}

// Effective returns the parameters the model actually evaluates.
func (m Model) Effective(p Params) Params {
	switch m {
	case ModelRasch:
		return Params{Discrimination: 1, Difficulty: p.Difficulty}
	case Model2PL:
		p.Guessing = 0
	}
	return p
}

// Probability is P(correct | theta) for the item under m.
func (m Model) Probability(theta float64, p Params) float64 {
	return probability(theta, m.Effective(p))
}

// Information is the Fisher information the item carries at theta.
func (m Model) Information(theta float64, p Params) float64 {
	return information(theta, m.Effective(p))
}

func probability(theta float64, p Params) float64 {
	z := D * p.Discrimination * (theta - p.Difficulty)
	return p.Guessing + (1-p.Guessing)/(1+math.Exp(-z))
}

// information uses the 3PL form a²·(Q/P)·((P-c)/(1-c))², which reduces to
// a²·P·Q when c = 0.
func information(theta float64, p Params) float64 {
	pr := probability(theta, p)
	if pr <= 0 || pr >= 1 || p.Guessing >= 1 {
		return 0
	}
	a := D * p.Discrimination
	r := (pr - p.Guessing) / (1 - p.Guessing)
	return a * a * ((1 - pr) / pr) * r * r
}

// scoreTerm is the derivative of the log-likelihood of one response.
func scoreTerm(theta float64, p Params, correct bool) float64 {
	pr := probability(theta, p)
	if pr <= 0 || pr >= 1 {
		return 0
	}
	u := 0.0
	if correct {
		u = 1
	}
	a := D * p.Discrimination
	return a * (u - pr) * (pr - p.Guessing) / (pr * (1 - p.Guessing))
}
