package session

import (
	"fmt"
	"math"

	"github.com/mind-engage/mindengage-cat/internal/irt"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/selection"
	"github.com/mind-engage/mindengage-cat/internal/termination"
)

// Config is the adaptive-testing configuration. It is fixed at session
// start and stored with the session.
type Config struct {
	Algorithm           irt.Model        `json:"algorithm"`
	StartingTheta       float64          `json:"starting_theta"`
	StartingSE          float64          `json:"starting_se"`
	MinItems            int              `json:"min_items"`
	MaxItems            int              `json:"max_items"`
	SEThreshold         float64          `json:"se_threshold"`
	ItemSelectionMethod selection.Method `json:"item_selection_method"`
	AllowedItemTypes    []pool.ItemType  `json:"allowed_item_types,omitempty"`
	AllowedBands        []pool.Band      `json:"allowed_bands,omitempty"`

	ThetaMin      float64 `json:"theta_min"`
	ThetaMax      float64 `json:"theta_max"`
	MaxIterations int     `json:"max_iterations"`
	// DegenerateStep is how far theta moves per turn while every response
	// agrees. Zero takes the default; negative jumps straight to the bound.
	DegenerateStep float64 `json:"degenerate_step"`

	PopulationMean float64 `json:"population_mean"`
	PopulationStd  float64 `json:"population_std"`
}

// DefaultConfig is a 2PL, max-information session of 5 to 20 items.
func DefaultConfig() Config {
	return Config{
		Algorithm:           irt.Model2PL,
		StartingSE:          1.0,
		MinItems:            5,
		MaxItems:            20,
		SEThreshold:         0.3,
		ItemSelectionMethod: selection.MaxInformation,
	}.WithDefaults()
}

// WithDefaults fills zero-valued fields.
func (c Config) WithDefaults() Config {
	est := irt.DefaultOptions()
	if c.Algorithm == "" {
		c.Algorithm = est.Model
	}
	if c.StartingSE == 0 {
		c.StartingSE = 1.0
	}
	if c.ItemSelectionMethod == "" {
		c.ItemSelectionMethod = selection.MaxInformation
	}
	if c.ThetaMin == 0 && c.ThetaMax == 0 {
		c.ThetaMin, c.ThetaMax = est.ThetaMin, est.ThetaMax
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = est.MaxIterations
	}
	if c.DegenerateStep == 0 {
		c.DegenerateStep = est.DegenerateStep
	}
	if c.PopulationStd == 0 {
		c.PopulationStd = 1
	}
	return c
}

// Validate reports the first problem, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// inherit copies engine settings from base into fields c leaves unset.
// Session limits are never inherited.
func (c Config) inherit(base Config) Config {
	if c.Algorithm == "" {
		c.Algorithm = base.Algorithm
	}
	if c.ItemSelectionMethod == "" {
		c.ItemSelectionMethod = base.ItemSelectionMethod
	}
	if c.StartingSE == 0 {
		c.StartingSE = base.StartingSE
	}
	if c.ThetaMin == 0 && c.ThetaMax == 0 {
		c.ThetaMin, c.ThetaMax = base.ThetaMin, base.ThetaMax
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = base.MaxIterations
	}
	if c.DegenerateStep == 0 {
		c.DegenerateStep = base.DegenerateStep
	}
	if c.PopulationMean == 0 && c.PopulationStd == 0 {
		c.PopulationMean = base.PopulationMean
	}
	if c.PopulationStd == 0 {
		c.PopulationStd = base.PopulationStd
	}
	return c
}

func (c Config) validate() error {
	if !c.Algorithm.Valid() {
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	if !c.ItemSelectionMethod.Valid() {
		return fmt.Errorf("unknown item selection method %q", c.ItemSelectionMethod)
	}
	if err := c.limits().Validate(); err != nil {
		return err
	}
	if !finite(c.ThetaMin) || !finite(c.ThetaMax) || c.ThetaMin >= c.ThetaMax {
		return fmt.Errorf("theta range [%v, %v] is empty", c.ThetaMin, c.ThetaMax)
	}
	if !finite(c.StartingTheta) || c.StartingTheta < c.ThetaMin || c.StartingTheta > c.ThetaMax {
		return fmt.Errorf("starting_theta %v is outside [%v, %v]", c.StartingTheta, c.ThetaMin, c.ThetaMax)
	}
	if !(c.StartingSE > 0) || math.IsInf(c.StartingSE, 0) {
		return fmt.Errorf("starting_se must be > 0")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1")
	}
	if !finite(c.PopulationMean) || !(c.PopulationStd > 0) || math.IsInf(c.PopulationStd, 0) {
		return fmt.Errorf("population std must be > 0")
	}
	for _, t := range c.AllowedItemTypes {
		if !t.Valid() {
			return fmt.Errorf("unknown allowed item type %q", t)
		}
	}
	for _, b := range c.AllowedBands {
		if !b.Valid() {
			return fmt.Errorf("unknown allowed band %q", b)
		}
	}
	return nil
}

func (c Config) limits() termination.Limits {
	return termination.Limits{MinItems: c.MinItems, MaxItems: c.MaxItems, SEThreshold: c.SEThreshold}
}

func (c Config) estimator() *irt.Estimator {
	return irt.NewEstimator(irt.Options{
		Model:          c.Algorithm,
		ThetaMin:       c.ThetaMin,
		ThetaMax:       c.ThetaMax,
		MaxIterations:  c.MaxIterations,
		DegenerateStep: c.DegenerateStep,
	})
}

func (c Config) selector() *selection.Selector {
	return selection.New(c.ItemSelectionMethod, c.Algorithm)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
