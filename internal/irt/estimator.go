package irt

import "math"

// Response is one answered item in the estimation history.
type Response struct {
	Params  Params
	Correct bool
}

// Options bound the estimator. Zero fields take the defaults.
type Options struct {
	Model         Model
	ThetaMin      float64
	ThetaMax      float64
	MaxIterations int
	Tolerance     float64
	// MaxStep caps a single scoring step.
	MaxStep float64
	// DegenerateStep is how far theta moves toward the bound when every
	// response is identical. Negative jumps straight to the bound.
	DegenerateStep float64
}

func DefaultOptions() Options {
	return Options{
		Model:          Model2PL,
		ThetaMin:       -4,
		ThetaMax:       4,
		MaxIterations:  50,
		Tolerance:      1e-6,
		MaxStep:        1,
		DegenerateStep: 0.7,
	}
}

// Estimate is the result of one estimation pass.
type Estimate struct {
	Theta      float64 `json:"theta"`
	SE         float64 `json:"se"`
	Iterations int     `json:"iterations"`
	// BoundHit is set when theta ended on ThetaMin or ThetaMax.
	BoundHit bool `json:"bound_hit"`
	// Degenerate is set when the responses were all correct or all
	// incorrect and no finite maximum exists.
	Degenerate bool `json:"degenerate"`
}

// Estimator runs bounded maximum-likelihood estimation.
type Estimator struct {
	opts Options
}

func NewEstimator(opts Options) *Estimator {
	def := DefaultOptions()
	if !opts.Model.Valid() {
		opts.Model = def.Model
	}
	if opts.ThetaMin >= opts.ThetaMax {
		opts.ThetaMin, opts.ThetaMax = def.ThetaMin, def.ThetaMax
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.MaxStep <= 0 {
		opts.MaxStep = def.MaxStep
	}
	if opts.DegenerateStep == 0 {
		opts.DegenerateStep = def.DegenerateStep
	}
	return &Estimator{opts: opts}
}

func (e *Estimator) Options() Options { return e.opts }

// Estimate refines priorTheta against history. priorSE is the previous
// standard error; the reported SE never exceeds it.
//
// With an empty history the prior is returned unchanged.
func (e *Estimator) Estimate(priorTheta, priorSE float64, history []Response) Estimate {
	if len(history) == 0 {
		return Estimate{Theta: priorTheta, SE: priorSE}
	}

	nCorrect := 0
	for _, r := range history {
		if r.Correct {
			nCorrect++
		}
	}

	var est Estimate
	switch nCorrect {
	case 0:
		est = e.degenerate(priorTheta, -1)
	case len(history):
		est = e.degenerate(priorTheta, +1)
	default:
		est = e.scoring(priorTheta, history)
	}

	est.SE = math.Min(priorSE, e.standardError(est.Theta, history))
	return est
}

// standardError is 1/sqrt(sum of item information) at theta.
func (e *Estimator) standardError(theta float64, history []Response) float64 {
	info := 0.0
	for _, r := range history {
		info += e.opts.Model.Information(theta, r.Params)
	}
	if info <= 0 {
		return math.Inf(1)
	}
	return 1 / math.Sqrt(info)
}

func (e *Estimator) degenerate(prior float64, dir float64) Estimate {
	bound := e.opts.ThetaMax
	if dir < 0 {
		bound = e.opts.ThetaMin
	}
	theta := bound
	if e.opts.DegenerateStep > 0 {
		theta = e.clamp(prior + dir*e.opts.DegenerateStep)
	}
	return Estimate{Theta: theta, BoundHit: theta == bound, Degenerate: true}
}

// scoring runs Fisher scoring: the expected information stands in for the
// negative second derivative of the log-likelihood.
func (e *Estimator) scoring(start float64, history []Response) Estimate {
	theta := e.clamp(start)
	iter := 0
	for iter < e.opts.MaxIterations {
		iter++
		grad, info := 0.0, 0.0
		for _, r := range history {
			p := e.opts.Model.Effective(r.Params)
			grad += scoreTerm(theta, p, r.Correct)
			info += information(theta, p)
		}
		if info <= 0 {
			break
		}
		step := grad / info
		if step > e.opts.MaxStep {
			step = e.opts.MaxStep
		} else if step < -e.opts.MaxStep {
			step = -e.opts.MaxStep
		}
		next := e.clamp(theta + step)
		done := math.Abs(next-theta) < e.opts.Tolerance
		theta = next
		if done {
			break
		}
	}
	return Estimate{
		Theta:      theta,
		Iterations: iter,
		BoundHit:   theta == e.opts.ThetaMin || theta == e.opts.ThetaMax,
	}
}

func (e *Estimator) clamp(theta float64) float64 {
	switch {
	case math.IsNaN(theta):
		return (e.opts.ThetaMin + e.opts.ThetaMax) / 2
	case theta < e.opts.ThetaMin:
		return e.opts.ThetaMin
	case theta > e.opts.ThetaMax:
		return e.opts.ThetaMax
	}
	return theta
}
