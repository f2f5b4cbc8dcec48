package engine

import "math"

// DefaultFrontierPoints is the default number of target returns swept when
// tracing the efficient frontier.
const DefaultFrontierPoints = 30

// How far an achieved return may drift from its target before the point is
// treated as infeasible and omitted.
const frontierTargetTolerance = 1e-3

// ComputeEfficientFrontier traces the efficient frontier by sweeping target
// returns uniformly from 1.05*min(mu) to 0.95*max(mu) and solving the
// minimum-variance problem with a return-equality constraint for each. No
// diversification penalty applies here. Targets whose sub-problem fails or
// whose solution misses the target are skipped; the result preserves
// ascending target-return order and contains only feasible points.
func (o *Optimizer) ComputeEfficientFrontier(est *ReturnEstimate, nPoints int) []FrontierPoint {
	if nPoints <= 0 {
		nPoints = DefaultFrontierPoints
	}

	minMu, maxMu := est.Mu[0], est.Mu[0]
	for _, m := range est.Mu {
		minMu = math.Min(minMu, m)
		maxMu = math.Max(maxMu, m)
	}
	low := minMu * 1.05
	high := maxMu * 0.95
	if low > high {
		low, high = high, low
	}

	frontier := make([]FrontierPoint, 0, nPoints)
	for k := 0; k < nPoints; k++ {
		target := low
		if nPoints > 1 {
			target = low + (high-low)*float64(k)/float64(nPoints-1)
		}

		w, err := o.solveMinVariance(est, &target)
		if err != nil {
			o.log.Debug().Float64("target", target).Err(err).Msg("Frontier point infeasible, skipping")
			continue
		}

		var ret float64
		for i := range w {
			ret += est.Mu[i] * w[i]
		}
		if math.Abs(ret-target) > math.Max(frontierTargetTolerance, 0.01*math.Abs(target)) {
			o.log.Debug().
				Float64("target", target).
				Float64("achieved", ret).
				Msg("Frontier point missed its target, skipping")
			continue
		}

		vol := math.Sqrt(math.Max(quadraticForm(w, est.Sigma), 0))
		frontier = append(frontier, FrontierPoint{
			Return:     round6(ret),
			Volatility: round6(vol),
		})
	}

	return frontier
}
