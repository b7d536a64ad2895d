package core

import (
	"fmt"
	"math"
)

// rateEpsilon bounds how close 1 + r/100 may get to zero before the rate is rejected.
const rateEpsilon = 1e-12

// ComputeNPV discounts cashFlows at ratePercent. The flow at position i is
// divided by (1 + ratePercent/100)^i, so position 0 is never discounted.
//
// An empty sequence is worth 0 at any rate. A rate whose discount factor is
// zero (or numerically indistinguishable from it) yields ErrInvalidRate as soon
// as a discounted position exists.
func ComputeNPV(cashFlows []float64, ratePercent float64) (float64, error) {
	if len(cashFlows) == 0 {
		return 0, nil
	}

	factor := 1 + ratePercent/100
	if len(cashFlows) > 1 && !validFactor(factor) {
		return 0, fmt.Errorf("%w: %g%% gives discount factor %g", ErrInvalidRate, ratePercent, factor)
	}

	npv := cashFlows[0]
	divisor := 1.0
	for _, cf := range cashFlows[1:] {
		divisor *= factor
		npv += cf / divisor
	}

	if math.IsNaN(npv) || math.IsInf(npv, 0) {
		return 0, fmt.Errorf("%w: %g%% overflows the present value", ErrInvalidRate, ratePercent)
	}
	return npv, nil
}

func validFactor(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return math.Abs(f) > rateEpsilon
}
