// Package greeks computes Black-Scholes values used to enrich option
// chain snapshots that arrive without deltas.
package greeks

import (
	"math"
	"time"
)

// Default model parameters.
const (
	DefaultRate  = 0.06 // annual risk-free rate
	DefaultYield = 0.00 // continuous dividend yield
)

// Implied-vol search bounds.
const (
	ivLo      = 1e-6
	ivHi      = 5.0
	ivTol     = 1e-6
	ivMaxIter = 100
)

func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// YearFrac returns the ACT/365F year fraction between two instants,
// clamped at zero.
func YearFrac(start, end time.Time) float64 {
	sec := end.Sub(start).Seconds()
	if sec < 0 {
		sec = 0
	}
	return sec / (365.0 * 24.0 * 3600.0)
}

// Price returns the Black-Scholes price with continuous dividend yield.
// At zero time-to-expiry or zero vol it degrades to discounted intrinsic.
func Price(s, k, t, r, q, sigma float64, call bool) float64 {
	if t <= 0 || sigma <= 0 {
		if call {
			return math.Max(0, s*math.Exp(-q*t)-k*math.Exp(-r*t))
		}
		return math.Max(0, k*math.Exp(-r*t)-s*math.Exp(-q*t))
	}
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	if call {
		return s*math.Exp(-q*t)*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
	}
	return k*math.Exp(-r*t)*normCDF(-d2) - s*math.Exp(-q*t)*normCDF(-d1)
}

// Delta returns the Black-Scholes delta. Call deltas lie in [0,1], put
// deltas in [-1,0]. At zero time-to-expiry or zero vol it snaps to the
// intrinsic limit.
func Delta(s, k, t, r, q, sigma float64, call bool) float64 {
	if t <= 0 || sigma <= 0 {
		if call {
			if s > k {
				return 1.0
			}
			return 0.0
		}
		if s < k {
			return -1.0
		}
		return 0.0
	}
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
	if call {
		return math.Exp(-q*t) * normCDF(d1)
	}
	return -math.Exp(-q*t) * normCDF(-d1)
}

// ImpliedVol recovers volatility from a quoted price by bisection.
// Prices outside the modelable band clamp to the search bounds.
func ImpliedVol(s, k, t, r, q, price float64, call bool) float64 {
	p := math.Max(price, 0)

	plo := Price(s, k, t, r, q, ivLo, call)
	phi := Price(s, k, t, r, q, ivHi, call)
	if p <= plo {
		return ivLo
	}
	if p >= phi {
		return ivHi
	}

	a, b := ivLo, ivHi
	for i := 0; i < ivMaxIter; i++ {
		m := 0.5 * (a + b)
		pm := Price(s, k, t, r, q, m, call)
		if math.Abs(pm-p) < ivTol {
			return clamp(m)
		}
		if pm > p {
			b = m
		} else {
			a = m
		}
	}
	return clamp(0.5 * (a + b))
}

func clamp(v float64) float64 {
	return math.Max(ivLo, math.Min(v, ivHi))
}
