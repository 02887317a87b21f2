package core

import "math"

// Base price per page in currency units.
func baseCostPerPage(mode ColorMode) float64 {
	switch mode {
	case ColorModeColor:
		return 2.0
	case ColorModeGrayscale:
		return 1.5
	default:
		return 1.0
	}
}

func qualityMultiplier(quality PrintQuality) float64 {
	switch quality {
	case QualityDraft:
		return 0.8
	case QualityHigh:
		return 1.5
	case QualityBest:
		return 2.0
	default:
		return 1.0
	}
}

// TotalCost prices a job: per-page base rate for the color mode times
// resolved pages times copies times the quality multiplier, rounded to
// two decimal places.
func TotalCost(pages, copies int, mode ColorMode, quality PrintQuality) float64 {
	cost := baseCostPerPage(mode) * float64(pages) * float64(copies) * qualityMultiplier(quality)
	return round2(cost)
}

// TokensRequired derives the token-denominated price from the currency
// cost. The wallet is the canonical billing representation; tokens are
// a display-level equivalent.
func TokensRequired(cost float64) int {
	tokens := int(math.Floor(cost))
	if tokens < 1 {
		return 1
	}
	return tokens
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
