package core

import "testing"

func TestTotalCost(t *testing.T) {
	tests := []struct {
		name    string
		pages   int
		copies  int
		mode    ColorMode
		quality PrintQuality
		want    float64
	}{
		{"bw normal single page", 1, 1, ColorModeBW, QualityNormal, 1.0},
		{"bw normal ten pages", 10, 1, ColorModeBW, QualityNormal, 10.0},
		{"color doubles the rate", 10, 1, ColorModeColor, QualityNormal, 20.0},
		{"grayscale rate", 10, 1, ColorModeGrayscale, QualityNormal, 15.0},
		{"draft discounts", 10, 1, ColorModeBW, QualityDraft, 8.0},
		{"high quality premium", 10, 1, ColorModeBW, QualityHigh, 15.0},
		{"best quality premium", 10, 1, ColorModeBW, QualityBest, 20.0},
		{"copies multiply", 10, 3, ColorModeBW, QualityNormal, 30.0},
		{"everything stacked", 5, 2, ColorModeColor, QualityBest, 40.0},
		{"rounds to two decimals", 3, 1, ColorModeGrayscale, QualityDraft, 3.6},
		{"single draft bw page", 1, 1, ColorModeBW, QualityDraft, 0.8},
		{"unknown quality treated as normal", 10, 1, ColorModeBW, "glossy", 10.0},
		{"unknown mode treated as bw", 10, 1, "sepia", QualityNormal, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalCost(tt.pages, tt.copies, tt.mode, tt.quality)
			if got != tt.want {
				t.Errorf("TotalCost(%d, %d, %s, %s) = %v, want %v",
					tt.pages, tt.copies, tt.mode, tt.quality, got, tt.want)
			}
		})
	}
}

func TestTokensRequired(t *testing.T) {
	tests := []struct {
		cost float64
		want int
	}{
		{0.0, 1},
		{0.8, 1},
		{1.0, 1},
		{1.5, 1},
		{2.0, 2},
		{10.99, 10},
		{40.0, 40},
	}

	for _, tt := range tests {
		if got := TokensRequired(tt.cost); got != tt.want {
			t.Errorf("TokensRequired(%v) = %d, want %d", tt.cost, got, tt.want)
		}
	}
}
