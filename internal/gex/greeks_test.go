package gex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGreeks_ATMScenario(t *testing.T) {
	S, K, T, r, sigma := 24500.0, 24500.0, 7.0/365, 0.07, 0.15

	callDelta := Delta(S, K, T, r, sigma, Call)
	putDelta := Delta(S, K, T, r, sigma, Put)

	assert.InDelta(t, 0.53, callDelta, 0.01)
	assert.InDelta(t, -0.47, putDelta, 0.01)
	assert.InDelta(t, callDelta-1, putDelta, 1e-12)

	g := Gamma(S, K, T, r, sigma)
	assert.Greater(t, g, 0.0)
	// roughly 1/(S*sigma*sqrt(T)*sqrt(2pi))
	assert.InDelta(t, 0.000784, g, 0.00002)
}

func TestGreeks_Degenerate(t *testing.T) {
	tests := []struct {
		name     string
		T, sigma float64
	}{
		{"expired", 0, 0.2},
		{"negative time", -0.1, 0.2},
		{"zero vol", 0.1, 0},
		{"negative vol", 0.1, -0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, Gamma(100, 100, tt.T, 0.05, tt.sigma))
			assert.Equal(t, 0.0, Delta(100, 100, tt.T, 0.05, tt.sigma, Call))
			assert.Equal(t, 0.0, Delta(100, 100, tt.T, 0.05, tt.sigma, Put))
		})
	}
}

func TestGreeks_Bounds(t *testing.T) {
	spots := []float64{50, 99, 100, 101, 250}
	strikes := []float64{20, 80, 100, 120, 400}
	times := []float64{1.0 / 365, 0.1, 1, 5}
	vols := []float64{0.01, 0.15, 0.6, 2}
	rates := []float64{-0.01, 0, 0.07}

	for _, S := range spots {
		for _, K := range strikes {
			for _, T := range times {
				for _, sigma := range vols {
					for _, r := range rates {
						g := Gamma(S, K, T, r, sigma)
						c := Delta(S, K, T, r, sigma, Call)
						p := Delta(S, K, T, r, sigma, Put)
						if g < 0 || c < 0 || c > 1 || p < -1 || p > 0 {
							t.Fatalf("out of bounds S=%v K=%v T=%v r=%v sigma=%v: gamma=%v call=%v put=%v",
								S, K, T, r, sigma, g, c, p)
						}
						// pure function
						assert.Equal(t, g, Gamma(S, K, T, r, sigma))
					}
				}
			}
		}
	}
}

func TestComputeGreeks_FloorsIV(t *testing.T) {
	rows := ComputeGreeks([]StrikeRecord{{Strike: 100, CallIV: 0, PutIV: 0.001}}, 100, 0.1, 0)

	assert.Equal(t, Gamma(100, 100, 0.1, 0, MinIV), rows[0].CallGamma)
	assert.Equal(t, Gamma(100, 100, 0.1, 0, MinIV), rows[0].PutGamma)
	assert.Greater(t, rows[0].CallGamma, 0.0)
}
