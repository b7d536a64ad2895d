package core

import (
	"errors"
	"math"
	"testing"
)

func TestComputeNPV(t *testing.T) {
	cases := []struct {
		name string
		cf   []float64
		rate float64
		want float64
	}{
		{"empty", nil, 8, 0},
		{"empty at invalid rate", []float64{}, -100, 0},
		{"single period never discounted", []float64{123.45}, 8, 123.45},
		{"single period at -100", []float64{7}, -100, 7},
		{"zero rate is a plain sum", []float64{10, -20, 30, 40}, 0, 60},
		{"two periods at 8", []float64{100, 100}, 8, 100 + 100/1.08},
		{"three periods at 10", []float64{0, 110, 121}, 10, 200},
		{"negative rate", []float64{100, 100}, -50, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeNPV(tc.cf, tc.rate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("ComputeNPV(%v, %v) = %v, want %v", tc.cf, tc.rate, got, tc.want)
			}
		})
	}
}

func TestComputeNPV_RateEightMatchesReference(t *testing.T) {
	got, err := ComputeNPV([]float64{100, 100}, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Round(got*100)/100 != 192.59 {
		t.Fatalf("got %.4f, want ~192.59", got)
	}
}

func TestComputeNPV_InvalidRate(t *testing.T) {
	for _, rate := range []float64{-100, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ComputeNPV([]float64{1, 2, 3}, rate)
		if !errors.Is(err, ErrInvalidRate) {
			t.Errorf("rate %v: expected ErrInvalidRate, got %v", rate, err)
		}
	}
}

func TestComputeNPV_SumAtZeroRate(t *testing.T) {
	flows := [][]float64{
		{1, 2, 3},
		{-500000, 250000, 125000.5},
		{0, 0, 0, 0},
	}
	for _, cf := range flows {
		var sum float64
		for _, v := range cf {
			sum += v
		}
		got, err := ComputeNPV(cf, 0)
		if err != nil || math.Abs(got-sum) > 1e-9 {
			t.Fatalf("%v: got %v (err=%v), want %v", cf, got, err, sum)
		}
	}
}
