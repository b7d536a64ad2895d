// This file implements the Strategy Pattern for the final waterfall bar.
// Each FinalPolicy decides what the closing total bar reports; the Palette
// decides which colour a sign maps to.

package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BarKind classifies a waterfall bar.
type BarKind string

const (
	KindAbsolute BarKind = "absolute"
	KindRelative BarKind = "relative"
	KindTotal    BarKind = "total"
)

// Bar is one entry of the chart contract handed to a plotting collaborator.
type Bar struct {
	Key   string
	Label string
	Value decimal.Decimal
	Kind  BarKind
	Color string
}

// Float returns the bar value as a float64 for rendering.
func (b Bar) Float() float64 {
	f, _ := b.Value.Float64()
	return f
}

const (
	PolicyGap     = "gap"
	PolicyImplied = "implied"
)

// FinalPolicy is the strategy interface deciding the value of the closing bar.
type FinalPolicy interface {
	Name() string
	// FinalValue receives the baseline, the sum of relative bars and the target.
	FinalValue(baseline, sum, target decimal.Decimal) decimal.Decimal
}

// GapReconciliation makes the closing bar absorb whatever discrepancy remains,
// so baseline + relatives + final equals the target.
type GapReconciliation struct{}

func (GapReconciliation) Name() string { return PolicyGap }

func (GapReconciliation) FinalValue(baseline, sum, target decimal.Decimal) decimal.Decimal {
	return target.Sub(baseline.Add(sum))
}

// ImpliedTotal makes the closing bar report what the detail sums to.
type ImpliedTotal struct{}

func (ImpliedTotal) Name() string { return PolicyImplied }

func (ImpliedTotal) FinalValue(baseline, sum, _ decimal.Decimal) decimal.Decimal {
	return baseline.Add(sum)
}

// ParseFinalPolicy maps a configuration name to its strategy.
func ParseFinalPolicy(name string) (FinalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyGap, "gap-reconciliation":
		return GapReconciliation{}, nil
	case PolicyImplied, "implied-total":
		return ImpliedTotal{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Palette is a named sign-to-colour convention.
type Palette struct {
	Name      string
	Positive  string
	Negative  string
	Neutral   string
	Total     string
	Connector string
}

var (
	// BenefitGreen paints positive present values green and negative ones red.
	BenefitGreen = Palette{
		Name:      "benefit-green",
		Positive:  "#2E8B57",
		Negative:  "#DC143C",
		Neutral:   "#A9A9A9",
		Total:     "#4682B4",
		Connector: "rgb(63, 63, 63)",
	}
	// CostGreen is the inverse convention: a negative value is a cost reduction.
	CostGreen = Palette{
		Name:      "cost-green",
		Positive:  "#DC143C",
		Negative:  "#2E8B57",
		Neutral:   "#A9A9A9",
		Total:     "#4682B4",
		Connector: "rgb(63, 63, 63)",
	}
)

// Palettes lists the selectable palettes.
func Palettes() []Palette {
	return []Palette{BenefitGreen, CostGreen}
}

// ParsePalette looks a palette up by name; empty selects BenefitGreen.
func ParsePalette(name string) (Palette, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BenefitGreen, nil
	}
	for _, p := range Palettes() {
		if p.Name == name {
			return p, nil
		}
	}
	return Palette{}, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
}

// ColorFor returns the colour of a relative bar of the given sign.
func (p Palette) ColorFor(v decimal.Decimal) string {
	switch v.Sign() {
	case 1:
		return p.Positive
	case -1:
		return p.Negative
	default:
		return p.Neutral
	}
}

// AssembleInput carries the anchors and the reconciled segments.
type AssembleInput struct {
	BaselineName string
	TargetName   string
	Baseline     float64
	Target       float64
	Segments     []Segment
}

// Assemble maps reconciled segments onto chart bars: one absolute opening bar,
// one relative bar per segment, one closing total bar valued by policy.
// Arithmetic runs on decimals so the policy identities hold exactly.
func Assemble(in AssembleInput, policy FinalPolicy, palette Palette) []Bar {
	if policy == nil {
		policy = GapReconciliation{}
	}
	baselineName, targetName := in.BaselineName, in.TargetName
	if baselineName == "" {
		baselineName = DefaultBaselineName
	}
	if targetName == "" {
		targetName = DefaultTargetName
	}

	baseline := decimal.NewFromFloat(in.Baseline)
	target := decimal.NewFromFloat(in.Target)

	bars := make([]Bar, 0, len(in.Segments)+2)
	bars = append(bars, Bar{
		Key:   baselineName,
		Label: baselineName + " (Base)",
		Value: baseline,
		Kind:  KindAbsolute,
		Color: palette.Total,
	})

	sum := decimal.Zero
	for _, seg := range in.Segments {
		v := decimal.NewFromFloat(seg.NPV)
		sum = sum.Add(v)
		bars = append(bars, Bar{
			Key:   seg.Key,
			Label: seg.Label,
			Value: v,
			Kind:  KindRelative,
			Color: palette.ColorFor(v),
		})
	}

	bars = append(bars, Bar{
		Key:   targetName,
		Label: targetName + " (Final)",
		Value: policy.FinalValue(baseline, sum, target),
		Kind:  KindTotal,
		Color: palette.Total,
	})
	return bars
}

// RelativeSum adds up the relative bars.
func RelativeSum(bars []Bar) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range bars {
		if b.Kind == KindRelative {
			sum = sum.Add(b.Value)
		}
	}
	return sum
}
