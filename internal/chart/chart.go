// Package chart turns assembled waterfall bars into drawable steps with
// explicit start and end positions.
package chart

import (
	"github.com/shopspring/decimal"

	"ecoads/internal/core"
)

// GapLabel labels the bar that closes the distance to the target under the
// gap policy. GapKey identifies it; category keys are trimmed cell text and
// never start with a space, so no category can take it.
const (
	GapLabel = "Ajuste"
	GapKey   = " gap"
)

// Step is one drawable bar. Start and End are positions on the value axis;
// Value is the signed height (End - Start) for relative steps and the level
// for absolute and total steps.
type Step struct {
	Key   string
	Label string
	Kind  core.BarKind
	Value float64
	Start float64
	End   float64
	Color string
	Text  string
}

// Low and High return the bar extent in axis order.
func (s Step) Low() float64  { return min(s.Start, s.End) }
func (s Step) High() float64 { return max(s.Start, s.End) }

// Steps walks the bars keeping a running level. A total bar is drawn from 0
// to its level. Under the gap policy the closing bar's value is the
// remaining distance, so it is drawn as an extra relative step followed by
// the total at the target.
func Steps(bars []core.Bar, policy string, palette core.Palette) []Step {
	steps := make([]Step, 0, len(bars)+1)
	level := decimal.Zero

	for _, b := range bars {
		switch b.Kind {
		case core.KindAbsolute:
			level = b.Value
			steps = append(steps, Step{
				Key: b.Key, Label: b.Label, Kind: b.Kind,
				Value: b.Value.InexactFloat64(), Start: 0, End: level.InexactFloat64(),
				Color: b.Color, Text: core.FormatMillions(b.Value.InexactFloat64()),
			})
		case core.KindRelative:
			start := level
			level = level.Add(b.Value)
			steps = append(steps, Step{
				Key: b.Key, Label: b.Label, Kind: b.Kind,
				Value: b.Value.InexactFloat64(), Start: start.InexactFloat64(), End: level.InexactFloat64(),
				Color: b.Color, Text: core.FormatMillions(b.Value.InexactFloat64()),
			})
		case core.KindTotal:
			if policy == core.PolicyGap {
				if !b.Value.IsZero() {
					start := level
					level = level.Add(b.Value)
					steps = append(steps, Step{
						Key: GapKey, Label: GapLabel, Kind: core.KindRelative,
						Value: b.Value.InexactFloat64(), Start: start.InexactFloat64(), End: level.InexactFloat64(),
						Color: palette.ColorFor(b.Value), Text: core.FormatMillions(b.Value.InexactFloat64()),
					})
				}
			} else {
				level = b.Value
			}
			steps = append(steps, Step{
				Key: b.Key, Label: b.Label, Kind: b.Kind,
				Value: level.InexactFloat64(), Start: 0, End: level.InexactFloat64(),
				Color: b.Color, Text: core.FormatMillions(level.InexactFloat64()),
			})
		}
	}
	return steps
}

// Extent returns the lowest and highest positions any step reaches,
// always including 0.
func Extent(steps []Step) (lo, hi float64) {
	for _, s := range steps {
		lo, hi = min(lo, s.Low()), max(hi, s.High())
	}
	return lo, hi
}
