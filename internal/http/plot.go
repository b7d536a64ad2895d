package http

import (
	"fmt"

	"ecoads/internal/chart"
	"ecoads/internal/report"
	"ecoads/internal/services"
)

// Figure is a Plotly figure: one waterfall trace plus layout.
type Figure struct {
	Data   []WaterfallTrace `json:"data"`
	Layout FigureLayout     `json:"layout"`
}

type WaterfallTrace struct {
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	Orientation   string    `json:"orientation"`
	Measure       []string  `json:"measure"`
	X             []string  `json:"x"`
	Y             []float64 `json:"y"`
	Text          []string  `json:"text"`
	TextPosition  string    `json:"textposition"`
	HoverTemplate string    `json:"hovertemplate"`
	Connector     lineStyle `json:"connector"`
	Increasing    barStyle  `json:"increasing"`
	Decreasing    barStyle  `json:"decreasing"`
	Totals        barStyle  `json:"totals"`
}

type lineStyle struct {
	Line struct {
		Color string `json:"color"`
	} `json:"line"`
}

type barStyle struct {
	Marker struct {
		Color string `json:"color"`
	} `json:"marker"`
}

type FigureLayout struct {
	Title      titleStyle `json:"title"`
	XAxis      axisStyle  `json:"xaxis"`
	YAxis      axisStyle  `json:"yaxis"`
	ShowLegend bool       `json:"showlegend"`
	Height     int        `json:"height"`
	HoverMode  string     `json:"hovermode"`
}

type titleStyle struct {
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	XAnchor string  `json:"xanchor"`
	Font    struct {
		Size int `json:"size"`
	} `json:"font"`
}

type axisTitle struct {
	Text string `json:"text"`
}

type axisStyle struct {
	Title      axisTitle `json:"title"`
	TickAngle  int       `json:"tickangle,omitempty"`
	TickFormat string    `json:"tickformat,omitempty"`
	Range      []float64 `json:"range,omitempty"`
	AutoRange  bool      `json:"autorange"`
}

func bar(color string) barStyle {
	var b barStyle
	b.Marker.Color = color
	return b
}

// BuildFigure maps an analysis onto a Plotly waterfall. Plotly computes
// "total" bars from the running sum and ignores their y, so the gap policy
// relies on the extra relative step chart.Steps inserts.
func BuildFigure(a services.Analysis) Figure {
	steps := chart.Steps(a.Bars, a.Policy, a.Palette)

	trace := WaterfallTrace{
		Type:          "waterfall",
		Name:          "Análisis Waterfall",
		Orientation:   "v",
		Measure:       make([]string, 0, len(steps)),
		X:             make([]string, 0, len(steps)),
		Y:             make([]float64, 0, len(steps)),
		Text:          make([]string, 0, len(steps)),
		TextPosition:  "outside",
		HoverTemplate: "%{x}<br>%{y:$,.0f}<extra></extra>",
		Increasing:    bar(a.Palette.Positive),
		Decreasing:    bar(a.Palette.Negative),
		Totals:        bar(a.Palette.Total),
	}
	trace.Connector.Line.Color = a.Palette.Connector
	// x is categorical: a repeated label would stack two steps in one slot
	seen := make(map[string]int, len(steps))
	for _, s := range steps {
		x := s.Label
		seen[x]++
		if n := seen[x]; n > 1 {
			x = fmt.Sprintf("%s (%d)", x, n)
		}
		trace.Measure = append(trace.Measure, string(s.Kind))
		trace.X = append(trace.X, x)
		trace.Y = append(trace.Y, s.Value)
		trace.Text = append(trace.Text, s.Text)
	}

	layout := FigureLayout{
		ShowLegend: false,
		Height:     600,
		HoverMode:  "x unified",
	}
	layout.Title.Text = report.Title(a.RatePercent)
	layout.Title.X = 0.5
	layout.Title.XAnchor = "center"
	layout.Title.Font.Size = 16
	layout.XAxis.Title.Text = "Categorías"
	layout.XAxis.TickAngle = 45
	layout.XAxis.AutoRange = true
	layout.YAxis.Title.Text = "Valor Presente Neto (USD)"
	layout.YAxis.TickFormat = "$,.0f"
	if lo, hi, ok := a.Axis.Range(); ok {
		layout.YAxis.Range = []float64{lo, hi}
	} else {
		layout.YAxis.AutoRange = true
	}

	return Figure{Data: []WaterfallTrace{trace}, Layout: layout}
}
