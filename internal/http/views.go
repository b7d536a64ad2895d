package http

import (
	"encoding/json"
	"html/template"
	"strconv"

	"ecoads/internal/core"
	"ecoads/internal/report"
	"ecoads/internal/services"
	"ecoads/internal/session"
)

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// workspaceView is everything the controls, metrics, chart and table render from.
type workspaceView struct {
	RateText  string
	RateMin   float64
	RateMax   float64
	RateStep  float64
	HideZeros bool
	KeepZeros bool
	AxisMin   string
	AxisMax   string
	Policies  []optionView
	Palettes  []optionView

	FileName  string
	Sheet     string
	Sheets    []optionView
	Synthetic bool
	Warning   string
	HasRemote bool

	Title      string
	Metrics    []metricView
	Details    []detailView
	Categories []categoryView
	FigureJSON string
	Message    string
	Empty      bool
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type metricView struct {
	Label         string
	Value         string
	Delta         string
	DeltaNegative bool
	Help          string
}

type detailView struct {
	Label    string
	NPV      string
	Millions string
	Impact   string
	Hidden   bool
	Negative bool
}

type categoryView struct {
	Key     string
	Label   string
	Renamed bool
}

type pageView struct {
	Workspace workspaceView
}

func newWorkspaceView(st session.Settings, loaded services.Loaded, a services.Analysis, hasRemote bool) workspaceView {
	v := workspaceView{
		RateText:  core.FormatRate(st.RatePercent),
		RateMin:   session.MinRate,
		RateMax:   session.MaxRate,
		RateStep:  session.RateStep,
		HideZeros: st.HideZeros,
		KeepZeros: !st.DropExactZeros,
		AxisMin:   optionalFloat(st.AxisMin),
		AxisMax:   optionalFloat(st.AxisMax),
		Policies: []optionView{
			{Value: core.PolicyGap, Label: "Ajuste al total ADS", Selected: a.Policy == core.PolicyGap},
			{Value: core.PolicyImplied, Label: "Total implícito", Selected: a.Policy == core.PolicyImplied},
		},

		FileName:  loaded.FileName,
		Sheet:     loaded.Sheet,
		Synthetic: loaded.Dataset.Synthetic,
		Warning:   loaded.Warning,
		HasRemote: hasRemote,

		Title:   report.Title(a.RatePercent),
		Message: a.Message(),
		Empty:   a.Empty,
	}
	for _, p := range core.Palettes() {
		v.Palettes = append(v.Palettes, optionView{Value: p.Name, Label: paletteLabel(p.Name), Selected: p.Name == a.Palette.Name})
	}
	for _, name := range loaded.Sheets {
		v.Sheets = append(v.Sheets, optionView{Value: name, Label: name, Selected: name == loaded.Sheet})
	}

	s := a.Summary
	v.Metrics = []metricView{
		{Label: "Total " + s.BaselineName, Value: core.FormatMillions(s.Baseline), Help: "Valor base del caso " + s.BaselineName},
		{Label: "Total " + s.TargetName, Value: core.FormatMillions(s.Target), Help: "Valor objetivo del caso " + s.TargetName},
		{
			Label: "Diferencia", Value: core.FormatMillions(s.Difference),
			Delta: core.FormatPercent(s.DifferencePct, 1), DeltaNegative: s.Difference < 0,
			Help: "Diferencia entre " + s.TargetName + " y " + s.BaselineName,
		},
		{
			Label: "Total implícito", Value: core.FormatMillions(s.Implied),
			Delta: core.FormatMillions(s.Divergence), DeltaNegative: s.Divergence < 0,
			Help: s.BaselineName + " más la suma de los VPN; el delta es la divergencia frente a " + s.TargetName,
		},
	}

	for _, d := range a.Details {
		v.Details = append(v.Details, detailView{
			Label:    d.Label,
			NPV:      core.FormatUSD(d.NPV),
			Millions: core.FormatMillionsPrecise(d.NPV),
			Impact:   core.FormatPercent(d.ImpactPct, 2),
			Hidden:   d.Hidden,
			Negative: d.NPV < 0,
		})
	}

	for _, c := range loaded.Dataset.Categories {
		label, renamed := st.Renames[c.Key]
		if !renamed {
			label = c.Key
		}
		v.Categories = append(v.Categories, categoryView{Key: c.Key, Label: label, Renamed: renamed})
	}

	if !a.Empty && a.Err == nil {
		if b, err := json.Marshal(BuildFigure(a)); err == nil {
			v.FigureJSON = string(b)
		}
	}
	return v
}

func paletteLabel(name string) string {
	switch name {
	case core.BenefitGreen.Name:
		return "Beneficio en verde"
	case core.CostGreen.Name:
		return "Ahorro en verde"
	default:
		return name
	}
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
