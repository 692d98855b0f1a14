package output

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/vsinha/freshplan/pkg/domain/entities"
)

// GanttChart draws production days and shipments of a plan as an SVG timeline,
// one row per production site and per leg
type GanttChart struct {
	Width        int
	Height       int
	MarginLeft   int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	RowHeight    int
	Start        entities.Date
	End          entities.Date
}

// GanttBar represents a single bar in the chart
type GanttBar struct {
	Row      string
	State    entities.StorageState
	Produced bool
	Quantity float64
	From     entities.Date
	To       entities.Date // inclusive
	Label    string
}

// NewGanttChart sizes a chart for the plan horizon
func NewGanttChart(plan *entities.Plan) *GanttChart {
	gc := &GanttChart{
		Width:        1200,
		Height:       200,
		MarginLeft:   200,
		MarginTop:    60,
		MarginRight:  100,
		MarginBottom: 80,
		RowHeight:    30,
	}
	if plan == nil || plan.Horizon.Empty() {
		return gc
	}

	gc.Start = plan.Horizon.Start
	gc.End = plan.Horizon.End
	for _, s := range plan.Shipments {
		if s.Arrival > gc.End {
			gc.End = s.Arrival
		}
	}
	gc.Height = len(rowsOf(gc.createBars(plan)))*gc.RowHeight + gc.MarginTop + gc.MarginBottom + 30
	return gc
}

// GenerateSVG creates an SVG representation of the chart
func (gc *GanttChart) GenerateSVG(plan *entities.Plan) string {
	if plan == nil || (len(plan.Production) == 0 && len(plan.Shipments) == 0) {
		return gc.generateEmptyChart()
	}

	var svg strings.Builder

	fmt.Fprintf(&svg, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, gc.Width, gc.Height)
	svg.WriteString(`<defs>`)
	svg.WriteString(`<style>`)
	svg.WriteString(`.row-label { font-family: Arial, sans-serif; font-size: 12px; fill: #333; }`)
	svg.WriteString(`.time-label { font-family: Arial, sans-serif; font-size: 10px; fill: #666; }`)
	svg.WriteString(`.title { font-family: Arial, sans-serif; font-size: 16px; font-weight: bold; fill: #333; }`)
	svg.WriteString(`.grid-line { stroke: #e0e0e0; stroke-width: 1; }`)
	svg.WriteString(`.bar { stroke: #333; stroke-width: 1; }`)
	svg.WriteString(`.bar-text { font-family: Arial, sans-serif; font-size: 9px; fill: white; }`)
	svg.WriteString(`</style>`)
	svg.WriteString(`</defs>`)

	fmt.Fprintf(&svg, `<rect width="%d" height="%d" fill="white"/>`, gc.Width, gc.Height)
	fmt.Fprintf(&svg, `<text x="%d" y="30" class="title" text-anchor="middle">Production and Shipments %s</text>`,
		gc.Width/2, html.EscapeString(entities.DateRange{Start: gc.Start, End: gc.End}.String()))

	rows := rowsOf(gc.createBars(plan))
	gc.drawTimeAxis(&svg, len(rows))
	gc.drawRows(&svg, rows)
	gc.drawLegend(&svg)

	svg.WriteString(`</svg>`)
	return svg.String()
}

type ganttRow struct {
	name string
	bars []GanttBar
}

// createBars turns production days and shipments into bars. Shipments of the
// same leg, day and state are merged.
func (gc *GanttChart) createBars(plan *entities.Plan) []GanttBar {
	type key struct {
		row   string
		from  entities.Date
		state entities.StorageState
	}
	merged := make(map[key]*GanttBar)
	var order []key

	add := func(k key, bar GanttBar) {
		if b, ok := merged[k]; ok {
			b.Quantity += bar.Quantity
			return
		}
		merged[k] = &bar
		order = append(order, k)
	}

	for _, p := range plan.Production {
		row := fmt.Sprintf("make %s @ %s", p.Product, p.Node)
		add(key{row, p.Date, entities.Ambient}, GanttBar{
			Row: row, Produced: true, Quantity: p.Quantity, From: p.Date, To: p.Date,
		})
	}
	for _, s := range plan.Shipments {
		row := fmt.Sprintf("%s → %s", s.Origin, s.Destination)
		to := s.Arrival
		if to > s.Departure {
			to = to.AddDays(-1)
		}
		add(key{row, s.Departure, s.Cohort.State}, GanttBar{
			Row: row, State: s.Cohort.State, Quantity: s.Quantity, From: s.Departure, To: to, Label: string(s.Truck),
		})
	}

	bars := make([]GanttBar, 0, len(order))
	for _, k := range order {
		bars = append(bars, *merged[k])
	}
	return bars
}

// rowsOf groups bars by row: production rows first, then lanes by name
func rowsOf(bars []GanttBar) []ganttRow {
	byRow := make(map[string][]GanttBar)
	produced := make(map[string]bool)
	for _, b := range bars {
		byRow[b.Row] = append(byRow[b.Row], b)
		produced[b.Row] = produced[b.Row] || b.Produced
	}

	var rows []ganttRow
	for name, bs := range byRow {
		sort.Slice(bs, func(i, j int) bool { return bs[i].From < bs[j].From })
		rows = append(rows, ganttRow{name: name, bars: bs})
	}
	sort.Slice(rows, func(i, j int) bool {
		if produced[rows[i].name] != produced[rows[j].name] {
			return produced[rows[i].name]
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

func (gc *GanttChart) dayWidth() float64 {
	days := gc.End.Sub(gc.Start) + 1
	return float64(gc.Width-gc.MarginLeft-gc.MarginRight) / float64(days)
}

func (gc *GanttChart) x(d entities.Date) int {
	return gc.MarginLeft + int(float64(d.Sub(gc.Start))*gc.dayWidth())
}

// drawTimeAxis draws day labels, weekly past a month, with grid lines
func (gc *GanttChart) drawTimeAxis(svg *strings.Builder, numRows int) {
	step := 1
	if gc.End.Sub(gc.Start) > 30 {
		step = 7
	}
	gridBottom := gc.MarginTop + numRows*gc.RowHeight
	axisY := gc.Height - gc.MarginBottom

	for d := gc.Start; d <= gc.End; d = d.AddDays(step) {
		x := gc.x(d)
		fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`, x, gc.MarginTop, x, gridBottom)
		fmt.Fprintf(svg, `<text x="%d" y="%d" class="time-label" text-anchor="start">%s</text>`,
			x, axisY+15, d.Time().Format("Jan 2"))
	}
	fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
		gc.MarginLeft, axisY, gc.Width-gc.MarginRight, axisY)
}

func (gc *GanttChart) drawRows(svg *strings.Builder, rows []ganttRow) {
	for i, row := range rows {
		y := gc.MarginTop + i*gc.RowHeight

		fmt.Fprintf(svg, `<text x="%d" y="%d" class="row-label" text-anchor="end">%s</text>`,
			gc.MarginLeft-15, y+gc.RowHeight/2+4, html.EscapeString(row.name))
		fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
			gc.MarginLeft, y+gc.RowHeight, gc.Width-gc.MarginRight, y+gc.RowHeight)

		for _, bar := range row.bars {
			gc.drawBar(svg, bar, y)
		}
	}
}

func (gc *GanttChart) drawBar(svg *strings.Builder, bar GanttBar, rowY int) {
	barHeight := gc.RowHeight - 4
	barY := rowY + 2
	x := gc.x(bar.From)
	width := gc.x(bar.To.AddDays(1)) - x - 1
	if width < 2 {
		width = 2
	}

	fmt.Fprintf(svg, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s" class="bar">`,
		x, barY, width, barHeight, gc.getBarColor(bar))

	tooltip := fmt.Sprintf("%s: %.0f units, %s to %s", bar.Row, bar.Quantity, bar.From, bar.To)
	if !bar.Produced {
		tooltip += fmt.Sprintf(", %s", bar.State)
	}
	if bar.Label != "" {
		tooltip += ", truck " + bar.Label
	}
	fmt.Fprintf(svg, `<title>%s</title></rect>`, html.EscapeString(tooltip))

	if width > 40 {
		fmt.Fprintf(svg, `<text x="%d" y="%d" class="bar-text" text-anchor="middle">%.0f</text>`,
			x+width/2, barY+barHeight/2+3, bar.Quantity)
	}
}

// drawLegend draws a legend explaining the colors
func (gc *GanttChart) drawLegend(svg *strings.Builder) {
	legendX := gc.Width - gc.MarginRight - 200
	legendY := 40

	items := []struct {
		color string
		label string
	}{
		{"#9E9E9E", "Production"},
		{"#4CAF50", "Ambient shipment"},
		{"#2196F3", "Frozen shipment"},
		{"#FF9800", "Thawed shipment"},
	}

	fmt.Fprintf(svg, `<rect x="%d" y="%d" width="180" height="%d" fill="white" stroke="#ccc" stroke-width="1"/>`,
		legendX, legendY, 20+len(items)*12)
	for i, item := range items {
		itemY := legendY + 8 + i*12
		fmt.Fprintf(svg, `<rect x="%d" y="%d" width="12" height="8" fill="%s"/>`, legendX+10, itemY, item.color)
		fmt.Fprintf(svg, `<text x="%d" y="%d" class="time-label">%s</text>`, legendX+30, itemY+7, item.label)
	}
}

// getBarColor returns color based on what the bar moves
func (gc *GanttChart) getBarColor(bar GanttBar) string {
	if bar.Produced {
		return "#9E9E9E"
	}
	switch bar.State {
	case entities.Ambient:
		return "#4CAF50"
	case entities.Frozen:
		return "#2196F3"
	case entities.Thawed:
		return "#FF9800"
	default:
		return "#607D8B"
	}
}

// generateEmptyChart creates an empty chart when nothing was planned
func (gc *GanttChart) generateEmptyChart() string {
	return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
		<rect width="%d" height="%d" fill="white"/>
		<text x="%d" y="%d" class="title" text-anchor="middle">Nothing Planned</text>
		<style>
			.title { font-family: Arial, sans-serif; font-size: 16px; fill: #666; }
		</style>
	</svg>`, gc.Width, gc.Height, gc.Width, gc.Height, gc.Width/2, gc.Height/2)
}
