package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/planner"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	bandStyles = map[models.RiskBand]lipgloss.Style{
		models.BandLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B")),
		models.BandMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F1FA8C")),
		models.BandHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555")),
	}
)

func init() {
	// Plain output when not writing to a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		plain := lipgloss.NewStyle()
		titleStyle, subtitleStyle, errorStyle, dimStyle, statStyle = plain, plain, plain, plain, plain
		boxStyle = plain.Padding(0, 0)
		for band := range bandStyles {
			bandStyles[band] = plain
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type routeOutput struct {
	Safest     models.Path       `json:"safest"`
	Shortest   models.Path       `json:"shortest"`
	RiskCost   float64           `json:"riskCost"`
	Comparison models.Comparison `json:"comparison"`
	Graph      graph.Stats       `json:"graph"`
}

func printPlan(w io.Writer, title string, plan *planner.Plan) error {
	if jsonOutput {
		return writeJSON(w, routeOutput{
			Safest:     plan.Risk.Path,
			Shortest:   plan.Shortest.Path,
			RiskCost:   plan.Risk.Cost,
			Comparison: plan.Comparison,
			Graph:      plan.Graph.Stats(),
		})
	}

	c := plan.Comparison
	fmt.Fprintln(w, titleStyle.Render(title))

	safest := boxStyle.Render(renderReport("Safest route", plan.Risk.Path, c.Safest))
	shortest := boxStyle.Render(renderReport("Shortest route", plan.Shortest.Path, c.Shortest))
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, safest, " ", shortest))

	fmt.Fprintf(w, "Risk band: %s\n", bandStyles[c.Band].Render(strings.ToUpper(string(c.Band))))
	fmt.Fprintf(w, "Extra distance: %s (%+.1f%%)\n",
		statStyle.Render(fmt.Sprintf("%+.1f", c.DistanceDelta)), c.ExtraDistancePct)
	fmt.Fprintf(w, "Risk reduction: %s\n", statStyle.Render(fmt.Sprintf("%.1f%%", c.RiskReductionPct)))
	return nil
}

func renderReport(name string, path models.Path, r models.RouteReport) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(name))
	b.WriteString("\n")
	fmt.Fprintf(&b, "distance  %s\n", statStyle.Render(fmt.Sprintf("%.1f", r.TotalDistance)))
	fmt.Fprintf(&b, "avg risk  %s\n", statStyle.Render(fmt.Sprintf("%.3f", r.AvgRisk)))
	fmt.Fprintf(&b, "segments  %s\n", statStyle.Render(fmt.Sprintf("%d", r.Segments)))
	b.WriteString(dimStyle.Render(abbreviate(path, 6)))
	return b.String()
}

// abbreviate joins a path, eliding the middle of long ones
func abbreviate(path models.Path, keep int) string {
	if len(path) <= 2*keep {
		return strings.Join(path, " > ")
	}
	head := strings.Join(path[:keep], " > ")
	tail := strings.Join(path[len(path)-keep:], " > ")
	return fmt.Sprintf("%s > ... (%d more) > %s", head, len(path)-2*keep, tail)
}

func printStats(w io.Writer, g *graph.Graph) error {
	s := g.Stats()
	if jsonOutput {
		return writeJSON(w, struct {
			graph.Stats
			ComponentSizes []int `json:"componentSizes"`
		}{s, componentSizes(g)})
	}

	fmt.Fprintln(w, titleStyle.Render("Graph statistics"))
	fmt.Fprintf(w, "points      %s\n", statStyle.Render(fmt.Sprintf("%d", s.Points)))
	fmt.Fprintf(w, "edges       %s\n", statStyle.Render(fmt.Sprintf("%d", s.Edges)))
	fmt.Fprintf(w, "components  %s\n", statStyle.Render(fmt.Sprintf("%d", s.Components)))
	fmt.Fprintf(w, "connected   %s\n", statStyle.Render(fmt.Sprintf("%t", s.Connected)))
	fmt.Fprintf(w, "avg degree  %s\n", statStyle.Render(fmt.Sprintf("%.2f", s.AvgDegree)))
	if !s.Connected && s.Points > 0 {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("component sizes: %v", componentSizes(g))))
	}
	return nil
}

func componentSizes(g *graph.Graph) []int {
	comps := g.Components()
	sizes := make([]int, len(comps))
	for i, c := range comps {
		sizes[i] = len(c)
	}
	return sizes
}
