package main

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"

	"locksmith-coverage/internal/models"
)

// isAccessible reports whether plain output was requested via NO_COLOR or ACCESSIBLE=1
func isAccessible() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("ACCESSIBLE") == "1"
}

type theme struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Section lipgloss.Style
	badges  map[string]lipgloss.Style
}

func newTheme() theme {
	if isAccessible() {
		plain := lipgloss.NewStyle()
		return theme{Title: plain, Muted: plain, Section: plain, badges: map[string]lipgloss.Style{}}
	}

	green := lipgloss.Color("#10B981")
	amber := lipgloss.Color("#F59E0B")
	orange := lipgloss.Color("#F97316")
	yellow := lipgloss.Color("#EAB308")
	red := lipgloss.Color("#EF4444")
	cyan := lipgloss.Color("#06B6D4")
	muted := lipgloss.Color("#6B7280")

	badge := func(c color.Color) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(c)
	}

	return theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Section: lipgloss.NewStyle().Bold(true).Foreground(cyan),
		badges: map[string]lipgloss.Style{
			string(models.ReadinessReady):            badge(green),
			string(models.ReadinessNeedParts):        badge(amber),
			string(models.ReadinessNeedSubscription): badge(cyan),
			string(models.ReadinessCannotService):    badge(red),
			string(models.HeatGreen):                 badge(green),
			string(models.HeatYellow):                badge(yellow),
			string(models.HeatOrange):                badge(orange),
			string(models.HeatRed):                   badge(red),
		},
	}
}

// Badge renders a status label padded to width
func (t theme) Badge(status string, width int) string {
	label := fmt.Sprintf("%-*s", width, status)
	if style, ok := t.badges[status]; ok {
		return style.Render(label)
	}
	return label
}

func renderReadiness(w io.Writer, t theme, r models.Readiness, owned models.OwnedToolSet) {
	fmt.Fprintln(w, t.Title.Render(r.Vehicle))
	fmt.Fprintf(w, "  Status:    %s\n", t.Badge(string(r.Status), 0))
	fmt.Fprintf(w, "  Tools:     %s\n", t.Muted.Render(strings.Join(owned.ToolIDs, ", ")))

	if len(r.Verdicts) > 0 {
		fmt.Fprintln(w, t.Section.Render("  Families"))
		for _, f := range models.Families {
			a, ok := r.Verdicts[f]
			if !ok {
				continue
			}
			v := a.Verdict
			line := fmt.Sprintf("    %-9s covered=%-5t status=%-8s confidence=%-6s", f, v.Covered, v.Status.String(), v.Confidence)
			if a.ToolID != "" {
				line += " via " + a.ToolID
			}
			if v.Reason != models.ReasonNone {
				line += fmt.Sprintf(" (%s", v.Reason)
				if v.Detail != "" {
					line += ": " + v.Detail
				}
				line += ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(r.Blockers) > 0 {
		fmt.Fprintln(w, t.Section.Render("  Blockers"))
		for _, b := range r.Blockers {
			fmt.Fprintf(w, "    - %s\n", b)
		}
	}
}

func renderHeatmap(w io.Writer, t theme, h models.Heatmap) {
	fmt.Fprintf(w, "%-32s %-8s %-28s %s\n", "Vehicle", "Status", "Tools", "Barrier")
	fmt.Fprintln(w, t.Muted.Render(strings.Repeat("-", 96)))
	for _, g := range h.Groups {
		tools := make([]string, 0, len(g.ToolsClaimingCoverage))
		for _, f := range g.ToolsClaimingCoverage {
			tools = append(tools, string(f))
		}
		fmt.Fprintf(w, "%-32s %s %-28s %s\n", g.VehicleGroupLabel, t.Badge(string(g.Status), 8), strings.Join(tools, ","), g.Barrier)
	}
	c := h.Counts
	fmt.Fprintf(w, "\n%d groups: %d red, %d orange, %d yellow, %d green\n", c.Total, c.Red, c.Orange, c.Yellow, c.Green)
}

func renderSummary(w io.Writer, t theme, v models.Vehicle, g models.CoverageGroup, baselines []models.CoverageBaseline) {
	fmt.Fprintln(w, t.Title.Render(v.Label()))
	if v.PlatformTag != "" {
		fmt.Fprintf(w, "  Platform:  %s\n", v.PlatformTag)
	}
	if len(v.Chips) > 0 {
		fmt.Fprintf(w, "  Chips:     %s\n", strings.Join(v.Chips, ", "))
	}
	fmt.Fprintf(w, "  Status:    %s\n", t.Badge(string(g.Status), 0))
	fmt.Fprintf(w, "  Barrier:   %s\n", g.Barrier)
	fmt.Fprintf(w, "  Gap:       %s\n", g.GapAssessment)

	if len(baselines) == 0 {
		return
	}
	fmt.Fprintln(w, t.Section.Render("  Families"))
	for _, b := range baselines {
		line := fmt.Sprintf("    %-9s %-8s %s", b.ToolFamily, displayStatus(b.Status), b.Confidence)
		for _, l := range b.Limitations {
			line += " [" + string(l.Category) + "]"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
