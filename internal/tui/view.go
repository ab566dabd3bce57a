package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattmezza/biopatch/internal/insights"
	"github.com/mattmezza/biopatch/internal/state"
	"github.com/mattmezza/biopatch/internal/vitals"
)

const visibleLogEntries = 8

var (
	accentPrimary = lipgloss.Color("#4F46E5")
	mutedText     = lipgloss.Color("#737373")
	greenText     = lipgloss.Color("#16A34A")
	yellowText    = lipgloss.Color("#CA8A04")
	redText       = lipgloss.Color("#DC2626")
	panelBorder   = lipgloss.Color("#D4D4D4")
)

var (
	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(accentPrimary)

	subHeaderStyle = lipgloss.NewStyle().
		Foreground(mutedText)

	statusStyle = lipgloss.NewStyle().
		Foreground(greenText).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(redText).
		Bold(true)

	bannerStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(yellowText).
		Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(panelBorder).
		Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
		Foreground(accentPrimary).
		Bold(true)

	tileStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(panelBorder).
		Width(14).
		Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
		Foreground(mutedText)
)

var statusColors = map[vitals.Status]lipgloss.Color{
	vitals.StatusGreen:  greenText,
	vitals.StatusYellow: yellowText,
	vitals.StatusRed:    redText,
}

func (m Model) View() string {
	var body string
	switch m.screen {
	case screenSignup:
		body = m.viewSignup()
	case screenLogin:
		body = m.viewLogin()
	case screenDashboard:
		body = m.viewDashboard()
	default:
		body = m.viewLanding()
	}

	parts := []string{headerStyle.Render("BioPatch+"), body}
	if m.statusText != "" {
		parts = append(parts, statusStyle.Render(m.statusText))
	}
	if m.errorText != "" {
		parts = append(parts, errorStyle.Render(m.errorText))
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func (m Model) viewLanding() string {
	return strings.Join([]string{
		subHeaderStyle.Render("A smart patch that monitors your vitals continuously, delivering precise treatments."),
		"[c] Create your account   [l] Log in   [q] Quit",
		helpStyle.Render("BioPatch+ uses anonymized data to improve global health predictions. By using this service, you agree to continuous monitoring."),
	}, "\n\n")
}

func (m Model) viewSignup() string {
	lines := []string{panelTitleStyle.Render("Create your account")}
	for _, in := range m.signup {
		lines = append(lines, in.View())
	}
	lines = append(lines,
		checkbox(m.agreed, m.signupFocus == fieldTerms, "I agree to the Terms & Conditions"),
		checkbox(m.consent, m.signupFocus == fieldConsent, "I consent to BioPatch+ storing my biological data for research and product improvement"),
		helpStyle.Render("tab next field | space toggle | enter create | esc back"),
	)
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewLogin() string {
	lines := []string{panelTitleStyle.Render("Log in")}
	for _, in := range m.login {
		lines = append(lines, in.View())
	}
	lines = append(lines, helpStyle.Render("tab next field | enter log in | esc back"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func checkbox(checked, focused bool, label string) string {
	box := "[ ]"
	if checked {
		box = "[x]"
	}
	cursor := "  "
	if focused {
		cursor = "> "
	}
	return cursor + box + " " + label
}

func (m Model) viewDashboard() string {
	snap := m.snap
	if !snap.Entered {
		return subHeaderStyle.Render("Signed out.")
	}

	greeting := "Welcome back"
	if snap.User != "" {
		greeting = "Welcome, " + snap.User
	}
	parts := []string{subHeaderStyle.Render(greeting), renderTiles(snap.Vitals)}

	for _, a := range snap.ActiveAlerts() {
		parts = append(parts, renderBanner(a))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		renderPanel("Issues", renderIssues(snap)),
		renderPanel("Health timeline", renderLog(snap)),
	)
	parts = append(parts, row)

	if len(m.samples) > 0 {
		parts = append(parts, renderPanel("Last 24h", renderInsights(m.samples)))
	}
	parts = append(parts, helpStyle.Render("a approve | r reject | 1-9 approve issue | d diagnostics | e export | s sign out | q quit"))
	return strings.Join(parts, "\n")
}

func renderTiles(views []state.VitalView) string {
	tiles := make([]string, 0, len(views))
	for _, v := range views {
		value := lipgloss.NewStyle().Bold(true).Foreground(statusColors[v.Status]).Render(v.Formatted)
		tiles = append(tiles, tileStyle.Render(v.Label+"\n"+value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

func renderBanner(a state.AlertView) string {
	return bannerStyle.Render(fmt.Sprintf("%s\n%s in %ds   [a] approve now   [r] reject", a.Banner, a.CountdownLabel, a.Remaining))
}

func renderPanel(title, content string) string {
	return panelStyle.Render(panelTitleStyle.Render(title) + "\n" + content)
}

func renderIssues(snap state.Snapshot) string {
	if len(snap.Issues) == 0 {
		return helpStyle.Render("No pending issues.")
	}
	lines := make([]string, 0, len(snap.Issues))
	for i, is := range snap.Issues {
		line := fmt.Sprintf("%s\n   %s", is.Title, helpStyle.Render(is.Subtitle))
		if i < 9 {
			line = fmt.Sprintf("%d. %s", i+1, line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderLog(snap state.Snapshot) string {
	entries := snap.Log
	if len(entries) > visibleLogEntries {
		entries = entries[:visibleLogEntries]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, helpStyle.Render(e.TimeOfDay())+" "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func renderInsights(samples []insights.Sample) string {
	summaries := insights.Summarize(samples)
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("%-10s %s  avg %.0f", s.Field.Label(), sparkline(insights.Series(samples, s.Field)), s.Avg))
	}
	return strings.Join(lines, "\n")
}

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their own min and max.
func sparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = (v - lo) * (len(sparkBars) - 1) / (hi - lo)
		}
		b.WriteRune(sparkBars[idx])
	}
	return b.String()
}
