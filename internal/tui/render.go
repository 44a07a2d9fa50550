package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

// wide terminals place the panes side by side
const sideBySideWidth = 100

func (m Model) render() string {
	var b strings.Builder

	header := headerStyle.Render("TrollTrack")
	status := m.state.RefreshStatus
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, header, " ", mutedStyle.Render(status)))
	b.WriteString("\n\n")

	if m.state.Error != "" {
		b.WriteString(errorStyle.Render(m.state.Error))
		b.WriteString("\n\n")
	}

	paneWidth := 0
	if m.width >= sideBySideWidth {
		paneWidth = m.width/2 - 2
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderLocationPane(paneWidth),
		m.renderWeatherPane(paneWidth),
	)
	right := m.renderCatchPane(paneWidth)
	if paneWidth > 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, left, right))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r: refresh • q: quit"))
	return b.String()
}

func pane(width int, content string) string {
	style := paneStyle
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(content)
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value) + "\n"
}

func (m Model) renderLocationPane(width int) string {
	loc := m.state.Location
	var b strings.Builder
	b.WriteString(titleStyle.Render("Location"))
	b.WriteString("\n\n")
	b.WriteString(field("Place", loc.Name))
	if loc.HasFix {
		b.WriteString(field("Latitude", loc.FormattedLatitude))
		b.WriteString(field("Longitude", loc.FormattedLongitude))
	}
	b.WriteString(mutedStyle.Render(loc.LastUpdatedText))
	return pane(width, b.String())
}

func (m Model) renderWeatherPane(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Weather"))
	b.WriteString("\n\n")

	wx := m.state.Weather
	if wx == nil {
		b.WriteString(mutedStyle.Render(m.state.WeatherSummary))
		return pane(width, b.String())
	}

	b.WriteString(valueStyle.Render(m.state.WeatherSummary))
	b.WriteString("\n\n")
	if d := m.state.Derived; d != nil {
		badge := "Poor fishing weather"
		if d.IsFishingWeatherGood {
			badge = "Good fishing weather"
		}
		b.WriteString(indicatorStyle(d.ColorIndicator).Render("● " + badge))
		b.WriteString("\n")
		b.WriteString(field("Outlook", d.FishingForecast))
		b.WriteString(field("Wind", fmt.Sprintf("%s %s", d.WindDirectionCardinal, d.BeaufortScale)))
	}
	b.WriteString(field("Pressure", fmt.Sprintf("%.0f mb", wx.Pressure)))
	b.WriteString(field("Rain chance", fmt.Sprintf("%d%%", wx.PrecipitationChance)))
	if m.state.Conditions != "" {
		b.WriteString(mutedStyle.Render(m.state.Conditions))
	}
	return pane(width, b.String())
}

func (m Model) renderCatchPane(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Today"))
	b.WriteString("\n\n")
	b.WriteString(field("Catches", fmt.Sprintf("%d", m.state.TodaysCatches)))
	b.WriteString(field("Best", m.state.BestCatch))
	b.WriteString(field("Fishing time", m.state.FishingTime))
	b.WriteString(field("Program", m.state.CurrentProgram))

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Recent catches"))
	b.WriteString("\n")
	if len(m.state.RecentCatches) == 0 {
		b.WriteString(mutedStyle.Render(viewmodel.NoCatchesToday))
	}
	for i := range m.state.RecentCatches {
		b.WriteString(formatRecent(&m.state.RecentCatches[i]))
		b.WriteString("\n")
	}
	return pane(width, b.String())
}

func formatRecent(c *datastore.CatchRecord) string {
	line := fmt.Sprintf("%s  %s", c.Timestamp.Local().Format("Jan 2 15:04"), c.SpeciesName())
	if c.Weight > 0 {
		line += fmt.Sprintf(" %.1f lbs", c.Weight)
	}
	return valueStyle.Render(line)
}
