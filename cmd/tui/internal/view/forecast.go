package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

type forecastState int

const (
	forecastStateBrowse forecastState = iota
	forecastStateWindow
)

type ForecastModel struct {
	CommonModel
	oppService *opportunity.Service

	state  forecastState
	table  table.Model
	picker WindowPicker
	rows   []forecast.Row

	stageFilterIdx int
	window         CloseWindow
	filter         opportunity.ListFilter
	showDetail     bool

	summary forecast.Summary
	loading bool
	err     error
}

func NewForecastModel(oppSvc *opportunity.Service) ForecastModel {
	columns := []table.Column{
		{Title: "Title", Width: 26},
		{Title: "Company", Width: 18},
		{Title: "Stage", Width: 12},
		{Title: "Value", Width: 14},
		{Title: "Prob", Width: 5},
		{Title: "Weighted", Width: 12},
		{Title: "Close", Width: 11},
		{Title: "Days", Width: 5},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	t.SetStyles(tableStyles())

	return ForecastModel{
		oppService: oppSvc,
		table:      t,
		picker:     NewWindowPicker(WindowAll),
		window:     WindowAll,
		loading:    true,
	}
}

func (m ForecastModel) Title() string { return "Forecast" }

func (m ForecastModel) ShortHelp() string {
	if m.state == forecastStateWindow {
		return "Pick a close window | Esc: cancel"
	}

	return "Esc: back | s: stage filter | t: close window | enter: details | r: refresh"
}

func (m ForecastModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ForecastModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadForecastMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.rows = forecast.Table(msg.opps, msg.now)
		m.summary = forecast.Summarize(msg.opps)
		m.refreshTable()

		return m, nil

	case WindowSelectedMsg:
		m.window = msg.Window
		m.filter.CloseFrom = msg.From
		m.filter.CloseTo = msg.To
		m.state = forecastStateBrowse
		m.table.Focus()

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-14, 5))
		return m, nil
	}

	switch m.state {
	case forecastStateWindow:
		return m.updateWindow(msg)
	default:
		return m.updateBrowse(msg)
	}
}

func (m ForecastModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			if m.showDetail {
				m.showDetail = false
				return m, nil
			}

			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.stageFilterIdx = (m.stageFilterIdx + 1) % (len(opportunity.Stages) + 1)
			m.applyStageFilter()

			return m, m.loadCmd()
		case "t":
			m.state = forecastStateWindow
			m.picker.Reset()
			m.table.Blur()

			return m, nil
		case "enter":
			m.showDetail = !m.showDetail
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ForecastModel) updateWindow(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc && m.picker.IsSelecting() {
		m.state = forecastStateBrowse
		m.table.Focus()

		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	return m, cmd
}

func (m *ForecastModel) applyStageFilter() {
	if m.stageFilterIdx == 0 {
		m.filter.Stage = nil
		return
	}

	m.filter.Stage = new(opportunity.Stages[m.stageFilterIdx-1])
}

func (m ForecastModel) stageLabel() string {
	if m.stageFilterIdx == 0 {
		return "All"
	}

	return opportunity.Stages[m.stageFilterIdx-1].Label()
}

func (m *ForecastModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		o := r.Opportunity
		rows = append(rows, table.Row{
			o.Title,
			o.Company,
			o.Stage.Label(),
			FormatMoney(o.Value, o.Currency),
			strconv.Itoa(o.Probability) + "%",
			FormatMoney(r.Weighted, ""),
			FormatDate(o.ExpectedCloseDate),
			strconv.Itoa(r.DaysUntilClose),
		})
	}

	m.table.SetRows(rows)
}

func (m ForecastModel) View() string {
	if m.loading && m.rows == nil {
		return lipgloss.NewStyle().Padding(2).Render("Loading forecast...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.state == forecastStateWindow {
		return lipgloss.NewStyle().Padding(1).Render(m.picker.View())
	}

	header := fmt.Sprintf(
		"Filter: [s] Stage: %s | [t] Close: %s",
		activeStyle(m.stageLabel()),
		activeStyle(m.window.String()),
	)

	s := m.summary
	summary := fmt.Sprintf(
		"%d deals, %d open | Pipeline %s | Weighted %s | Won %s | Lost %s | Win rate %s%%",
		s.Count, s.Open,
		FormatMoney(s.OpenValue, ""),
		FormatMoney(s.WeightedValue, ""),
		FormatMoney(s.WonValue, ""),
		FormatMoney(s.LostValue, ""),
		s.WinRate.StringFixed(1),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		lipgloss.NewStyle().PaddingTop(1).Bold(true).Render(summary),
	)

	if m.showDetail {
		if idx := m.table.Cursor(); idx >= 0 && idx < len(m.rows) {
			content = lipgloss.JoinVertical(lipgloss.Left, content, renderDetail(m.rows[idx].Opportunity))
		}
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

// Messages

type loadForecastMsg struct {
	opps []*opportunity.Opportunity
	now  time.Time
	err  error
}

func (m ForecastModel) loadCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		opps, err := m.oppService.List(ctx, filter)

		return loadForecastMsg{opps: opps, now: time.Now(), err: err}
	}
}
