package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/dealflow/internal/forecast"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

const columnWidth = 30

// NewOpportunityMsg asks the main model to open the creation form.
type NewOpportunityMsg struct{}

type BoardModel struct {
	CommonModel
	oppService      *opportunity.Service
	forecastService *forecast.Service

	columns    []forecast.Column
	col, row   int
	showDetail bool

	loading bool
	status  string
	err     error
}

func NewBoardModel(oppSvc *opportunity.Service, fcSvc *forecast.Service) BoardModel {
	return BoardModel{
		oppService:      oppSvc,
		forecastService: fcSvc,
		loading:         true,
	}
}

func (m BoardModel) Title() string { return "Pipeline Board" }

func (m BoardModel) ShortHelp() string {
	return "←/→ column | ↑/↓ card | [/] move stage | w: won | x: lost | enter: details | n: new | r: refresh | esc: back"
}

func (m BoardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadBoardMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.columns = msg.columns
		m.clampCursor()

		return m, nil

	case moveResultMsg:
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Cannot move %q: %v", msg.title, msg.err))
			return m, nil
		}

		m.status = fmt.Sprintf("Moved %q to %s", msg.title, msg.to.Label())

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m BoardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.showDetail {
			m.showDetail = false
			return m, nil
		}

		return m, Back
	case "left", "h":
		if m.col > 0 {
			m.col--
			m.clampCursor()
		}
	case "right", "l":
		if m.col < len(m.columns)-1 {
			m.col++
			m.clampCursor()
		}
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < len(m.currentMembers())-1 {
			m.row++
		}
	case "enter":
		m.showDetail = !m.showDetail
	case "r":
		m.loading = true
		return m, m.loadCmd()
	case "n":
		return m, func() tea.Msg { return NewOpportunityMsg{} }
	case "]":
		return m.moveSelected(nextStage)
	case "[":
		return m.moveSelected(prevStage)
	case "w":
		return m.moveSelected(func(opportunity.Stage) (opportunity.Stage, bool) { return opportunity.StageWon, true })
	case "x":
		return m.moveSelected(func(opportunity.Stage) (opportunity.Stage, bool) { return opportunity.StageLost, true })
	}

	return m, nil
}

func (m BoardModel) moveSelected(target func(opportunity.Stage) (opportunity.Stage, bool)) (tea.Model, tea.Cmd) {
	o := m.selected()
	if o == nil {
		return m, nil
	}

	to, ok := target(o.Stage)
	if !ok {
		m.status = fmt.Sprintf("%q is already in the first stage", o.Title)
		return m, nil
	}

	return m, m.moveCmd(o, to)
}

// pipeline is the board order followed by the winning outcome.
var pipeline = append(slices.Clone(opportunity.BoardStages), opportunity.StageWon)

func nextStage(s opportunity.Stage) (opportunity.Stage, bool) {
	i := slices.Index(pipeline, s)
	if i < 0 || i == len(pipeline)-1 {
		return "", false
	}

	return pipeline[i+1], true
}

func prevStage(s opportunity.Stage) (opportunity.Stage, bool) {
	i := slices.Index(pipeline, s)
	if i <= 0 {
		return "", false
	}

	return pipeline[i-1], true
}

func (m BoardModel) currentMembers() []*opportunity.Opportunity {
	if m.col < 0 || m.col >= len(m.columns) {
		return nil
	}

	return m.columns[m.col].Members
}

func (m BoardModel) selected() *opportunity.Opportunity {
	members := m.currentMembers()
	if m.row < 0 || m.row >= len(members) {
		return nil
	}

	return members[m.row]
}

func (m *BoardModel) clampCursor() {
	n := len(m.currentMembers())
	if m.row >= n {
		m.row = max(n-1, 0)
	}
}

func (m BoardModel) View() string {
	if m.loading && m.columns == nil {
		return lipgloss.NewStyle().Padding(2).Render("Loading pipeline...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	cols := make([]string, len(m.columns))
	for i, c := range m.columns {
		cols[i] = m.renderColumn(i, c)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	if m.showDetail {
		if o := m.selected(); o != nil {
			content = lipgloss.JoinVertical(lipgloss.Left, content, renderDetail(o))
		}
	}

	footer := lipgloss.NewStyle().Faint(true).Render(m.ShortHelp())
	if m.status != "" {
		footer = m.status + "\n" + footer
	}

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, content, "", footer))
}

func (m BoardModel) renderColumn(idx int, c forecast.Column) string {
	borderColor := lipgloss.Color("240")
	if idx == m.col {
		borderColor = lipgloss.Color("63")
	}

	header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%d)", c.Stage.Label(), len(c.Members)))
	totals := lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("%s | wtd %s", FormatMoney(c.Total, ""), FormatMoney(c.Weighted, "")),
	)

	lines := []string{header, totals, ""}

	for i, o := range c.Members {
		card := fmt.Sprintf("%s\n%s\n%s · %d%%",
			truncate(o.Title, columnWidth-4),
			truncate(o.Company, columnWidth-4),
			FormatMoney(o.Value, o.Currency),
			o.Probability,
		)

		style := lipgloss.NewStyle().Width(columnWidth-4).Padding(0, 1).MarginBottom(1)
		if idx == m.col && i == m.row {
			style = style.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
		}

		lines = append(lines, style.Render(card))
	}

	if len(c.Members) == 0 {
		lines = append(lines, lipgloss.NewStyle().Faint(true).Render("No deals"))
	}

	return lipgloss.NewStyle().
		Width(columnWidth).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Render(strings.Join(lines, "\n"))
}

func renderDetail(o *opportunity.Opportunity) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n\n", lipgloss.NewStyle().Bold(true).Render(o.Title))
	fmt.Fprintf(&sb, "Company:        %s\n", o.Company)
	fmt.Fprintf(&sb, "Contact:        %s\n", o.Contact)
	fmt.Fprintf(&sb, "Decision maker: %s\n", o.DecisionMaker)
	fmt.Fprintf(&sb, "Owner:          %s\n", o.Owner)
	fmt.Fprintf(&sb, "Value:          %s\n", FormatMoney(o.Value, o.Currency))
	fmt.Fprintf(&sb, "Weighted:       %s (%d%%)\n", FormatMoney(forecast.WeightedValue(o), o.Currency), o.Probability)
	fmt.Fprintf(&sb, "Stage:          %s\n", o.Stage.Label())
	fmt.Fprintf(&sb, "Expected close: %s\n", FormatDate(o.ExpectedCloseDate))

	if o.ProposalPDF != "" {
		fmt.Fprintf(&sb, "Proposal:       %s\n", o.ProposalPDF)
	}

	if len(o.KeyDates) > 0 {
		sb.WriteString("\nKey dates:\n")

		for _, kd := range o.KeyDates {
			fmt.Fprintf(&sb, "  %s  %s\n", FormatDate(kd.Date), kd.Label)
		}
	}

	if o.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", o.Description)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		MarginTop(1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(4*columnWidth).
		Render(sb.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

// Messages

type loadBoardMsg struct {
	columns []forecast.Column
	err     error
}

func (m BoardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		cols, err := m.forecastService.Board(ctx)

		return loadBoardMsg{columns: cols, err: err}
	}
}

type moveResultMsg struct {
	title string
	to    opportunity.Stage
	err   error
}

func (m BoardModel) moveCmd(o *opportunity.Opportunity, to opportunity.Stage) tea.Cmd {
	id, title := o.ID, o.Title

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		err := m.oppService.MoveStage(ctx, id, to)
		if errors.Is(err, opportunity.ErrTransitionNotAllowed) {
			err = fmt.Errorf("transition from current stage to %s is not allowed", to.Label())
		}

		return moveResultMsg{title: title, to: to, err: err}
	}
}
