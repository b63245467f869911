package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/dealflow/internal/export"
	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
)

const exportTimeout = 2 * time.Minute

type exportStep int

const (
	exportStepWindow exportStep = iota
	exportStepOptions
	exportStepRunning
	exportStepDone
)

// exportOptions is bound to the options form.
type exportOptions struct {
	dir   string
	stage string // "" means every stage
	owner string
}

// ExportModel downloads the proposals of every opportunity closing in a window.
type ExportModel struct {
	CommonModel
	exportService *export.Service

	step   exportStep
	window WindowPicker
	from   *time.Time
	to     *time.Time

	opts    *exportOptions
	form    *huh.Form
	spinner spinner.Model

	items  []export.Item
	notice string
	err    error
}

func NewExportModel(svc *export.Service) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return ExportModel{
		exportService: svc,
		step:          exportStepWindow,
		window:        NewWindowPicker(WindowThisQuarter),
		opts:          &exportOptions{dir: "./proposals"},
		spinner:       s,
	}
}

func (m ExportModel) Title() string { return "Export Proposals" }

func (m ExportModel) ShortHelp() string {
	switch m.step {
	case exportStepOptions:
		return "Enter: next | Esc: change window"
	case exportStepRunning:
		return "Downloading..."
	case exportStepDone:
		return "c: copy summary | Esc: back to menu"
	}

	return "↑/↓: choose window | Enter: confirm | Esc: back"
}

func (m ExportModel) Init() tea.Cmd {
	return nil
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case WindowSelectedMsg:
		m.from, m.to = msg.From, msg.To
		m.form = m.optionsForm()
		m.step = exportStepOptions

		return m, m.form.Init()

	case exportDoneMsg:
		m.step = exportStepDone
		m.items, m.err = msg.items, msg.err

		return m, nil
	}

	switch m.step {
	case exportStepWindow:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc && m.window.IsSelecting() {
			return m, Back
		}

		var cmd tea.Cmd
		m.window, cmd = m.window.Update(msg)

		return m, cmd

	case exportStepOptions:
		return m.updateOptions(msg)

	case exportStepRunning:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case exportStepDone:
		return m.updateDone(msg)
	}

	return m, nil
}

func (m ExportModel) updateOptions(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
		m.step = exportStepWindow
		m.window.Reset()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.step = exportStepRunning

	return m, tea.Batch(m.spinner.Tick, m.exportCmd(m.filter(), m.opts.dir))
}

func (m ExportModel) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		return m, Back
	case "c":
		if err := clipboard.WriteAll(m.exportService.GenerateSummary(m.items)); err != nil {
			m.notice = errorStyle(fmt.Sprintf("Clipboard unavailable: %v", err))
		} else {
			m.notice = successStyle("Summary copied to clipboard.")
		}
	}

	return m, nil
}

func (m ExportModel) filter() opportunity.ListFilter {
	f := opportunity.ListFilter{CloseFrom: m.from, CloseTo: m.to}

	if m.opts.stage != "" {
		f.Stage = new(opportunity.Stage(m.opts.stage))
	}

	if owner := strings.TrimSpace(m.opts.owner); owner != "" {
		f.Owner = &owner
	}

	return f
}

func (m ExportModel) optionsForm() *huh.Form {
	stages := []huh.Option[string]{huh.NewOption("Any stage", "")}
	for _, s := range opportunity.Stages {
		stages = append(stages, huh.NewOption(s.Label(), string(s)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Stage").
				Options(stages...).
				Value(&m.opts.stage),
			huh.NewInput().
				Title("Owner").
				Description("Leave empty for every owner").
				Value(&m.opts.owner),
			huh.NewInput().
				Title("Output Directory").
				Description("Created if missing").
				Placeholder("./proposals").
				Value(&m.opts.dir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("output directory is required")
					}

					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m ExportModel) View() string {
	pad := lipgloss.NewStyle().Padding(1)

	switch m.step {
	case exportStepWindow:
		return pad.Render(m.window.View())
	case exportStepOptions:
		return pad.Render(m.form.View())
	case exportStepRunning:
		return pad.Render(fmt.Sprintf("%s Downloading proposals into %s", m.spinner.View(), m.opts.dir))
	case exportStepDone:
		return pad.Render(m.viewDone())
	}

	return ""
}

func (m ExportModel) viewDone() string {
	if m.err != nil {
		return errorStyle(fmt.Sprintf("Export failed: %v", m.err))
	}

	if len(m.items) == 0 {
		return "No opportunities matched."
	}

	downloaded := 0

	var sb strings.Builder

	for _, item := range m.items {
		o := item.Opportunity

		mark := lipgloss.NewStyle().Faint(true).Render("·")
		if item.FilePath != "" {
			mark = successStyle("✓")
			downloaded++
		}

		fmt.Fprintf(&sb, "%s %s  %-24s %-18s %s\n",
			mark, FormatDate(o.ExpectedCloseDate),
			truncate(o.Title, 24), truncate(o.Company, 18),
			FormatMoney(o.Value, o.Currency),
		)
	}

	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("Downloaded %d of %d proposals", downloaded, len(m.items)),
	)

	parts := []string{header, "", sb.String()}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

type exportDoneMsg struct {
	items []export.Item
	err   error
}

func (m ExportModel) exportCmd(filter opportunity.ListFilter, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		items, err := m.exportService.Export(ctx, filter, dir)

		return exportDoneMsg{items: items, err: err}
	}
}
