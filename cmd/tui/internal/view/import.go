package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/dealflow/internal/importer"
)

const importTimeout = 2 * time.Minute

type importStep int

const (
	importStepPick importStep = iota
	importStepPreview
	importStepRunning
	importStepDone
)

// ImportModel walks through picking a CSV file, previewing the parsed rows
// and creating them.
type ImportModel struct {
	CommonModel
	importService *importer.Service

	step    importStep
	picker  filepicker.Model
	path    string
	preview table.Model
	parsed  int

	result   *importer.Result
	rejected list.Model
	err      error
}

func NewImportModel(impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.FileAllowed = true
	fp.DirAllowed = false
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		picker:        fp,
	}
}

func (m ImportModel) Title() string { return "Import Opportunities" }

func (m ImportModel) ShortHelp() string {
	switch m.step {
	case importStepPreview:
		return "Enter: import | Esc: pick another file"
	case importStepDone:
		return "↑/↓: rejected rows | Esc: import another file"
	}

	return "Enter: select | Esc: back"
}

func (m ImportModel) Init() tea.Cmd {
	return m.picker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case previewMsg:
		return m.showPreview(msg)

	case importDoneMsg:
		m.step = importStepDone
		m.result, m.err = msg.result, msg.err

		if m.result != nil {
			m.rejected = rejectedList(m.result.Rejected)
		}

		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.back()
		}
	}

	switch m.step {
	case importStepPick:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		if ok, path := m.picker.DidSelectFile(msg); ok {
			m.path = path
			return m, previewCmd(path)
		}

		return m, cmd

	case importStepPreview:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter && m.err == nil {
			m.step = importStepRunning
			return m, m.importCmd(m.path)
		}

		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)

		return m, cmd

	case importStepDone:
		if m.result == nil || len(m.result.Rejected) == 0 {
			return m, nil
		}

		var cmd tea.Cmd
		m.rejected, cmd = m.rejected.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ImportModel) back() (tea.Model, tea.Cmd) {
	switch m.step {
	case importStepPick:
		return m, Back
	case importStepRunning:
		return m, nil
	}

	m.step = importStepPick
	m.path, m.result, m.err = "", nil, nil

	return m, m.picker.Init()
}

func (m ImportModel) showPreview(msg previewMsg) (tea.Model, tea.Cmd) {
	m.step = importStepPreview
	m.err = msg.err
	m.parsed = len(msg.rows)

	rows := make([]table.Row, len(msg.rows))
	for i, r := range msg.rows {
		rows[i] = table.Row{
			strconv.Itoa(r.Line),
			r.Input.Title,
			r.Input.Company,
			r.Input.Value,
			r.Input.ExpectedCloseDate,
			r.Input.Owner,
		}
	}

	m.preview = table.New(
		table.WithColumns([]table.Column{
			{Title: "Line", Width: 5},
			{Title: "Title", Width: 26},
			{Title: "Company", Width: 18},
			{Title: "Value", Width: 12},
			{Title: "Close", Width: 11},
			{Title: "Owner", Width: 12},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)
	m.preview.SetStyles(tableStyles())

	return m, nil
}

func (m ImportModel) View() string {
	pad := lipgloss.NewStyle().Padding(1)

	switch m.step {
	case importStepPick:
		return pad.Render("Pick a CSV export. It needs at least a title and a value column.\n\n" + m.picker.View())

	case importStepPreview:
		if m.err != nil {
			return pad.Render(errorStyle(fmt.Sprintf("Cannot read %s: %v", filepath.Base(m.path), m.err)))
		}

		return pad.Render(fmt.Sprintf("%s: %d rows found\n\n%s",
			filepath.Base(m.path), m.parsed, m.preview.View()))

	case importStepRunning:
		return pad.Render("Creating opportunities...")

	case importStepDone:
		return pad.Render(m.viewDone())
	}

	return ""
}

func (m ImportModel) viewDone() string {
	if m.err != nil {
		return errorStyle(fmt.Sprintf("Import failed: %v", m.err))
	}

	status := successStyle(fmt.Sprintf("Created %d opportunities.", len(m.result.Created)))
	if len(m.result.Rejected) == 0 {
		return status
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		status,
		errorStyle(fmt.Sprintf("%d rows were rejected:", len(m.result.Rejected))),
		"",
		m.rejected.View(),
	)
}

type previewMsg struct {
	rows []importer.Row
	err  error
}

type importDoneMsg struct {
	result *importer.Result
	err    error
}

func previewCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return previewMsg{err: err}
		}
		defer f.Close()

		rows, err := importer.NewParser().Parse(f)

		return previewMsg{rows: rows, err: err}
	}
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importDoneMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		result, err := m.importService.Import(ctx, f)

		return importDoneMsg{result: result, err: err}
	}
}

func rejectedList(rows []importer.RowError) list.Model {
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = rejectedItem(r)
	}

	l := list.New(items, rejectedDelegate{}, 80, min(len(rows)*2+2, 16))
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return l
}

type rejectedItem importer.RowError

func (i rejectedItem) FilterValue() string { return i.Title }

type rejectedDelegate struct{}

func (rejectedDelegate) Height() int                         { return 2 }
func (rejectedDelegate) Spacing() int                        { return 0 }
func (rejectedDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (rejectedDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(rejectedItem)
	if !ok {
		return
	}

	title := r.Title
	if title == "" {
		title = "(untitled)"
	}

	line := fmt.Sprintf("Line %d  %s", r.Line, title)
	if index == m.Index() {
		line = activeStyle("> " + line)
	} else {
		line = "  " + line
	}

	fmt.Fprintf(w, "%s\n    %s", line, lipgloss.NewStyle().Faint(true).Render(formatError(r.Errors)))
}
