package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CloseWindow is a predefined or custom range of expected close dates.
type CloseWindow int

const (
	WindowThisMonth   CloseWindow = 0
	WindowNextMonth   CloseWindow = 1
	WindowThisQuarter CloseWindow = 2
	WindowNext90Days  CloseWindow = 3
	WindowOverdue     CloseWindow = 4
	WindowAll         CloseWindow = 5
	WindowCustom      CloseWindow = 6
)

func (w CloseWindow) String() string {
	switch w {
	case WindowThisMonth:
		return "Closing This Month"
	case WindowNextMonth:
		return "Closing Next Month"
	case WindowThisQuarter:
		return "Closing This Quarter"
	case WindowNext90Days:
		return "Next 90 Days"
	case WindowOverdue:
		return "Overdue"
	case WindowAll:
		return "All Dates"
	case WindowCustom:
		return "Custom Range"
	}

	return "Unknown"
}

// windowRange resolves w against now. A nil bound is open.
func windowRange(w CloseWindow, now time.Time) (*time.Time, *time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch w {
	case WindowThisMonth:
		return new(monthStart), new(monthStart.AddDate(0, 1, -1))
	case WindowNextMonth:
		start := monthStart.AddDate(0, 1, 0)
		return new(start), new(start.AddDate(0, 1, -1))
	case WindowThisQuarter:
		start := time.Date(now.Year(), ((now.Month()-1)/3)*3+1, 1, 0, 0, 0, 0, time.UTC)
		return new(start), new(start.AddDate(0, 3, -1))
	case WindowNext90Days:
		return new(today), new(today.AddDate(0, 0, 90))
	case WindowOverdue:
		return nil, new(today.AddDate(0, 0, -1))
	}

	return nil, nil
}

// WindowSelectedMsg is emitted when the user has picked a close-date window.
type WindowSelectedMsg struct {
	Window CloseWindow
	From   *time.Time
	To     *time.Time
}

type windowState int

const (
	windowStateSelect windowState = iota
	windowStateCustom
)

// WindowPicker is a reusable component for selecting a close-date window.
type WindowPicker struct {
	state    windowState
	selected CloseWindow
	now      func() time.Time

	startInput textinput.Model
	endInput   textinput.Model
	focusIndex int

	err error
}

func NewWindowPicker(initial CloseWindow) WindowPicker {
	si := textinput.New()
	si.Placeholder = "YYYY-MM-DD"
	si.CharLimit = 10
	si.Width = 12
	si.Prompt = "From: "

	ei := textinput.New()
	ei.Placeholder = "YYYY-MM-DD"
	ei.CharLimit = 10
	ei.Width = 12
	ei.Prompt = "To:   "

	return WindowPicker{
		state:      windowStateSelect,
		selected:   initial,
		now:        time.Now,
		startInput: si,
		endInput:   ei,
	}
}

func (m WindowPicker) Init() tea.Cmd {
	return nil
}

func (m WindowPicker) Update(msg tea.Msg) (WindowPicker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case windowStateSelect:
			return m.updateSelect(msg)
		case windowStateCustom:
			if next, cmd, handled := m.updateCustom(msg); handled {
				return next, cmd
			}
		}
	}

	if m.state == windowStateCustom {
		return m.updateInputs(msg)
	}

	return m, nil
}

func (m WindowPicker) updateSelect(msg tea.KeyMsg) (WindowPicker, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > WindowThisMonth {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < WindowCustom {
			m.selected++
		}
	case tea.KeyEnter:
		if m.selected == WindowCustom {
			m.state = windowStateCustom
			m.startInput.Focus()
			m.focusIndex = 0

			return m, textinput.Blink
		}

		from, to := windowRange(m.selected, m.now())
		selected := WindowSelectedMsg{Window: m.selected, From: from, To: to}

		return m, func() tea.Msg { return selected }
	}

	return m, nil
}

func (m WindowPicker) updateCustom(msg tea.KeyMsg) (WindowPicker, tea.Cmd, bool) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusIndex = (m.focusIndex + 1) % 2
		m.startInput.Blur()
		m.endInput.Blur()

		if m.focusIndex == 0 {
			m.startInput.Focus()
		} else {
			m.endInput.Focus()
		}

		return m, textinput.Blink, true

	case "enter":
		from, err := time.Parse(time.DateOnly, m.startInput.Value())
		if err != nil {
			m.err = fmt.Errorf("invalid start date (YYYY-MM-DD)")
			return m, nil, true
		}

		to, err := time.Parse(time.DateOnly, m.endInput.Value())
		if err != nil {
			m.err = fmt.Errorf("invalid end date (YYYY-MM-DD)")
			return m, nil, true
		}

		if to.Before(from) {
			m.err = fmt.Errorf("end date is before start date")
			return m, nil, true
		}

		m.err = nil
		selected := WindowSelectedMsg{Window: WindowCustom, From: &from, To: &to}

		return m, func() tea.Msg { return selected }, true

	case "esc":
		m.state = windowStateSelect
		m.err = nil

		return m, nil, true
	}

	return m, nil, false
}

func (m WindowPicker) updateInputs(msg tea.Msg) (WindowPicker, tea.Cmd) {
	var (
		cmds []tea.Cmd
		c    tea.Cmd
	)

	m.startInput, c = m.startInput.Update(msg)
	cmds = append(cmds, c)
	m.endInput, c = m.endInput.Update(msg)
	cmds = append(cmds, c)

	return m, tea.Batch(cmds...)
}

func (m WindowPicker) View() string {
	errStr := ""
	if m.err != nil {
		errStr = "\n\n" + errorStyle(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == windowStateCustom {
		return fmt.Sprintf(
			"Enter Close Date Range:\n\n%s\n%s\n\n(Enter to confirm, Tab to switch, Esc to back)%s",
			m.startInput.View(),
			m.endInput.View(),
			errStr,
		)
	}

	s := "Select Close Window:\n\n"
	for i := WindowThisMonth; i <= WindowCustom; i++ {
		cursor := " "
		if m.selected == i {
			cursor = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(">")
		}

		s += fmt.Sprintf("%s %s\n", cursor, i.String())
	}

	s += "\n(Enter to select, Esc to back)"

	return s + errStr
}

// IsSelecting reports whether the picker is on the preset list rather than custom input.
func (m WindowPicker) IsSelecting() bool {
	return m.state == windowStateSelect
}

// Reset returns the picker to its initial selection state.
func (m *WindowPicker) Reset() {
	m.state = windowStateSelect
	m.err = nil
	m.startInput.SetValue("")
	m.endInput.SetValue("")
}
