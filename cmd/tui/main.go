package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/dealflow/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/dealflow/internal/app"
	"github.com/MrJamesThe3rd/dealflow/internal/config"
)

type Screen int

const (
	ScreenMenu Screen = iota
	ScreenBoard
	ScreenForecast
	ScreenCreate
	ScreenImport
	ScreenExport
)

type model struct {
	services *app.Services
	appName  string

	screen Screen
	active view.View

	width  int
	height int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

func initialModel(services *app.Services, appName string) model {
	return model{
		services: services,
		appName:  appName,
		screen:   ScreenMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) open(screen Screen) (tea.Model, tea.Cmd) {
	m.screen = screen

	switch screen {
	case ScreenBoard:
		m.active = view.NewBoardModel(m.services.Opportunities, m.services.Forecast)
	case ScreenForecast:
		m.active = view.NewForecastModel(m.services.Opportunities)
	case ScreenCreate:
		m.active = view.NewCreateModel(m.services.Opportunities)
	case ScreenImport:
		m.active = view.NewImportModel(m.services.Import)
	case ScreenExport:
		m.active = view.NewExportModel(m.services.Export)
	case ScreenMenu:
		m.active = nil
		return m, nil
	}

	cmds := []tea.Cmd{m.active.Init()}
	if m.width > 0 {
		size := tea.WindowSizeMsg{Width: m.width, Height: m.height}
		cmds = append(cmds, func() tea.Msg { return size })
	}

	return m, tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		if m.screen == ScreenMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				return m.open(ScreenBoard)
			case "2":
				return m.open(ScreenForecast)
			case "3":
				return m.open(ScreenCreate)
			case "4":
				return m.open(ScreenImport)
			case "5":
				return m.open(ScreenExport)
			}

			return m, nil
		}

	case view.BackMsg:
		return m.open(ScreenMenu)

	case view.NewOpportunityMsg:
		return m.open(ScreenCreate)

	case view.CreatedMsg:
		slog.Info("opportunity created", "id", msg.Opportunity.ID, "title", msg.Opportunity.Title)
		return m.open(ScreenBoard)
	}

	if m.active == nil {
		return m, nil
	}

	updated, cmd := m.active.Update(msg)
	if v, ok := updated.(view.View); ok {
		m.active = v
	}

	return m, cmd
}

func (m model) View() string {
	if m.screen == ScreenMenu || m.active == nil {
		return lipgloss.NewStyle().Padding(2).Render(
			titleStyle.Render(m.appName) + "\n\n" +
				"1. Pipeline Board\n" +
				"2. Forecast\n" +
				"3. New Opportunity\n" +
				"4. Import Opportunities\n" +
				"5. Export Proposals\n\n" +
				"q. Quit",
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(titleStyle.Render(m.active.Title())),
		m.active.View(),
		lipgloss.NewStyle().Padding(0, 1).Render(helpStyle.Render(m.active.ShortHelp())),
	)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Anything written to stderr would tear the alt screen, so logs go to a
	// file in debug mode and nowhere otherwise.
	var out io.Writer = io.Discard

	if strings.EqualFold(cfg.Log.Level, "debug") {
		f, err := tea.LogToFile("dealflow-tui.log", "")
		if err != nil {
			slog.Error("failed to open log file", "error", err)
			os.Exit(1)
		}
		defer f.Close()

		out = f
	}

	log := cfg.Logger(out)
	slog.SetDefault(log)

	services, err := app.New(context.Background(), cfg, log)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(services, cfg.App.Name), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
