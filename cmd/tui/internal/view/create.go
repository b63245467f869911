package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

// CreatedMsg is emitted after an opportunity has been stored.
type CreatedMsg struct {
	Opportunity *opportunity.Opportunity
}

type CreateModel struct {
	CommonModel
	oppService *opportunity.Service

	form  *huh.Form
	input *opportunity.CreateInput

	saving bool
	err    error
}

func NewCreateModel(oppSvc *opportunity.Service) CreateModel {
	m := CreateModel{
		oppService: oppSvc,
		input:      &opportunity.CreateInput{},
	}
	m.form = m.buildForm()

	return m
}

func (m CreateModel) Title() string { return "New Opportunity" }

func (m CreateModel) ShortHelp() string {
	return "Tab/Enter: next field | Shift+Tab: previous | Esc: cancel"
}

func (m CreateModel) Init() tea.Cmd {
	return m.form.Init()
}

// rule adapts a field's validation rules to a huh validator.
func rule(field string) func(string) error {
	return func(s string) error {
		return validation.Check(opportunity.CreateRules[field], s)
	}
}

func (m CreateModel) buildForm() *huh.Form {
	in := m.input

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Key(opportunity.FieldTitle).Title("Title").
				Value(&in.Title).Validate(rule(opportunity.FieldTitle)),
			huh.NewInput().Key(opportunity.FieldCompany).Title("Company").
				Value(&in.Company).Validate(rule(opportunity.FieldCompany)),
			huh.NewInput().Key(opportunity.FieldContact).Title("Contact").
				Value(&in.Contact),
			huh.NewInput().Key(opportunity.FieldDecisionMaker).Title("Decision Maker").
				Value(&in.DecisionMaker),
			huh.NewInput().Key(opportunity.FieldOwner).Title("Owner").
				Value(&in.Owner),
		).Title("Deal"),
		huh.NewGroup(
			huh.NewInput().Key(opportunity.FieldValue).Title("Value").Placeholder("45000").
				Value(&in.Value).Validate(rule(opportunity.FieldValue)),
			huh.NewInput().Key(opportunity.FieldCurrency).Title("Currency").Placeholder("USD").
				Value(&in.Currency).Validate(rule(opportunity.FieldCurrency)),
			huh.NewInput().Key(opportunity.FieldProbability).Title("Probability %").
				Description(fmt.Sprintf("Blank for %d%%", opportunity.StageQualified.DefaultProbability())).
				Value(&in.Probability).Validate(rule(opportunity.FieldProbability)),
			huh.NewInput().Key(opportunity.FieldExpectedCloseDate).Title("Expected Close Date").Placeholder("YYYY-MM-DD").
				Value(&in.ExpectedCloseDate).Validate(rule(opportunity.FieldExpectedCloseDate)),
		).Title("Forecast"),
		huh.NewGroup(
			huh.NewInput().Key(opportunity.FieldProposalPDF).Title("Proposal").Placeholder("https://... or file name").
				Value(&in.ProposalPDF),
			huh.NewText().Key(opportunity.FieldDescription).Title("Description").
				Value(&in.Description),
		).Title("Details").Description("New opportunities start in Qualified."),
	).WithWidth(60).WithShowHelp(false)
}

func (m CreateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case createResultMsg:
		m.saving = false

		var verrs validation.Errors
		if errors.As(msg.err, &verrs) {
			m.err = verrs
			m.form = m.buildForm()

			return m, m.form.Init()
		}

		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		created := msg.opp

		return m, func() tea.Msg { return CreatedMsg{Opportunity: created} }

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	if m.saving {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.saving = true

	return m, m.createCmd()
}

func (m CreateModel) View() string {
	var sb strings.Builder

	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("New Opportunity"))
	sb.WriteString("\n\n")

	if m.err != nil {
		sb.WriteString(errorStyle(formatError(m.err)))
		sb.WriteString("\n\n")
	}

	if m.saving {
		sb.WriteString("Saving...")
	} else {
		sb.WriteString(m.form.View())
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

func formatError(err error) string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return fmt.Sprintf("Error: %v", err)
	}

	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}

	slices.Sort(fields)

	lines := make([]string, len(fields))
	for i, f := range fields {
		lines[i] = fmt.Sprintf("%s: %s", f, verrs[f])
	}

	return strings.Join(lines, "\n")
}

// Messages

type createResultMsg struct {
	opp *opportunity.Opportunity
	err error
}

func (m CreateModel) createCmd() tea.Cmd {
	in := *m.input

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		o, err := m.oppService.Create(ctx, in)

		return createResultMsg{opp: o, err: err}
	}
}
