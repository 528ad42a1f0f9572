package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/causalmr/pkg/reports"
	"github.com/rmax-ai/causalmr/pkg/score"
	"github.com/rmax-ai/causalmr/pkg/store"
)

const (
	pollRate       = time.Second
	fetchTimeout   = 500 * time.Millisecond
	viewportHeight = 20
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	jobStyle      = lipgloss.NewStyle().Width(38)
	killedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Width(10)
	survivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Width(10)
	mutationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

type tickMsg time.Time

type dataMsg struct {
	jobs    []*store.JobResult
	summary *score.Summary
	err     error
}

type model struct {
	campaign string
	store    reports.ReportStore
	spinner  spinner.Model
	viewport viewport.Model
	jobs     []*store.JobResult
	summary  *score.Summary
	err      error
	ready    bool
}

func initialModel(campaign string, st reports.ReportStore) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		campaign: campaign,
		store:    st,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.store, m.campaign),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.store, m.campaign), tick())

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.jobs = msg.jobs
			m.summary = msg.summary
			m.updateViewportContent()
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	killed := map[store.JobID]bool{}
	if m.summary != nil {
		for _, c := range m.summary.Jobs {
			killed[c.Job] = c.Killed()
		}
	}

	var sb strings.Builder
	for _, j := range m.jobs {
		if j.Kind == store.JobKindBaseline {
			fmt.Fprintf(&sb, "%s %s %d/%d relations failed\n",
				jobStyle.Render(string(j.JobID)),
				subtleStyle.Width(10).Render("baseline"),
				j.FailedCount(), len(j.Relations))
			continue
		}
		status := survivedStyle.Render("survived")
		if killed[j.JobID] {
			status = killedStyle.Render("killed")
		}
		mutation := ""
		if j.Mutation != nil {
			mutation = fmt.Sprintf("%s %s -> %s", j.Mutation.Operator, j.Mutation.Cause, j.Mutation.Effect)
		}
		fmt.Fprintf(&sb, "%s %s %s\n", jobStyle.Render(string(j.JobID)), status, mutationStyle.Render(mutation))
	}
	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Loading %s...", m.spinner.View(), m.campaign)
	}

	var top strings.Builder
	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Campaign "+m.campaign) + "\n\n")
	if m.summary == nil {
		top.WriteString(subtleStyle.Render("No baseline record yet."))
	} else {
		s := m.summary
		fmt.Fprintf(&top, "Mutation score: %s\n", s.Score)
		fmt.Fprintf(&top, "Baseline failures: %d\n", s.BaselineFailed)
		fmt.Fprintf(&top, "TP %d • FP %d • TN %d • FN %d", s.TruePositives, s.FalsePositives, s.TrueNegatives, s.FalseNegatives)
	}
	topPane := paneStyle.Render(top.String())

	header := headerStyle.Render(fmt.Sprintf("%s Jobs", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("%d Jobs", len(m.jobs)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

// Commands

func fetchData(st reports.ReportStore, campaign string) tea.Cmd {
	return func() tea.Msg {
		return load(st, campaign)
	}
}

func load(st reports.ReportStore, campaign string) dataMsg {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	jobs, err := st.ListJobs(ctx, store.JobFilter{Campaign: campaign})
	if err != nil {
		return dataMsg{err: err}
	}
	msg := dataMsg{jobs: jobs}
	baseline, mutants := score.Split(jobs)
	if baseline == nil {
		return msg
	}
	summary, err := score.Score(baseline, mutants)
	if err != nil {
		return dataMsg{jobs: jobs, err: err}
	}
	msg.summary = &summary
	return msg
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
