// Package tui holds the interactive Bubble Tea views of the CLI.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth    = 100
	defaultHeight   = 20
	defaultInterval = 2 * time.Second

	keyQuit       = "q"
	keyCtrlC      = "ctrl+c"
	keyEsc        = "esc"
	keyRefresh    = "r"
	keyInvalidate = "d"
	keySweep      = "s"
)

// Row is one cache entry as shown in the keys view.
type Row struct {
	Key   string
	State string
	Age   string
}

// Source supplies and mutates the entries the view shows.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
	Invalidate(ctx context.Context, key string) error
	Sweep(ctx context.Context) (int, error)
}

type rowsLoadedMsg struct {
	rows []Row
	err  error
}

type tickMsg time.Time

type actionDoneMsg struct {
	status string
	err    error
}

// KeysModel is a live list of cache keys that refreshes on a timer.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type KeysModel struct {
	ctx      context.Context
	src      Source
	interval time.Duration

	table  table.Model
	rows   []Row
	status string
	err    error

	width  int
	height int
}

// NewKeysModel returns a model showing src, refreshed every interval
// (defaultInterval when interval <= 0).
func NewKeysModel(ctx context.Context, src Source, interval time.Duration) KeysModel {
	if interval <= 0 {
		interval = defaultInterval
	}
	m := KeysModel{
		ctx:      ctx,
		src:      src,
		interval: interval,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.table = table.New(
		table.WithColumns(m.columns()),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	return m
}

func (m *KeysModel) columns() []table.Column {
	keyWidth := max(m.width-30, 20) //nolint:mnd // Room for state and age columns.
	return []table.Column{
		{Title: "Key", Width: keyWidth},
		{Title: "State", Width: 8}, //nolint:mnd // Column width.
		{Title: "Age", Width: 18},  //nolint:mnd // Column width.
	}
}

// tableHeight is the table's total height, header row included.
func (m *KeysModel) tableHeight() int {
	return max(m.height-5, 3) //nolint:mnd // Title, status and help lines.
}

// Init loads the first rows and starts the refresh timer.
func (m KeysModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m KeysModel) load() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.src.Rows(m.ctx)
		return rowsLoadedMsg{rows: rows, err: err}
	}
}

func (m KeysModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages (Bubble Tea interface).
func (m KeysModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(m.columns())
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())

	case rowsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.rows = msg.rows
			m.table.SetRows(toTableRows(msg.rows))
		}
		return m, nil

	case actionDoneMsg:
		m.status = msg.status
		m.err = msg.err
		return m, m.load()

	case tea.KeyMsg:
		return m.handleKeypress(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m KeysModel) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyCtrlC, keyEsc:
		return m, tea.Quit
	case keyRefresh:
		return m, m.load()
	case keyInvalidate:
		selected := m.table.SelectedRow()
		if len(selected) == 0 {
			return m, nil
		}
		key := selected[0]
		return m, func() tea.Msg {
			if err := m.src.Invalidate(m.ctx, key); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: "invalidated " + key}
		}
	case keySweep:
		return m, func() tea.Msg {
			n, err := m.src.Sweep(m.ctx)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: fmt.Sprintf("swept %d stale entries", n)}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func toTableRows(rows []Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row{r.Key, r.State, r.Age}
	}
	return out
}

// View renders the model (Bubble Tea interface).
func (m KeysModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("fetchcache: %d entries", len(m.rows))))
	b.WriteString("\n")
	if len(m.rows) == 0 {
		b.WriteString(muted.Render("No cached entries"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	b.WriteString(muted.Render("↑/↓ move • d invalidate • s sweep • r refresh • q quit"))
	return b.String()
}
