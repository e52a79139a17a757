// Package tui implements the live operation dashboard.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/engine"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

// Model holds the dashboard state. It renders the engine's tracker
// snapshot and refreshes on every coalesced tracker notification.
type Model struct {
	eng      *engine.Engine
	updates  <-chan struct{}
	keymap   KeyMap
	spinner  spinner.Model
	width    int
	height   int
	quitting bool
}

// NewModel creates a dashboard bound to an engine.
func NewModel(eng *engine.Engine) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cli.PrimaryColor)

	return Model{
		eng:     eng,
		updates: eng.Tracker().Subscribe(),
		keymap:  DefaultKeyMap(),
		spinner: sp,
	}
}

// Init starts the spinner and the tracker listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// waitForUpdate blocks on the subscription channel and converts the next
// notification into a message. It is re-issued after every delivery.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return trackerClosedMsg{}
		}
		return trackerUpdateMsg{}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit), key.Matches(msg, m.keymap.ForceQuit):
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case trackerUpdateMsg:
		// The snapshot is read at render time; just keep listening.
		return m, waitForUpdate(m.updates)

	case trackerClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the session header and the tracked operations table.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle("the-ledger-must-settle") + "\n")
	b.WriteString(m.sessionLine() + "\n\n")
	b.WriteString(m.operationsTable())
	b.WriteString("\n" + cli.SubtleStyle.Render("Ctrl+R refresh · q quit"))
	return b.String()
}

func (m Model) sessionLine() string {
	if !m.eng.Connected() {
		return cli.SubtleStyle.Render(cli.WalletIcon + " no wallet session · " + string(m.eng.Network()))
	}

	addrs := m.eng.Addresses()
	primary := ""
	if len(addrs) > 0 {
		primary = shortAddress(addrs[0])
	}
	return cli.InfoStyle.Render(fmt.Sprintf("%s %s · %s", cli.WalletIcon, primary, m.eng.Network()))
}

func (m Model) operationsTable() string {
	snapshot := m.eng.Tracker().Snapshot()
	if len(snapshot) == 0 {
		return cli.SubtleStyle.Render("No operations in flight.")
	}

	keys := make([]model.OperationKey, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	header := cli.TableHeaderStyle.Render(
		fmt.Sprintf("%-16s %-24s %-12s", "OPERATION", "STATUS", "TXID"),
	)

	rows := make([]string, 0, len(keys)+1)
	rows = append(rows, header)
	for _, key := range keys {
		record := snapshot[key]
		status := cli.FormatStatus(record.Status)
		if !record.Status.Terminal() {
			status = m.spinner.View() + " " + status
		}
		rows = append(rows, fmt.Sprintf("%-16s %-24s %-12s", key, status, shortTxID(record.TxID)))
	}

	return strings.Join(rows, "\n")
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}

func shortTxID(txID string) string {
	if txID == "" {
		return "-"
	}
	if len(txID) <= 12 {
		return txID
	}
	return txID[:12] + "…"
}
