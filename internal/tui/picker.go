// Package tui provides the interactive test-case picker.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/kraftcheck/internal/runner"
	"github.com/firefly-engineering/kraftcheck/internal/testcase"
)

// Action is what the user asked for when the picker exited.
type Action int

const (
	ActionNone Action = iota
	ActionRun
	ActionQuit
)

// PickerResult holds the outcome of the picker.
type PickerResult struct {
	Action Action
	// Indices are the chosen test-case indices in file order.
	Indices []int
}

// caseItem implements list.Item for one test case.
type caseItem struct {
	index    int
	tc       *testcase.TestCase
	selected bool
}

func (i caseItem) Title() string {
	mark := "[ ]"
	if i.selected {
		mark = "[x]"
	}
	return fmt.Sprintf("%s #%d %s/%s", mark, i.index, i.tc.Platform.Flag(), i.tc.Arch)
}

func (i caseItem) Description() string {
	parts := []string{fmt.Sprintf("timeout %s", i.tc.Timeout())}
	if i.tc.Memory != "" {
		parts = append(parts, "mem "+i.tc.Memory)
	}
	if len(i.tc.Ports) > 0 {
		ports := make([]string, len(i.tc.Ports))
		for j, p := range i.tc.Ports {
			ports[j] = p.String()
		}
		parts = append(parts, "ports "+strings.Join(ports, ","))
	}
	parts = append(parts, checkSummary(i.tc))
	return strings.Join(parts, " | ")
}

func (i caseItem) FilterValue() string {
	return fmt.Sprintf("%s %s %s", i.tc.Image, i.tc.Platform.Flag(), i.tc.Arch)
}

// checkSummary names the declared check categories.
func checkSummary(tc *testcase.TestCase) string {
	var names []string
	if tc.Stdout != nil {
		names = append(names, "stdout")
	}
	if tc.Stderr != nil {
		names = append(names, "stderr")
	}
	if tc.ReturnCode != nil {
		names = append(names, "exit")
	}
	if len(tc.Ports) > 0 {
		names = append(names, "tcp")
	}
	if len(tc.HTTP) > 0 {
		names = append(names, fmt.Sprintf("http×%d", len(tc.HTTP)))
	}
	if len(names) == 0 {
		return "no checks"
	}
	return strings.Join(names, " ")
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the test-case picker.
type Model struct {
	list     list.Model
	selected map[int]bool
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a picker over the given cases.
func NewPicker(cases []runner.Selected) Model {
	selected := make(map[int]bool)
	l := list.New(buildGroupedItems(cases, selected), newGroupedDelegate(), 80, 20)
	l.Title = "kraftcheck - Select Test Cases"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	m := Model{list: l, selected: selected}
	skipHeaders(&m.list, 1)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case " ", "x":
			if item, ok := m.list.SelectedItem().(caseItem); ok {
				return m, m.toggle(item.index)
			}
			return m, nil

		case "a":
			return m, m.toggleAll()

		case "enter":
			indices := m.chosen()
			if len(indices) == 0 {
				return m, nil
			}
			m.result = PickerResult{Action: ActionRun, Indices: indices}
			m.quitting = true
			return m, tea.Quit

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if m.list.FilterState() == list.Unfiltered {
			skipHeaders(&m.list, navigationDirection(msg))
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// toggle flips the selection of the case with the given index.
func (m *Model) toggle(index int) tea.Cmd {
	m.selected[index] = !m.selected[index]
	return m.refresh()
}

// toggleAll selects every case, or clears the selection when all are
// already selected.
func (m *Model) toggleAll() tea.Cmd {
	all := true
	for _, item := range m.list.Items() {
		if ci, ok := item.(caseItem); ok && !m.selected[ci.index] {
			all = false
			break
		}
	}
	for _, item := range m.list.Items() {
		if ci, ok := item.(caseItem); ok {
			m.selected[ci.index] = !all
		}
	}
	return m.refresh()
}

// refresh re-renders item marks from the selection map.
func (m *Model) refresh() tea.Cmd {
	var cmds []tea.Cmd
	for pos, item := range m.list.Items() {
		ci, ok := item.(caseItem)
		if !ok || ci.selected == m.selected[ci.index] {
			continue
		}
		ci.selected = m.selected[ci.index]
		cmds = append(cmds, m.list.SetItem(pos, ci))
	}
	return tea.Batch(cmds...)
}

// chosen returns the selected indices, or the highlighted case when nothing
// is selected.
func (m Model) chosen() []int {
	var out []int
	for index, ok := range m.selected {
		if ok {
			out = append(out, index)
		}
	}
	if len(out) == 0 {
		if item, ok := m.list.SelectedItem().(caseItem); ok {
			out = append(out, item.index)
		}
	}
	sort.Ints(out)
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[space] Toggle  [a] All  [enter] Run  [/] Filter  [q] Quit")
	return m.list.View() + "\n" + help
}

// Result returns the picker result.
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive picker. An empty case list returns
// ActionQuit without starting a program.
func RunPicker(cases []runner.Selected) (PickerResult, error) {
	if len(cases) == 0 {
		return PickerResult{Action: ActionQuit}, nil
	}

	p := tea.NewProgram(NewPicker(cases), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}
	return finalModel.(Model).Result(), nil
}

// Narrow keeps the selected cases whose index is in indices.
func Narrow(cases []runner.Selected, indices []int) []runner.Selected {
	keep := make(map[int]bool, len(indices))
	for _, i := range indices {
		keep[i] = true
	}
	var out []runner.Selected
	for _, sel := range cases {
		if keep[sel.Index] {
			out = append(out, sel)
		}
	}
	return out
}
