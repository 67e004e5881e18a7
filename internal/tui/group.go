package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/kraftcheck/internal/runner"
)

// headerItem is a non-selectable image separator in the picker list.
type headerItem struct {
	label string
	count int
}

func (h headerItem) FilterValue() string { return "" }
func (h headerItem) Title() string       { return h.label }
func (h headerItem) Description() string { return "" }

// buildGroupedItems groups cases by image, in order of first appearance,
// with a headerItem before each group.
func buildGroupedItems(cases []runner.Selected, selected map[int]bool) []list.Item {
	if len(cases) == 0 {
		return nil
	}

	type group struct {
		image string
		cases []runner.Selected
	}
	var groups []*group
	byImage := make(map[string]*group)
	for _, sel := range cases {
		g, ok := byImage[sel.Case.Image]
		if !ok {
			g = &group{image: sel.Case.Image}
			byImage[sel.Case.Image] = g
			groups = append(groups, g)
		}
		g.cases = append(g.cases, sel)
	}

	var items []list.Item
	for _, g := range groups {
		items = append(items, headerItem{label: g.image, count: len(g.cases)})
		for _, sel := range g.cases {
			items = append(items, caseItem{index: sel.Index, tc: sel.Case, selected: selected[sel.Index]})
		}
	}
	return items
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("241")).
	PaddingLeft(2)

// groupedDelegate renders both headerItem and caseItem.
type groupedDelegate struct {
	inner list.DefaultDelegate
}

func newGroupedDelegate() groupedDelegate {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return groupedDelegate{inner: delegate}
}

func (d groupedDelegate) Height() int                             { return d.inner.Height() }
func (d groupedDelegate) Spacing() int                            { return d.inner.Spacing() }
func (d groupedDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d groupedDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	h, ok := item.(headerItem)
	if !ok {
		d.inner.Render(w, m, index, item)
		return
	}
	noun := "cases"
	if h.count == 1 {
		noun = "case"
	}
	fmt.Fprint(w, headerStyle.Render(fmt.Sprintf("%s · %d %s", h.label, h.count, noun)))
}

// skipHeaders moves the cursor off a headerItem to the nearest case,
// searching in direction first (1 down, -1 up) and wrapping around.
func skipHeaders(l *list.Model, direction int) {
	items := l.Items()
	n := len(items)
	if n == 0 || !isHeader(items[l.Index()]) {
		return
	}
	for step := 1; step < n; step++ {
		if i := (l.Index() + step*direction + n) % n; !isHeader(items[i]) {
			l.Select(i)
			return
		}
	}
}

func isHeader(item list.Item) bool {
	_, ok := item.(headerItem)
	return ok
}

// navigationDirection returns -1 for up/k keys and 1 otherwise.
func navigationDirection(msg tea.KeyMsg) int {
	switch msg.String() {
	case "up", "k":
		return -1
	}
	return 1
}
