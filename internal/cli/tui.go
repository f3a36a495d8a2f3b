package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/ossinventory/pkg/inventory"
)

var (
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	detailKeyStyle = lipgloss.NewStyle().Foreground(colorGray).Width(10)
)

// inventoryModel is the bubbletea model for browsing inventory records. The
// upper pane lists records, the lower pane shows every field of the record
// under the cursor.
type inventoryModel struct {
	records []inventory.Record
	cursor  int
	offset  int
	height  int
	filter  string
	typing  bool
	visible []int // indexes into records matching filter
}

func newInventoryModel(records []inventory.Record) inventoryModel {
	m := inventoryModel{records: records, height: 12}
	m.applyFilter()
	return m
}

func (m inventoryModel) Init() tea.Cmd {
	return nil
}

func (m inventoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.typing {
			return m.updateFilter(msg), nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "/":
			m.typing = true
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "home", "g":
			m.cursor, m.offset = 0, 0
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-16, 5)
	}
	return m, nil
}

func (m inventoryModel) updateFilter(msg tea.KeyMsg) inventoryModel {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.typing = false
	case tea.KeyBackspace:
		if m.filter != "" {
			m.filter = m.filter[:len(m.filter)-1]
		}
	case tea.KeyRunes:
		m.filter += string(msg.Runes)
	}
	m.applyFilter()
	return m
}

func (m *inventoryModel) applyFilter() {
	m.visible = m.visible[:0]
	needle := strings.ToLower(m.filter)
	for i, r := range m.records {
		if needle == "" || strings.Contains(strings.ToLower(r.Package), needle) || strings.Contains(strings.ToLower(r.License), needle) {
			m.visible = append(m.visible, i)
		}
	}
	m.cursor, m.offset = 0, 0
}

// selected returns the record under the cursor.
func (m inventoryModel) selected() (inventory.Record, bool) {
	if len(m.visible) == 0 {
		return inventory.Record{}, false
	}
	return m.records[m.visible[m.cursor]], true
}

func (m inventoryModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Inventory"))
	b.WriteString("\n")
	help := "↑/↓ navigate  / filter  q quit"
	if m.typing {
		help = "type to filter  ⏎ done"
	}
	b.WriteString(listDimStyle.Render(help))
	if m.filter != "" || m.typing {
		b.WriteString("  " + StyleValue.Render("filter: "+m.filter))
	}
	b.WriteString("\n\n")

	end := min(m.offset+m.height, len(m.visible))
	rows := make([][]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		r := m.records[m.visible[i]]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		license := r.License
		if license == "" {
			license = "—"
		}
		rows = append(rows, []string{cursor, r.Package, r.Version, license})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("", "Package", "Version", "License").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if m.offset+row == m.cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	if r, ok := m.selected(); ok {
		b.WriteString("\n")
		for _, kv := range [][2]string{
			{"package", r.Package},
			{"version", r.Version},
			{"license", r.License},
			{"homepage", r.Homepage},
			{"source", r.Source},
			{"meta", r.Meta},
		} {
			b.WriteString(detailKeyStyle.Render(kv[0]) + " " + StyleValue.Render(kv[1]) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.cursor+1, len(m.visible)), len(m.visible))))
	return b.String()
}
