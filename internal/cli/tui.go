package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/framestamp/pkg/template"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// TemplateListModel - Interactive template selection
// =============================================================================

// TemplateListModel is the bubbletea model for choosing one template of a
// multi-template file.
type TemplateListModel struct {
	Templates []*template.Template
	Cursor    int
	Selected  *template.Template
	Height    int
	Offset    int
}

// NewTemplateListModel creates a picker over templates.
func NewTemplateListModel(templates []*template.Template) TemplateListModel {
	return TemplateListModel{Templates: templates, Height: 15}
}

func (m TemplateListModel) Init() tea.Cmd {
	return nil
}

func (m TemplateListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Templates)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Templates) > 0 {
				m.Selected = m.Templates[m.Cursor]
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m TemplateListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Template"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Templates))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		t := m.Templates[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("(template %d)", i+1)
		}
		desc := t.Description
		if desc == "" {
			desc = "—"
		}
		rows = append(rows, []string{cursor, name, fmt.Sprint(len(t.Shapes)), desc})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Template", "Shapes", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col == 3 {
				return listDimStyle
			}
			return StyleValue
		})

	b.WriteString(tbl.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Templates))))
	return b.String()
}

// pickTemplate runs the picker and returns the chosen template, or nil
// when the user quits.
func pickTemplate(templates []*template.Template) (*template.Template, error) {
	final, err := tea.NewProgram(NewTemplateListModel(templates), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return nil, err
	}
	return final.(TemplateListModel).Selected, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
