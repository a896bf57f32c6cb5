// Package tui is the interactive view. It forwards key presses to the record
// manager and redraws from the manager's list whenever the bus reports a change.
package tui

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tasklist/internal/events"
	"github.com/idilsaglam/tasklist/internal/manager"
	"github.com/idilsaglam/tasklist/internal/model"
	"github.com/idilsaglam/tasklist/internal/validate"
)

// listItem adapts a record to bubbles/list.Item
type listItem struct {
	rec model.Record
}

func (i listItem) text() string { return html.UnescapeString(i.rec.Text) }

func (i listItem) Title() string       { return i.text() }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.text() }

// status is shared with the bus subscription, which runs inside Update.
type status struct {
	msg   string
	isErr bool
	dirty bool
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	mgr     *manager.Manager
	st      *status
	durable bool

	list list.Model

	// Inline add / edit share one text input.
	adding   bool
	editing  bool
	editID   string
	ti       textinput.Model
	inputErr string

	width, height int
}

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)
	box := mutedStyle.Render(boxUnchecked)
	text := it.text()
	if it.rec.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+box+" "+text)
}

// New builds the model and subscribes it to mgr's bus. Call the returned
// func to unsubscribe. When durable is false the view keeps a notice that
// changes last only for this session.
func New(ctx context.Context, mgr *manager.Manager, durable bool) (Model, func()) {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("task", "tasks")

	addBind := key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind := key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	toggleBind := key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	delBind := key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	purgeBind := key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete done"))
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, delBind} }
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{addBind, editBind, toggleBind, delBind, purgeBind}
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 400

	st := &status{}
	sub := mgr.Bus().Subscribe(events.Any, func(e events.Event) {
		st.msg = events.Describe(e)
		st.isErr = isFailure(e)
		st.dirty = true
	})

	m := Model{ctx: ctx, mgr: mgr, st: st, durable: durable, list: l, ti: ti, width: 80, height: 24}
	m.refresh()
	return m, sub.Unsubscribe
}

func isFailure(e events.Event) bool {
	switch e.(type) {
	case events.Failed, events.ValidationFailed, events.NotFound,
		events.StorageFailed, events.StorageUnavailable:
		return true
	}
	return false
}

const volatileNotice = "not saved: changes last only for this session"

// Run starts the interactive list on the terminal.
func Run(ctx context.Context, mgr *manager.Manager, durable bool) error {
	m, unsubscribe := New(ctx, mgr, durable)
	defer unsubscribe()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// refresh rebuilds the list from the manager.
func (m *Model) refresh() {
	recs := m.mgr.GetAll()
	items := make([]list.Item, 0, len(recs))
	for _, r := range recs {
		items = append(items, listItem{rec: r})
	}
	m.list.SetItems(items)

	s := m.mgr.Stats()
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Tasks"),
		successStyle.Render("✔"), s.Completed,
		pendingStyle.Render("•"), s.Pending,
		accentStyle.Render("Total"), s.Total,
	)
	m.st.dirty = false
}

func (m Model) selected() (model.Record, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it.rec, ok
}

// Init and Update and View implement Bubble Tea's Model.
func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	if next.st.dirty {
		next.refresh()
	}
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = ws.Width, ws.Height
	}
	if m.adding || m.editing {
		return m.updateInput(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch km.String() {
	case "q", "esc":
		if m.list.FilterState() == list.FilterApplied {
			m.list.ResetFilter()
			return m, nil
		}
		return m, tea.Quit
	case " ":
		if rec, ok := m.selected(); ok {
			_, _ = m.mgr.Toggle(m.ctx, rec.ID)
		}
		return m, nil
	case "d":
		if rec, ok := m.selected(); ok {
			_ = m.mgr.Delete(m.ctx, rec.ID)
		}
		return m, nil
	case "x":
		done := m.mgr.GetCompleted()
		ids := make([]string, 0, len(done))
		for _, r := range done {
			ids = append(ids, r.ID)
		}
		_, _ = m.mgr.Batch(m.ctx, ids, model.ActionDelete)
		return m, nil
	case "a":
		m.adding = true
		m.inputErr = ""
		m.ti.SetValue("")
		m.ti.Placeholder = "New task..."
		return m, m.ti.Focus()
	case "e":
		if rec, ok := m.selected(); ok {
			m.editing = true
			m.editID = rec.ID
			m.inputErr = ""
			m.ti.SetValue(html.UnescapeString(rec.Text))
			m.ti.CursorEnd()
			m.ti.Placeholder = "Edit task..."
			return m, m.ti.Focus()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			var err error
			if m.adding {
				_, err = m.mgr.Add(m.ctx, m.ti.Value())
			} else {
				_, err = m.mgr.Update(m.ctx, m.editID, map[string]any{"text": m.ti.Value()})
			}
			if err != nil {
				m.inputErr = inputError(err)
				return m, nil
			}
			m.closeInput()
			if m.adding {
				m.list.Select(0)
			}
			m.adding, m.editing = false, false
			return m, nil
		case "esc":
			m.closeInput()
			m.adding, m.editing = false, false
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.ti.SetValue("")
	m.ti.Blur()
	m.inputErr = ""
	m.editID = ""
}

func inputError(err error) string {
	var verr *validate.Error
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return verr.Fields[0].Message
	}
	return err.Error()
}

func (m Model) View() string {
	listHeight := m.height - 5
	if !m.durable {
		listHeight--
	}
	if m.adding || m.editing {
		listHeight -= 3
	}
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(m.width-4, listHeight)

	content := m.list.View()
	if m.adding || m.editing {
		title := "Add task"
		if m.editing {
			title = "Edit task"
		}
		if m.inputErr != "" {
			title += " - " + errorStyle.Render(m.inputErr)
		}
		bar := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
		content += "\n" + bar.Render(title+"\n"+m.ti.View())
	}
	if m.st.msg != "" {
		line := mutedStyle.Render(m.st.msg)
		if m.st.isErr {
			line = errorStyle.Render(m.st.msg)
		}
		content += "\n" + line
	}
	if !m.durable {
		content += "\n" + pendingStyle.Render(volatileNotice)
	}
	return frameStyle.Render(strings.TrimRight(content, "\n"))
}
