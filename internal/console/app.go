// Package console is the terminal monitoring console: a live view of the
// event feed driven by a feedclient session.
package console

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/feedclient"
)

// maxRows bounds the number of events kept on screen.
const maxRows = 200

type row struct {
	at  time.Time
	env feed.Envelope
}

type App struct {
	tapp    *tview.Application
	session *feedclient.Session
	table   *tview.Table
	header  *tview.TextView
	footer  *tview.TextView
	rows    []row
	stop    chan struct{}
	logger  *slog.Logger
}

func NewApp(feedURL, token string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		session: feedclient.New(feedURL, feedclient.Options{Token: token, Logger: logger}),
		stop:    make(chan struct{}),
		logger:  logger,
	}

	a.tapp = tview.NewApplication()

	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.header.SetBackgroundColor(ColorBackgroundPanel)

	a.table = tview.NewTable().
		SetSelectable(true, false).
		SetSelectedStyle(tcell.StyleDefault.
			Background(ColorSelected).
			Foreground(ColorSelectedText))
	a.table.SetBackgroundColor(ColorBackground)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.footer.SetBackgroundColor(ColorBackgroundPanel)
	a.footer.SetText("[green]↑↓[-] navigate  [green]q[-] quit")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.table, 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.tapp.SetRoot(root, true)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			a.tapp.Stop()
			return nil
		}
		return event
	})

	a.renderHeader()
	return a
}

// Run blocks until the operator quits. The feed session is always stopped
// on the way out, so no reconnect timer survives the console.
func (a *App) Run() error {
	a.session.Start()
	go a.consume()
	go a.tick()
	defer close(a.stop)
	defer a.session.Stop()
	return a.tapp.Run()
}

// consume drains the session's event stream into the table.
func (a *App) consume() {
	for env := range a.session.Events() {
		e := env
		a.tapp.QueueUpdateDraw(func() {
			a.rows = append([]row{{at: time.Now(), env: e}}, a.rows...)
			if len(a.rows) > maxRows {
				a.rows = a.rows[:maxRows]
			}
			a.renderTable()
		})
	}
}

// tick refreshes the connectivity indicator and relative timestamps.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.tapp.QueueUpdateDraw(func() {
				a.renderHeader()
				a.renderTable()
			})
		}
	}
}

func (a *App) renderHeader() {
	status := "[red]● reconnecting[-]"
	if a.session.Connected() {
		status = "[green]● live[-]"
	}
	a.header.SetText(fmt.Sprintf(" tourist-safety console  %s  events: %d", status, len(a.rows)))
}

func (a *App) renderTable() {
	a.table.Clear()
	for i, r := range a.rows {
		age := humanize.Time(r.at)
		color := KindColor(r.env.Kind)
		a.table.SetCell(i, 0, tview.NewTableCell(age).
			SetTextColor(ColorTextMuted).SetExpansion(0))
		a.table.SetCell(i, 1, tview.NewTableCell(string(r.env.Kind)).
			SetTextColor(color).SetExpansion(0))
		a.table.SetCell(i, 2, tview.NewTableCell(summarize(r.env)).
			SetTextColor(ColorText).SetExpansion(1))
	}
}

// summarize pulls the fields worth a glance out of an opaque payload.
func summarize(env feed.Envelope) string {
	var m map[string]any
	if err := json.Unmarshal(env.Payload, &m); err != nil {
		return ""
	}
	parts := ""
	for _, key := range []string{"name", "touristId", "type", "severity", "status", "kind", "firNumber", "message", "detail"} {
		v, ok := m[key]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr || s == "" {
			continue
		}
		if parts != "" {
			parts += " · "
		}
		parts += s
	}
	return parts
}
