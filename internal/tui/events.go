package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/dashboard"
)

const (
	eventBuffer     = 128
	refreshInterval = 500 * time.Millisecond
)

type alertEventsMsg struct {
	events []alerter.AlertEvent
}

type refreshTickMsg struct{}

// subscribe forwards dashboard events into a buffered channel. The listener
// drops events rather than block the scheduler; the refresh tick re-reads
// the snapshot anyway.
func subscribe(dash *dashboard.Dashboard) (<-chan alerter.AlertEvent, func()) {
	ch := make(chan alerter.AlertEvent, eventBuffer)
	unsubscribe := dash.Subscribe(func(ev alerter.AlertEvent) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, unsubscribe
}

func waitForEventsCmd(ch <-chan alerter.AlertEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		events := []alerter.AlertEvent{ev}
		for len(events) < eventBuffer {
			select {
			case next := <-ch:
				events = append(events, next)
			default:
				return alertEventsMsg{events: events}
			}
		}
		return alertEventsMsg{events: events}
	}
}

func refreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}
