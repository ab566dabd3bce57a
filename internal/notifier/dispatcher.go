package notifier

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
)

const DefaultQueueSize = 64

// Dispatcher forwards alert events to notification channels from its own
// goroutine. Handle never blocks, so it can be registered as a dashboard
// listener directly.
type Dispatcher struct {
	notifiers []Notifier
	templates NotificationTemplates
	profiles  map[condition.Kind]condition.Profile
	hostname  string
	logger    *zap.Logger

	userMu sync.RWMutex
	user   string

	events    chan alerter.AlertEvent
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func NewDispatcher(notifiers map[string]Notifier, templates NotificationTemplates, profiles map[condition.Kind]condition.Profile, hostname string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, 0, len(notifiers))
	for name := range notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	ordered := make([]Notifier, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, notifiers[name])
	}

	return &Dispatcher{
		notifiers: ordered,
		templates: templates,
		profiles:  profiles,
		hostname:  hostname,
		logger:    logger,
		events:    make(chan alerter.AlertEvent, DefaultQueueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// SetUser names the patient in subsequent notifications.
func (d *Dispatcher) SetUser(user string) {
	d.userMu.Lock()
	d.user = user
	d.userMu.Unlock()
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() { go d.run() })
}

// Handle queues an event for delivery. Events are dropped when the queue is
// full or the dispatcher has been closed.
func (d *Dispatcher) Handle(ev alerter.AlertEvent) {
	if ev.Type != alerter.EventTypeOpened && ev.Type != alerter.EventTypeResolved {
		return
	}
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("Notification queue full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("type", string(ev.Type)),
		)
	}
}

// Close stops accepting events, delivers what is already queued and waits
// for the delivery goroutine to exit. Start must have been called.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
	<-d.stopped
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.events:
			d.dispatch(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.events:
					d.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(ev alerter.AlertEvent) {
	profile, ok := d.profiles[ev.Kind]
	if !ok {
		d.logger.Warn("No profile for alert kind", zap.String("kind", string(ev.Kind)))
		return
	}
	d.userMu.RLock()
	user := d.user
	d.userMu.RUnlock()

	data, ok := NewNotificationData(ev, profile, user, d.hostname)
	if !ok {
		return
	}
	d.SendAll(data)
}

// SendAll delivers data to every channel, logging failures. It returns the
// number of channels that accepted the message.
func (d *Dispatcher) SendAll(data NotificationData) int {
	sent := 0
	for _, n := range d.notifiers {
		if err := n.Send(data, d.templates); err != nil {
			d.logger.Error("Failed to send notification",
				zap.String("channel", n.Name()),
				zap.String("kind", data.Kind),
				zap.String("state", data.State),
				zap.Error(err),
			)
			continue
		}
		sent++
		d.logger.Debug("Notification sent",
			zap.String("channel", n.Name()),
			zap.String("kind", data.Kind),
			zap.String("state", data.State),
		)
	}
	return sent
}
