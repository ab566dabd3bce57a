package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/account"
	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/api"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/config"
	"github.com/mattmezza/biopatch/internal/dashboard"
	"github.com/mattmezza/biopatch/internal/insights"
	"github.com/mattmezza/biopatch/internal/logger"
	"github.com/mattmezza/biopatch/internal/notifier"
	"github.com/mattmezza/biopatch/internal/tui"
)

const serviceName = "biopatch"

var (
	configFile string
	simUser    string
)

func init() {
	flag.StringVar(&configFile, "config", "config.yaml", "Path to the configuration file. Defaults are used when it does not exist.")
	flag.StringVar(&simUser, "user", "Demo", "Patient name used by the simulate subcommand.")
}

// app holds everything a host surface needs.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	clock      clock.Clock
	dash       *dashboard.Dashboard
	accounts   *account.Registry
	insights   *insights.Generator
	notifiers  map[string]notifier.Notifier
	dispatcher *notifier.Dispatcher
}

func newApp(cfg *config.Config, log *zap.Logger, c clock.Clock) (*app, error) {
	notifiers, err := notifier.InitializeNotifiers(cfg.NotificationChannels, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifiers: %w", err)
	}
	log.Info("Notification channels initialized", zap.Int("count", len(notifiers)))

	a := &app{
		cfg:       cfg,
		logger:    log,
		clock:     c,
		dash:      dashboard.New(c, cfg.SessionOptions(), log),
		accounts:  account.NewRegistry(),
		insights:  insights.NewGenerator(c.Now().UnixNano()),
		notifiers: notifiers,
		dispatcher: notifier.NewDispatcher(notifiers, notifier.TemplatesFrom(cfg.Templates),
			cfg.Profiles, cfg.EffectiveHostname, log),
	}
	a.dispatcher.Start()
	a.dash.Subscribe(a.dispatcher.Handle)
	return a, nil
}

func (a *app) close() {
	a.dash.Leave()
	a.dispatcher.Close()
	for _, n := range a.notifiers {
		if mn, ok := n.(*notifier.MQTTNotifier); ok {
			mn.Close()
		}
	}
}

func (a *app) runTUI() error {
	model := tui.New(tui.Options{
		Dashboard: a.dash,
		Accounts:  a.accounts,
		Insights:  a.insights,
		Clock:     a.clock,
		OnEnter:   a.dispatcher.SetUser,
	})
	defer model.Close()

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func (a *app) runServe(ctx context.Context) error {
	server := api.NewServer(a.dash, a.accounts, a.insights, a.clock, a.logger)
	server.OnEnter(a.dispatcher.SetUser)
	return server.ListenAndServe(ctx, a.cfg.HTTP.Addr)
}

// runSimulate enters the dashboard as user, lets every alert run out
// unattended and prints each event and the final timeline to out.
func (a *app) runSimulate(ctx context.Context, user string, out io.Writer) error {
	events := make(chan alerter.AlertEvent, 256)
	unsubscribe := a.dash.Subscribe(func(ev alerter.AlertEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	a.dispatcher.SetUser(user)
	a.logger.Info("Starting simulation",
		zap.String("user", user),
		zap.Duration("expected_length", a.cfg.ScenarioLength()),
	)
	a.dash.Enter(dashboard.EnterOptions{User: user})

	// Every scripted kind resolves exactly once per session.
	for resolved := 0; resolved < len(condition.Order()); {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev.Type {
			case alerter.EventTypeTick:
				continue
			case alerter.EventTypeResolved:
				resolved++
			}
			fmt.Fprintf(out, "%s %-16s %-8s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.Type, describe(ev))
		}
	}

	snap := a.dash.Snapshot()
	fmt.Fprintln(out, "Timeline:")
	for i := len(snap.Log) - 1; i >= 0; i-- {
		fmt.Fprintf(out, "  %s %s\n", snap.Log[i].TimeOfDay(), snap.Log[i].Text)
	}
	a.logger.Info("Simulation complete")
	return nil
}

func describe(ev alerter.AlertEvent) string {
	switch ev.Type {
	case alerter.EventTypeOpened:
		return fmt.Sprintf("value=%d countdown=%d", ev.Value, ev.Remaining)
	case alerter.EventTypeResolved:
		return fmt.Sprintf("value=%d resolution=%s", ev.Value, ev.Resolution)
	}
	return ""
}

// testNotification sends a sample alert to one channel, or to all of them
// when channelName is empty.
func (a *app) testNotification(channelName string) error {
	var available []string
	for _, nc := range a.cfg.NotificationChannels {
		available = append(available, nc.Name)
	}
	if len(available) == 0 {
		return fmt.Errorf("no notification channels configured")
	}

	profile := a.cfg.Profiles[condition.HighGlucose]
	testData, _ := notifier.NewNotificationData(alerter.AlertEvent{
		Kind:      condition.HighGlucose,
		Type:      alerter.EventTypeOpened,
		Remaining: a.cfg.CountdownUnits,
		Value:     profile.Degraded,
		Timestamp: a.clock.Now(),
	}, profile, "Test Patient", a.cfg.EffectiveHostname)
	templates := notifier.TemplatesFrom(a.cfg.Templates)

	if channelName != "" {
		n, ok := a.notifiers[channelName]
		if !ok {
			for _, name := range available {
				if name == channelName {
					return fmt.Errorf("channel '%s' was not successfully initialized", channelName)
				}
			}
			return fmt.Errorf("channel '%s' not found in configuration. Available channels: %s", channelName, strings.Join(available, ", "))
		}
		if err := n.Send(testData, templates); err != nil {
			return fmt.Errorf("failed to send test notification to channel '%s': %w", channelName, err)
		}
		a.logger.Info("Test notification sent", zap.String("channel", channelName))
		return nil
	}

	if len(a.notifiers) == 0 {
		return fmt.Errorf("no notification channels were successfully initialized")
	}
	names := make([]string, 0, len(a.notifiers))
	for name := range a.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	successCount := 0
	for _, name := range names {
		if err := a.notifiers[name].Send(testData, templates); err != nil {
			a.logger.Error("Failed to send test notification", zap.String("channel", name), zap.Error(err))
			continue
		}
		a.logger.Info("Test notification sent", zap.String("channel", name))
		successCount++
	}
	a.logger.Info("Test completed", zap.Int("succeeded", successCount), zap.Int("channels", len(names)))
	if successCount == 0 {
		return fmt.Errorf("all notification channels failed")
	}
	return nil
}

// loggerFor keeps the terminal clean in tui mode unless logs go to a file.
func loggerFor(command string, cfg *config.Config) (*zap.Logger, error) {
	output := cfg.Log.Output
	if command == "tui" && (output == "" || output == "stdout" || output == "stderr") {
		return zap.NewNop(), nil
	}
	return logger.NewLogger(cfg.Log.Level, cfg.Log.Format, output, serviceName)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	command := "tui"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "tui", "serve", "simulate", "test-notification":
	default:
		return fmt.Errorf("unknown command '%s', use tui, serve, simulate or test-notification", command)
	}

	cfg, loaded, err := config.LoadOrDefault(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configFile, err)
	}
	log, err := loggerFor(command, cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	if loaded {
		log.Info("Configuration loaded", zap.String("path", configFile), zap.Duration("time_unit", cfg.TimeUnit))
	} else {
		log.Info("No configuration file, using defaults", zap.String("path", configFile))
	}

	a, err := newApp(cfg, log, clock.Real{})
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "serve":
		return a.runServe(ctx)
	case "simulate":
		return a.runSimulate(ctx, simUser, out)
	case "test-notification":
		var channelName string
		if len(args) > 1 {
			channelName = args[1]
		}
		return a.testNotification(channelName)
	}
	return a.runTUI()
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "biopatch: %v\n", err)
		stop()
		os.Exit(1)
	}
}
