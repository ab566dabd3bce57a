package notifier

import (
	"bytes"
	"fmt"
	gotexttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/config"
)

const (
	StateOpened   = "OPENED"
	StateResolved = "RESOLVED"
)

// NotificationData is the data passed to templates and, for mqtt, marshalled
// as the message payload.
type NotificationData struct {
	Kind             string    `json:"kind"`
	State            string    `json:"state"` // "OPENED" or "RESOLVED"
	Title            string    `json:"title"`
	User             string    `json:"user,omitempty"`
	Hostname         string    `json:"hostname"`
	FieldLabel       string    `json:"field"`
	Value            int       `json:"value"`
	FormattedValue   string    `json:"formatted_value"`
	CountdownLabel   string    `json:"countdown_label"`
	SecondsRemaining int       `json:"seconds_remaining"`
	Resolution       string    `json:"resolution,omitempty"`
	Time             time.Time `json:"time"`
}

type NotificationTemplates struct {
	OpenedTemplate   string
	ResolvedTemplate string
}

// TemplatesFrom picks the notification templates out of the loaded config.
func TemplatesFrom(cfg config.TemplateConfig) NotificationTemplates {
	return NotificationTemplates{
		OpenedTemplate:   cfg.AlertOpened,
		ResolvedTemplate: cfg.AlertResolved,
	}
}

func (t NotificationTemplates) forState(state string) string {
	if state == StateResolved {
		return t.ResolvedTemplate
	}
	return t.OpenedTemplate
}

// Notifier is the interface for all notification channel types.
type Notifier interface {
	Send(data NotificationData, templates NotificationTemplates) error
	Name() string
}

// NewNotificationData describes an OPENED or RESOLVED alert event. Other
// event types are not notified and yield false.
func NewNotificationData(ev alerter.AlertEvent, profile condition.Profile, user, hostname string) (NotificationData, bool) {
	var state string
	switch ev.Type {
	case alerter.EventTypeOpened:
		state = StateOpened
	case alerter.EventTypeResolved:
		state = StateResolved
	default:
		return NotificationData{}, false
	}
	return NotificationData{
		Kind:             string(ev.Kind),
		State:            state,
		Title:            profile.IssueTitle,
		User:             user,
		Hostname:         hostname,
		FieldLabel:       profile.Field.Label(),
		Value:            ev.Value,
		FormattedValue:   profile.Field.Format(ev.Value),
		CountdownLabel:   profile.CountdownLabel,
		SecondsRemaining: ev.Remaining,
		Resolution:       string(ev.Resolution),
		Time:             ev.Timestamp,
	}, true
}

func renderTemplate(templateName string, templateStr string, data NotificationData) (string, error) {
	tmpl, err := gotexttemplate.New(templateName).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse notification template '%s': %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute notification template '%s': %w", templateName, err)
	}
	return buf.String(), nil
}

// InitializeNotifiers builds one Notifier per configured channel. Channels
// with unusable settings are logged and skipped.
func InitializeNotifiers(channels []config.NotificationChannelConfig, logger *zap.Logger) (map[string]Notifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	notifiers := make(map[string]Notifier)
	for _, ncCfg := range channels {
		if _, exists := notifiers[ncCfg.Name]; exists {
			return nil, fmt.Errorf("duplicate notification channel name defined: %s", ncCfg.Name)
		}

		var (
			instance Notifier
			err      error
		)
		switch ncCfg.Type {
		case "email":
			var emailCfg *config.EmailChannelConfig
			if emailCfg, err = config.GetEmailChannelConfig(ncCfg); err == nil {
				instance, err = NewEmailNotifier(ncCfg.Name, *emailCfg)
			}
		case "telegram":
			var telegramCfg *config.TelegramChannelConfig
			if telegramCfg, err = config.GetTelegramChannelConfig(ncCfg); err == nil {
				instance, err = NewTelegramNotifier(ncCfg.Name, *telegramCfg)
			}
		case "mqtt":
			var mqttCfg *config.MQTTChannelConfig
			if mqttCfg, err = config.GetMQTTChannelConfig(ncCfg); err == nil {
				instance, err = NewMQTTNotifier(ncCfg.Name, *mqttCfg)
			}
		case "stdout":
			instance, err = NewStdoutNotifier(ncCfg.Name)
		default:
			err = fmt.Errorf("unsupported notification channel type '%s'", ncCfg.Type)
		}

		if err != nil {
			logger.Warn("Skipping notification channel",
				zap.String("channel", ncCfg.Name),
				zap.String("type", ncCfg.Type),
				zap.Error(err),
			)
			continue
		}
		notifiers[ncCfg.Name] = instance
		logger.Info("Initialized notifier", zap.String("channel", ncCfg.Name), zap.String("type", ncCfg.Type))
	}
	return notifiers, nil
}
