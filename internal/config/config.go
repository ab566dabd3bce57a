package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/session"
	"github.com/mattmezza/biopatch/internal/util"
	"github.com/mattmezza/biopatch/internal/vitals"
)

const (
	DefaultTimeUnit       = "1s"
	DefaultArmDelayUnits  = 15
	DefaultCountdownUnits = 10
	DefaultHTTPAddr       = ":8080"
	DefaultMQTTTopic      = "biopatch/alerts"

	DefaultOpenedTemplate   = `ALERT: {{.Title}} for {{.User}} on {{.Hostname}}. {{.FieldLabel}} now {{.FormattedValue}}. {{.CountdownLabel}} in {{.SecondsRemaining}}s. Time: {{.Time.Format "15:04:05"}}`
	DefaultResolvedTemplate = `RESOLVED: {{.Title}} for {{.User}} on {{.Hostname}} ({{.Resolution}}). {{.FieldLabel}} now {{.FormattedValue}}. Time: {{.Time.Format "15:04:05"}}`

	envVarPrefix = "BIOPATCH_"
)

type Config struct {
	TimeUnitStr          string                      `yaml:"time_unit"` // e.g. "1s", "500ms"
	ArmDelayUnits        int                         `yaml:"arm_delay_units"`
	CountdownUnits       int                         `yaml:"countdown_units"`
	EventLogCapacity     int                         `yaml:"event_log_capacity"`
	Baseline             vitals.Record               `yaml:"baseline"` // Unset fields keep the reference baseline
	Conditions           []ConditionConfig           `yaml:"conditions"`
	HostnameOverride     string                      `yaml:"hostname"`
	Log                  LogConfig                   `yaml:"log"`
	HTTP                 HTTPConfig                  `yaml:"http"`
	NotificationChannels []NotificationChannelConfig `yaml:"notification_channels"`
	Templates            TemplateConfig              `yaml:"templates"`

	TimeUnit          time.Duration                        `yaml:"-"` // Parsed
	EffectiveHostname string                               `yaml:"-"` // Derived
	Profiles          map[condition.Kind]condition.Profile `yaml:"-"` // Defaults with overrides applied
}

// ConditionConfig overrides the degraded and normal values of one condition.
type ConditionConfig struct {
	Kind     string `yaml:"kind"`
	Degraded *int   `yaml:"degraded"`
	Normal   *int   `yaml:"normal"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stdout, stderr or a file path
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type NotificationChannelConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"` // "stdout", "email", "telegram", "mqtt"
	Config map[string]interface{} `yaml:"config"`
}

type EmailChannelConfig struct {
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUsername string   `yaml:"smtp_username"`
	SMTPPassword string   `yaml:"smtp_password"` // From ENV
	SMTPFrom     string   `yaml:"smtp_from"`
	SMTPTo       []string `yaml:"smtp_to"`
	SMTPUseTLS   bool     `yaml:"smtp_use_tls"`
}

type TelegramChannelConfig struct {
	BotToken string `yaml:"bot_token"` // From ENV
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

type MQTTChannelConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // From ENV
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

type TemplateConfig struct {
	AlertOpened   string `yaml:"alert_opened"`
	AlertResolved string `yaml:"alert_resolved"`
}

// LoadConfig reads and validates the YAML file at filePath.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	cfg := Config{Baseline: vitals.Baseline()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML from %s: %w", filePath, err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads filePath, falling back to Default when it does not exist.
func LoadOrDefault(filePath string) (*Config, bool, error) {
	cfg, err := LoadConfig(filePath)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default()
		return cfg, false, err
	}
	return nil, false, err
}

// Default returns the reference scenario configuration.
func Default() (*Config, error) {
	cfg := Config{Baseline: vitals.Baseline()}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	var err error

	if strings.TrimSpace(cfg.TimeUnitStr) == "" {
		cfg.TimeUnitStr = DefaultTimeUnit
	}
	cfg.TimeUnit, err = util.ParseDurationString(cfg.TimeUnitStr)
	if err != nil {
		return fmt.Errorf("invalid time_unit: %w", err)
	}
	if cfg.TimeUnit <= 0 {
		return fmt.Errorf("time_unit must be positive, got '%s'", cfg.TimeUnitStr)
	}
	if cfg.ArmDelayUnits <= 0 {
		cfg.ArmDelayUnits = DefaultArmDelayUnits
	}
	if cfg.CountdownUnits <= 0 {
		cfg.CountdownUnits = DefaultCountdownUnits
	}
	if cfg.EventLogCapacity <= 0 {
		cfg.EventLogCapacity = history.DefaultCapacity
	}

	if strings.TrimSpace(cfg.HostnameOverride) != "" {
		cfg.EffectiveHostname = cfg.HostnameOverride
	} else {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get OS hostname: %w", err)
		}
		cfg.EffectiveHostname = hostname
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("log format '%s' is invalid, use 'console' or 'json'", cfg.Log.Format)
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}

	cfg.Profiles = condition.DefaultProfiles()
	for i, cc := range cfg.Conditions {
		kind, err := condition.ParseKind(cc.Kind)
		if err != nil {
			return fmt.Errorf("condition at index %d: %w", i, err)
		}
		profile := cfg.Profiles[kind]
		if cc.Degraded != nil {
			profile.Degraded = *cc.Degraded
		}
		if cc.Normal != nil {
			profile.Normal = *cc.Normal
		}
		cfg.Profiles[kind] = profile
	}

	seen := make(map[string]bool)
	for i := range cfg.NotificationChannels {
		nc := &cfg.NotificationChannels[i]
		if nc.Name == "" {
			return fmt.Errorf("notification channel at index %d missing name", i)
		}
		if seen[nc.Name] {
			return fmt.Errorf("duplicate notification channel name defined: %s", nc.Name)
		}
		seen[nc.Name] = true

		// Secrets come from BIOPATCH_<FIELD>_<CHANNEL>, e.g. BIOPATCH_TELEGRAM_TOKEN_OPS_TELEGRAM.
		channelNameUpper := strings.ToUpper(strings.ReplaceAll(nc.Name, "-", "_"))
		switch nc.Type {
		case "email":
			nc.applyEnv(fmt.Sprintf("%sSMTP_PASSWORD_%s", envVarPrefix, channelNameUpper), "smtp_password")
		case "telegram":
			nc.applyEnv(fmt.Sprintf("%sTELEGRAM_TOKEN_%s", envVarPrefix, channelNameUpper), "bot_token")
		case "mqtt":
			nc.applyEnv(fmt.Sprintf("%sMQTT_PASSWORD_%s", envVarPrefix, channelNameUpper), "password")
		case "stdout":
		default:
			return fmt.Errorf("notification channel '%s' has unknown type '%s'", nc.Name, nc.Type)
		}
	}

	if cfg.Templates.AlertOpened == "" {
		cfg.Templates.AlertOpened = DefaultOpenedTemplate
	}
	if cfg.Templates.AlertResolved == "" {
		cfg.Templates.AlertResolved = DefaultResolvedTemplate
	}
	return nil
}

func (nc *NotificationChannelConfig) applyEnv(envKey, field string) {
	value := os.Getenv(envKey)
	if value == "" {
		return
	}
	if nc.Config == nil {
		nc.Config = make(map[string]interface{})
	}
	nc.Config[field] = value
}

// SessionOptions maps the scenario settings onto a dashboard session template.
func (cfg *Config) SessionOptions() session.Options {
	return session.Options{
		Profiles:       cfg.Profiles,
		Order:          condition.Order(),
		Baseline:       cfg.Baseline,
		LogCapacity:    cfg.EventLogCapacity,
		Unit:           cfg.TimeUnit,
		ArmDelayUnits:  cfg.ArmDelayUnits,
		CountdownUnits: cfg.CountdownUnits,
	}
}

// ScenarioLength is how long an unattended run takes from entry to the last
// automatic treatment.
func (cfg *Config) ScenarioLength() time.Duration {
	n := len(condition.Order())
	return time.Duration(n*cfg.ArmDelayUnits+cfg.CountdownUnits) * cfg.TimeUnit
}

func GetEmailChannelConfig(nc NotificationChannelConfig) (*EmailChannelConfig, error) {
	if nc.Type != "email" {
		return nil, fmt.Errorf("not an email channel")
	}
	var emailCfg EmailChannelConfig
	var ok bool
	if emailCfg.SMTPHost, ok = nc.Config["smtp_host"].(string); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_host missing or not a string", nc.Name)
	}
	if emailCfg.SMTPPort, ok = nc.Config["smtp_port"].(int); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_port missing or not an int", nc.Name)
	}
	if emailCfg.SMTPFrom, ok = nc.Config["smtp_from"].(string); !ok {
		return nil, fmt.Errorf("channel '%s': smtp_from missing or not a string", nc.Name)
	}
	emailCfg.SMTPUsername, _ = nc.Config["smtp_username"].(string)
	emailCfg.SMTPPassword, _ = nc.Config["smtp_password"].(string)
	emailCfg.SMTPUseTLS, _ = nc.Config["smtp_use_tls"].(bool)

	toVal, ok := nc.Config["smtp_to"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("channel '%s': smtp_to missing or not a list of strings", nc.Name)
	}
	for _, t := range toVal {
		if tStr, ok := t.(string); ok {
			emailCfg.SMTPTo = append(emailCfg.SMTPTo, tStr)
		}
	}

	if emailCfg.SMTPHost == "" || emailCfg.SMTPPort == 0 || emailCfg.SMTPFrom == "" || len(emailCfg.SMTPTo) == 0 {
		return nil, fmt.Errorf("channel '%s': one or more required email config fields are missing (host, port, from, to)", nc.Name)
	}
	return &emailCfg, nil
}

func GetTelegramChannelConfig(nc NotificationChannelConfig) (*TelegramChannelConfig, error) {
	if nc.Type != "telegram" {
		return nil, fmt.Errorf("not a telegram channel")
	}
	var telegramCfg TelegramChannelConfig
	telegramCfg.BotToken, _ = nc.Config["bot_token"].(string)
	telegramCfg.APIURL, _ = nc.Config["api_url"].(string)
	chatID, ok := nc.Config["chat_id"].(string)
	if !ok {
		return nil, fmt.Errorf("channel '%s': chat_id missing or not a string", nc.Name)
	}
	telegramCfg.ChatID = chatID

	if telegramCfg.BotToken == "" || telegramCfg.ChatID == "" {
		return nil, fmt.Errorf("channel '%s': bot_token (from ENV) or chat_id are missing", nc.Name)
	}
	if telegramCfg.APIURL == "" {
		telegramCfg.APIURL = "https://api.telegram.org"
	}
	return &telegramCfg, nil
}

func GetMQTTChannelConfig(nc NotificationChannelConfig) (*MQTTChannelConfig, error) {
	if nc.Type != "mqtt" {
		return nil, fmt.Errorf("not an mqtt channel")
	}
	var mqttCfg MQTTChannelConfig
	broker, ok := nc.Config["broker"].(string)
	if !ok || broker == "" {
		return nil, fmt.Errorf("channel '%s': broker missing or not a string", nc.Name)
	}
	mqttCfg.Broker = broker
	mqttCfg.ClientID, _ = nc.Config["client_id"].(string)
	mqttCfg.Username, _ = nc.Config["username"].(string)
	mqttCfg.Password, _ = nc.Config["password"].(string)
	mqttCfg.Topic, _ = nc.Config["topic"].(string)
	mqttCfg.Retained, _ = nc.Config["retained"].(bool)
	if qos, ok := nc.Config["qos"].(int); ok {
		if qos < 0 || qos > 2 {
			return nil, fmt.Errorf("channel '%s': qos must be 0, 1 or 2", nc.Name)
		}
		mqttCfg.QoS = byte(qos)
	}

	if mqttCfg.ClientID == "" {
		mqttCfg.ClientID = "biopatch-" + nc.Name
	}
	if mqttCfg.Topic == "" {
		mqttCfg.Topic = DefaultMQTTTopic
	}
	return &mqttCfg, nil
}
