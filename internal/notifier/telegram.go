package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mattmezza/biopatch/internal/config"
)

type TelegramNotifier struct {
	name   string
	config config.TelegramChannelConfig
	client *resty.Client
}

func NewTelegramNotifier(name string, cfg config.TelegramChannelConfig) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier '%s' is missing bot_token (from ENV) or chat_id", name)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &TelegramNotifier{name: name, config: cfg, client: client}, nil
}

func (tn *TelegramNotifier) Name() string {
	return tn.name
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the rendered template through the Bot API using MarkdownV2.
func (tn *TelegramNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	rawMessage, err := renderTemplate("telegram_message", templates.forState(data.State), data)
	if err != nil {
		return fmt.Errorf("failed to render Telegram template for '%s': %w", data.Title, err)
	}

	var result telegramResponse
	resp, err := tn.client.R().
		SetBody(map[string]string{
			"chat_id":    tn.config.ChatID,
			"text":       escapeTextForMarkdownV2(rawMessage),
			"parse_mode": "MarkdownV2",
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/bot%s/sendMessage", tn.config.BotToken))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if !result.OK {
		return fmt.Errorf("telegram API rejected message: %s", result.Description)
	}
	return nil
}

const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// escapeTextForMarkdownV2 escapes every character MarkdownV2 treats as markup.
func escapeTextForMarkdownV2(text string) string {
	var result strings.Builder
	for _, r := range text {
		if strings.ContainsRune(markdownV2Special, r) {
			result.WriteByte('\\')
		}
		result.WriteRune(r)
	}
	return result.String()
}
