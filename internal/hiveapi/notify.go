package hiveapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"beehive/internal/telegram"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

// Notification is the payload pushed to a member's redis channel and
// relayed to connected websockets.
type Notification struct {
	Type   string      `json:"type"` // 'reward_created', 'reward_unlocked', 'reward_rolled_up', 'member_activated'
	Wallet string      `json:"wallet"`
	Data   interface{} `json:"data,omitempty"`
}

const (
	NotifyRewardCreated   = "reward_created"
	NotifyRewardUnlocked  = "reward_unlocked"
	NotifyRewardRolledUp  = "reward_rolled_up"
	NotifyMemberActivated = "member_activated"
)

func NotificationChannel(wallet string) string {
	return fmt.Sprintf("notification_ch@%s", NormalizeWallet(wallet))
}

func PublishNotification(rdb *redis.Client, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return rdb.Publish(context.Background(), NotificationChannel(n.Wallet), payload).Err()
}

// NotifyLevelChange fans out everything one committed activation
// produced: per-recipient reward pushes plus the signup ops alert.
func NotifyLevelChange(rdb *redis.Client, result *LevelChangeResult) {
	if result == nil || result.Replayed {
		return
	}
	for i := range result.Rewards {
		r := &result.Rewards[i]
		_ = PublishNotification(rdb, Notification{
			Type:   NotifyRewardCreated,
			Wallet: r.CurrentRecipientWallet,
			Data:   r,
		})
	}
	for i := range result.Unlocked {
		r := &result.Unlocked[i]
		_ = PublishNotification(rdb, Notification{
			Type:   NotifyRewardUnlocked,
			Wallet: r.CurrentRecipientWallet,
			Data:   r,
		})
	}
	if result.FirstActivation {
		msg := fmt.Sprintf(
			"New member activated\n[%s](https://bscscan.com/address/%s)\nLevel: %s",
			EscapeMarkdownV2(result.Wallet),
			result.Wallet,
			EscapeMarkdownV2(strconv.Itoa(result.NewLevel)),
		)
		if err := SendTelegramMessage(msg, "signup"); err != nil {
			fmt.Println(err)
		}
	}
}

// MatrixFullAlert formats the ops alert for a placement that ran out
// of free slots within the configured depth.
func MatrixFullAlert(wallet string, level int) string {
	return fmt.Sprintf(
		"Matrix full: level\\-up rejected\n[%s](https://bscscan.com/address/%s)\nLevel: %s",
		EscapeMarkdownV2(wallet),
		wallet,
		EscapeMarkdownV2(strconv.Itoa(level)),
	)
}

func EscapeMarkdownV2(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	for _, char := range specialChars {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

func SendTelegramMessage(msg string, chat string) error {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		err := errors.New("TELEGRAM_TOKEN is not set")
		return err
	}
	chatId := os.Getenv("DEFAULT_CHAT_ID")
	switch chat {
	case "signup":
		chatId = os.Getenv("SIGNUP_CHAT_ID")
	case "rewards":
		chatId = os.Getenv("REWARDS_CHAT_ID")
	}
	if chatId == "" {
		chatId = os.Getenv("DEFAULT_CHAT_ID")
	}
	if chatId == "" {
		err := errors.New("DEFAULT_CHAT_ID is not set")
		return err
	}
	chatIdInt, err := strconv.Atoi(chatId)
	if err != nil {
		return err
	}
	id := int64(chatIdInt)
	bot, err := telegram.NewBot(token)
	if err != nil {
		return err
	}
	// Send a message
	_, err = bot.Api.SendMessage(id, msg, &gotgbot.SendMessageOpts{
		ParseMode: "MarkdownV2",
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	})
	if err != nil {
		return err
	}
	return nil
}
