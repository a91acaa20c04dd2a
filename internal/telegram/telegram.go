package telegram

import (
	"sync"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

type Bot struct {
	Api *gotgbot.Bot
}

var (
	mu    sync.Mutex
	cache = map[string]*Bot{}
)

// NewBot returns a bot for the token, reusing one per token so alert
// paths do not rebuild the client on every message.
func NewBot(token string) (*Bot, error) {
	mu.Lock()
	defer mu.Unlock()
	if bot, ok := cache[token]; ok {
		return bot, nil
	}
	api, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, err
	}
	bot := &Bot{Api: api}
	cache[token] = bot
	return bot, nil
}
