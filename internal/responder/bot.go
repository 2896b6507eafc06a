// ABOUTME: Intent-matching bot that produces reply text for bot-directed messages
// ABOUTME: Handles placeholders, sandboxed math, and per-user conversation memory

package responder

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/2389/ease-gateway/internal/calc"
)

const (
	// DefaultIdentity is the reserved identity of the bot.
	DefaultIdentity = "whatsease@bot.com"
	// DefaultName is the bot's display name.
	DefaultName = "WhatsEase"
)

// mathRun finds candidate expressions inside free text.
var mathRun = regexp.MustCompile(`[0-9+\-*/().\s]+`)

// Config configures a Bot. Zero values fall back to defaults.
type Config struct {
	Identity string
	Name     string
	Intents  []Intent

	HistorySize int
	MemoryTTL   time.Duration
	MaxUsers    int

	// Pick returns an index in [0, n). Defaults to a uniform random choice.
	Pick func(n int) int
	// Now is the clock used for placeholders and history.
	Now func() time.Time
}

// Bot is the synchronous responder used by the delivery engine.
type Bot struct {
	identity string
	name     string
	intents  []Intent
	memory   *Memory
	pick     func(n int) int
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a bot. Pass nil logger for default. An empty Intents uses
// DefaultIntents; a custom set must pass the same checks as CompileIntents.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if len(cfg.Intents) == 0 {
		cfg.Intents = DefaultIntents()
	}
	if err := validateIntents(cfg.Intents); err != nil {
		return nil, fmt.Errorf("invalid intents: %w", err)
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = 30 * time.Minute
	}
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = 10000
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.IntN
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Bot{
		identity: cfg.Identity,
		name:     cfg.Name,
		intents:  cfg.Intents,
		memory:   newMemory(cfg.HistorySize, cfg.MemoryTTL, cfg.MaxUsers, time.Minute, cfg.Now),
		pick:     cfg.Pick,
		now:      cfg.Now,
		logger:   logger.With("component", "responder"),
	}, nil
}

// Identity returns the bot's reserved identity.
func (b *Bot) Identity() string { return b.identity }

// Name returns the bot's display name.
func (b *Bot) Name() string { return b.name }

// Classify returns the first intent matching text, or the fallback.
func (b *Bot) Classify(text string) Intent {
	for _, intent := range b.intents {
		if intent.Name == FallbackIntent {
			continue
		}
		if intent.Match(text) {
			return intent
		}
	}
	return b.intents[len(b.intents)-1]
}

// Reply produces the bot's answer to text from identity and records both
// sides of the exchange in that user's memory.
func (b *Bot) Reply(identity, text string) string {
	now := b.now()
	intent := b.Classify(text)

	var reply string
	if intent.Name == MathIntent {
		if answer, ok := evalMath(text); ok {
			reply = "The answer is: " + answer
		} else {
			reply = intent.Responses[0]
		}
	} else {
		reply = intent.Responses[b.pick(len(intent.Responses))]
	}
	reply = b.expand(reply, now)

	b.memory.Append(identity,
		Turn{Text: text, FromUser: true, Intent: intent.Name, At: now},
		Turn{Text: reply, FromUser: false, Intent: intent.Name, At: now},
	)

	b.logger.Info("bot replied", "identity", identity, "intent", intent.Name)
	return reply
}

// History returns up to n of identity's most recent turns, oldest first.
func (b *Bot) History(identity string, n int) []Turn {
	return b.memory.Recent(identity, n)
}

// LastIntent returns the intent of identity's most recent exchange.
func (b *Bot) LastIntent(identity string) string {
	return b.memory.LastIntent(identity)
}

// Forget clears identity's conversation memory.
func (b *Bot) Forget(identity string) bool {
	if b.memory.Forget(identity) {
		b.logger.Info("cleared bot memory", "identity", identity)
		return true
	}
	return false
}

// Close stops background memory maintenance.
func (b *Bot) Close() {
	b.memory.Close()
}

func (b *Bot) expand(reply string, now time.Time) string {
	if !strings.Contains(reply, "{") {
		return reply
	}
	r := strings.NewReplacer(
		"{time}", now.UTC().Format("15:04:05"),
		"{name}", b.name,
	)
	return r.Replace(reply)
}

// evalMath evaluates the first digit-bearing arithmetic run in text.
func evalMath(text string) (string, bool) {
	for _, run := range mathRun.FindAllString(text, -1) {
		if !strings.ContainsFunc(run, unicode.IsDigit) {
			continue
		}
		v, err := calc.Eval(strings.TrimSpace(run))
		if err != nil {
			return "", false
		}
		return calc.Format(v), true
	}
	return "", false
}
