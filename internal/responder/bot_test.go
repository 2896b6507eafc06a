// ABOUTME: Tests for bot intent classification and reply generation
// ABOUTME: Uses a deterministic picker and clock for reproducible replies

package responder

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBot(t *testing.T, clock *fakeClock) *Bot {
	t.Helper()
	cfg := Config{Pick: func(int) int { return 0 }}
	if clock != nil {
		cfg.Now = clock.Now
	}
	b, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestBot_Defaults(t *testing.T) {
	b := newTestBot(t, nil)
	assert.Equal(t, DefaultIdentity, b.Identity())
	assert.Equal(t, DefaultName, b.Name())
}

func TestBot_Classify(t *testing.T) {
	b := newTestBot(t, nil)

	tests := []struct {
		text string
		want string
	}{
		{"hi", "greeting"},
		{"Hello WhatsEase", "greeting"},
		{"bye now", "goodbye"},
		{"can you help me", "help"},
		{"weather?", "weather"},
		{"what's the forecast tomorrow", "weather"},
		{"what time is it", "time"},
		{"remind me to call mom", "reminder"},
		{"calculate 2+2", "math"},
		{"what is 12 * 3", "math"},
		{"7/2", "math"},
		{"what is your name", "name_query"},
		{"thanks a lot", "thanks"},
		{"how are you", "how_are_you"},
		{"tell me a joke", "joke"},
		{"purple elephants", "fallback"},
		{"this is something", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Classify(tt.text).Name)
		})
	}
}

func TestBot_ReplyPicksResponse(t *testing.T) {
	picks := []int{}
	b, err := New(Config{Pick: func(n int) int {
		picks = append(picks, n)
		return n - 1
	}}, nil)
	require.NoError(t, err)
	defer b.Close()

	reply := b.Reply("alice@example.com", "tell me a joke")
	assert.Equal(t, "Why do Java developers wear glasses? Because they don't C#! 👓", reply)
	assert.Equal(t, []int{3}, picks)
}

func TestBot_ReplyWeather(t *testing.T) {
	b := newTestBot(t, nil)
	reply := b.Reply("alice@example.com", "weather?")
	assert.Contains(t, strings.ToLower(reply), "weather")
}

func TestBot_TimeExpandedAtReplyTime(t *testing.T) {
	clock := newFakeClock()
	b := newTestBot(t, clock)

	first := b.Reply("alice@example.com", "what time is it")
	assert.Contains(t, first, "12:00:00 UTC")

	clock.Advance(90 * time.Minute)
	second := b.Reply("alice@example.com", "what time is it")
	assert.Contains(t, second, "13:30:00 UTC")
}

func TestBot_Math(t *testing.T) {
	b := newTestBot(t, nil)

	tests := []struct {
		text string
		want string
	}{
		{"calculate 2+2", "The answer is: 4"},
		{"what is (3 + 4) * 2?", "The answer is: 14"},
		{"compute 10/4 please", "The answer is: 2.5"},
		{"1/0", "I can help with calculations! What would you like me to compute?"},
		{"calculate", "I can help with calculations! What would you like me to compute?"},
		{"math 2**8", "I can help with calculations! What would you like me to compute?"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Reply("alice@example.com", tt.text))
		})
	}
}

func TestBot_RecordsHistory(t *testing.T) {
	b := newTestBot(t, nil)

	b.Reply("alice@example.com", "hi")
	b.Reply("alice@example.com", "tell me a joke")

	history := b.History("alice@example.com", 10)
	require.Len(t, history, 4)
	assert.True(t, history[0].FromUser)
	assert.Equal(t, "hi", history[0].Text)
	assert.False(t, history[1].FromUser)
	assert.Equal(t, "greeting", history[1].Intent)
	assert.Equal(t, "joke", b.LastIntent("alice@example.com"))

	assert.Empty(t, b.History("bob@example.com", 10))

	assert.True(t, b.Forget("alice@example.com"))
	assert.Empty(t, b.History("alice@example.com", 10))
}

func TestBot_CustomIntents(t *testing.T) {
	intents, err := CompileIntents([]IntentSpec{
		{Name: "greeting", Patterns: []string{`\bahoy\b`}, Responses: []string{"Ahoy from {name}!"}},
		{Name: FallbackIntent, Responses: []string{"Arr?"}},
	})
	require.NoError(t, err)

	b, err := New(Config{Name: "Pirate", Intents: intents, Pick: func(int) int { return 0 }}, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "Ahoy from Pirate!", b.Reply("alice@example.com", "AHOY"))
	assert.Equal(t, "Arr?", b.Reply("alice@example.com", "hello"))
}

func TestNew_RejectsInvalidIntents(t *testing.T) {
	greeting := Intent{
		Name:      "greeting",
		Patterns:  []*regexp.Regexp{regexp.MustCompile(`(?i)\bhi\b`)},
		Responses: []string{"Hello!"},
	}
	fallback := Intent{Name: FallbackIntent, Responses: []string{"Hmm?"}}

	tests := []struct {
		name    string
		intents []Intent
		wantErr string
	}{
		{"missing fallback", []Intent{greeting}, ErrNoFallback.Error()},
		{"fallback not last", []Intent{fallback, greeting}, ErrNoFallback.Error()},
		{"intent without responses", []Intent{{Name: "greeting", Patterns: greeting.Patterns}, fallback}, `intent "greeting" has no responses`},
		{"fallback without responses", []Intent{greeting, {Name: FallbackIntent}}, `intent "fallback" has no responses`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(Config{Intents: tt.intents}, nil)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	b, err := New(Config{Intents: []Intent{greeting, fallback}, Pick: func(int) int { return 0 }}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "Hmm?", b.Reply("alice@example.com", "purple"))
}
