// ABOUTME: Intent definitions for the bot: built-in defaults and TOML intent packs
// ABOUTME: Patterns are compiled case-insensitive; the fallback intent must be last

package responder

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// FallbackIntent is the name of the intent used when nothing else matches.
const FallbackIntent = "fallback"

// MathIntent is the name of the intent whose replies come from the calculator.
const MathIntent = "math"

// ErrNoFallback is returned when an intent set lacks a trailing fallback intent.
var ErrNoFallback = errors.New("intent set must end with a fallback intent")

// IntentSpec is the uncompiled form of an intent, as found in TOML packs.
type IntentSpec struct {
	Name      string   `toml:"name"`
	Patterns  []string `toml:"patterns"`
	Responses []string `toml:"responses"`
}

// Intent is a compiled intent.
type Intent struct {
	Name      string
	Patterns  []*regexp.Regexp
	Responses []string
}

// Match reports whether any pattern matches text.
func (i Intent) Match(text string) bool {
	for _, p := range i.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// CompileIntents validates specs and compiles their patterns.
func CompileIntents(specs []IntentSpec) ([]Intent, error) {
	if len(specs) == 0 || specs[len(specs)-1].Name != FallbackIntent {
		return nil, ErrNoFallback
	}

	seen := make(map[string]bool, len(specs))
	out := make([]Intent, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("intent name is required")
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate intent %q", spec.Name)
		}
		seen[spec.Name] = true

		if len(spec.Responses) == 0 {
			return nil, fmt.Errorf("intent %q has no responses", spec.Name)
		}
		if len(spec.Patterns) == 0 && spec.Name != FallbackIntent {
			return nil, fmt.Errorf("intent %q has no patterns", spec.Name)
		}

		intent := Intent{Name: spec.Name, Responses: spec.Responses}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("intent %q: compiling pattern %q: %w", spec.Name, p, err)
			}
			intent.Patterns = append(intent.Patterns, re)
		}
		out = append(out, intent)
	}
	return out, nil
}

// validateIntents checks a compiled set before a bot uses it: it must end
// with the fallback intent and every intent needs at least one response.
func validateIntents(intents []Intent) error {
	if len(intents) == 0 || intents[len(intents)-1].Name != FallbackIntent {
		return ErrNoFallback
	}
	for _, intent := range intents {
		if len(intent.Responses) == 0 {
			return fmt.Errorf("intent %q has no responses", intent.Name)
		}
	}
	return nil
}

type intentFile struct {
	Intent []IntentSpec `toml:"intent"`
}

// LoadIntents reads an intent pack from a TOML file:
//
//	[[intent]]
//	name = "greeting"
//	patterns = ['\b(hi|hello)\b']
//	responses = ["Hello!"]
func LoadIntents(path string) ([]Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intents file: %w", err)
	}

	var f intentFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("parsing intents file: %w", err)
	}

	intents, err := CompileIntents(f.Intent)
	if err != nil {
		return nil, fmt.Errorf("validating intents file: %w", err)
	}
	return intents, nil
}

// DefaultIntentSpecs returns the built-in intent set.
func DefaultIntentSpecs() []IntentSpec {
	return []IntentSpec{
		{
			Name:     "greeting",
			Patterns: []string{`\b(hi|hello|hey|greetings|good morning|good evening|good afternoon)\b`},
			Responses: []string{
				"Hello! I'm WhatsEase, your AI assistant. How can I help you today?",
				"Hi there! I'm WhatsEase. What can I do for you?",
				"Hey! WhatsEase here. How may I assist you?",
			},
		},
		{
			Name:     "goodbye",
			Patterns: []string{`\b(bye|goodbye|see you|talk later|take care)\b`},
			Responses: []string{
				"Goodbye! Feel free to reach out anytime!",
				"See you later! Have a great day!",
				"Take care! I'm always here if you need assistance.",
			},
		},
		{
			Name:     "help",
			Patterns: []string{`\b(help|assist|support|what can you do)\b`},
			Responses: []string{
				"I'm **WhatsEase**, your AI assistant! I can help you with:\n\n" +
					"- General questions and conversation\n" +
					"- Information about weather and time\n" +
					"- Setting reminders\n" +
					"- Quick calculations\n\n" +
					"Just ask me anything!",
			},
		},
		{
			Name:     "weather",
			Patterns: []string{`\b(weather|temperature|forecast|climate)\b`},
			Responses: []string{
				"I can help with weather information! For the most accurate data, " +
					"I'd need to integrate with a weather API. Where would you like to check the weather?",
				"Weather queries are one of my specialties! Which location are you interested in?",
			},
		},
		{
			Name:     "time",
			Patterns: []string{`\b(time|what time|current time|clock)\b`},
			Responses: []string{
				"The current time is {time} UTC. Would you like the time in a specific timezone?",
			},
		},
		{
			Name:     "reminder",
			Patterns: []string{`\b(remind|reminder|remember|don't forget)\b`},
			Responses: []string{
				"I can help set reminders! Please tell me what you'd like to be reminded about and when.",
				"Reminder feature coming up! What should I remind you about?",
			},
		},
		{
			Name: MathIntent,
			Patterns: []string{
				`\b(calculate|compute|math|add|subtract|multiply|divide)\b`,
				`\d\s*[-+*/]\s*[\d(.]`,
			},
			Responses: []string{
				"I can help with calculations! What would you like me to compute?",
				"Math is my strong suit! Give me an expression to calculate.",
			},
		},
		{
			Name:     "name_query",
			Patterns: []string{`\b(your name|who are you|what are you)\b`},
			Responses: []string{
				"I'm WhatsEase, an AI-powered assistant designed to help you with various tasks!",
				"My name is WhatsEase. I'm here to make your life easier through intelligent assistance.",
			},
		},
		{
			Name:     "thanks",
			Patterns: []string{`\b(thanks|thank you|appreciate|grateful)\b`},
			Responses: []string{
				"You're welcome! Happy to help!",
				"My pleasure! Let me know if you need anything else.",
				"Glad I could help! Feel free to ask anytime.",
			},
		},
		{
			Name:     "how_are_you",
			Patterns: []string{`\b(how are you|how's it going|how do you do)\b`},
			Responses: []string{
				"I'm functioning perfectly, thank you for asking! How can I assist you today?",
				"I'm doing great! Ready to help you with whatever you need.",
				"All systems operational! What can I do for you?",
			},
		},
		{
			Name:     "joke",
			Patterns: []string{`\b(joke|funny|make me laugh|humor)\b`},
			Responses: []string{
				"Why don't programmers like nature? It has too many bugs! 🐛",
				"What's a programmer's favorite hangout place? Foo Bar! 🍺",
				"Why do Java developers wear glasses? Because they don't C#! 👓",
			},
		},
		{
			Name: FallbackIntent,
			Responses: []string{
				"I'm not sure I understand. Could you rephrase that?",
				"Interesting! Can you tell me more about what you need?",
				"I'm still learning! Could you ask that in a different way?",
				"That's a bit outside my current knowledge. Try asking me about weather, time, or general help!",
			},
		},
	}
}

// DefaultIntents returns the compiled built-in intent set.
func DefaultIntents() []Intent {
	intents, err := CompileIntents(DefaultIntentSpecs())
	if err != nil {
		panic(fmt.Sprintf("built-in intents: %v", err))
	}
	return intents
}
