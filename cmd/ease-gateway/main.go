// ABOUTME: Entry point for the ease-gateway real-time messaging server
// ABOUTME: Provides serve, init, token, health, and online commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/2389/ease-gateway/internal/auth"
	"github.com/2389/ease-gateway/internal/config"
	"github.com/2389/ease-gateway/internal/events"
	"github.com/2389/ease-gateway/internal/gateway"
)

// version is set with -ldflags at build time.
var version = "dev"

const banner = `
                                      _
  ___  __ _ ___  ___        __ _  __ _| |_ _____      ____ _ _   _
 / _ \/ _' / __|/ _ \_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
|  __/ (_| \__ \  __/_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \___|\__,_|___/\___|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                           |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: EASE_CONFIG env var > XDG_CONFIG_HOME/ease/gateway.yaml > ~/.config/ease/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("EASE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ease", "gateway.yaml")
}

// getDataPath returns the path to the ease data directory.
// Priority: XDG_DATA_HOME/ease > ~/.local/share/ease
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "ease")
}

func usage() {
	fmt.Println("Usage: ease-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                           Start the gateway server")
	fmt.Println("  init                            Create a new config file interactively")
	fmt.Println("  token --user ID [--ttl 24h]     Mint a connect token for an identity")
	fmt.Println("  health                          Check gateway health")
	fmt.Println("  online                          Show how many identities are online")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "online":
		err = runOnline(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Bot:       ")
	if cfg.Bot.IsEnabled() {
		cyan.Print(cfg.Bot.Identity)
		gray.Printf(" (%s)", cfg.Bot.Name)
	} else {
		yellow.Print("disabled")
	}
	fmt.Println()
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting ease-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// tokenArgs holds the parsed flags of the token command.
type tokenArgs struct {
	identity string
	ttl      time.Duration
}

// parseTokenArgs supports both "--flag value" and "--flag=value" forms.
func parseTokenArgs(args []string) (tokenArgs, error) {
	var out tokenArgs
	var ttlRaw string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--user", "-u", "--ttl":
		default:
			if strings.HasPrefix(arg, "-") {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		if name == "--ttl" {
			ttlRaw = value
		} else {
			out.identity = strings.TrimSpace(value)
		}
	}

	if out.identity == "" {
		return out, errors.New("--user flag is required")
	}
	// Clients could never address a longer identity.
	if utf8.RuneCountInString(out.identity) > events.MaxIdentityRunes {
		return out, fmt.Errorf("--user must be at most %d characters", events.MaxIdentityRunes)
	}

	if ttlRaw != "" {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return out, fmt.Errorf("parsing --ttl: %w", err)
		}
		if ttl <= 0 {
			return out, errors.New("--ttl must be positive")
		}
		out.ttl = ttl
	}
	return out, nil
}

// runToken mints a connect token signed with the configured secret.
// Account management stays outside the gateway; this is an operator aid.
func runToken(args []string, out io.Writer) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Bot.IsEnabled() && parsed.identity == cfg.Bot.Identity {
		return fmt.Errorf("%s is reserved for the bot", parsed.identity)
	}

	ttl := parsed.ttl
	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(parsed.identity, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

// getEndpoint fetches path from the configured gateway and returns the body.
func getEndpoint(ctx context.Context, path string) (int, string, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return 0, "", fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

func runHealth(ctx context.Context) error {
	status, _, err := getEndpoint(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", status)
	}

	fmt.Println("healthy")
	return nil
}

func runOnline(ctx context.Context) error {
	status, body, err := getEndpoint(ctx, "/health/ready")
	if err != nil {
		return fmt.Errorf("online check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("not ready: %s", body)
	}

	fmt.Println(body)
	return nil
}

// generateSecret returns a random base64 secret comfortably above the
// verifier's minimum length.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

// initAnswers are the values collected by the init prompts.
type initAnswers struct {
	httpAddr  string
	dbPath    string
	jwtSecret string
	botName   string
	logLevel  string
	logFormat string
	metrics   bool
}

// renderConfig produces the starter YAML written by init.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# ease-gateway configuration\n")
	cfg.WriteString("# Generated by ease-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.jwtSecret))
	cfg.WriteString("  token_ttl: \"168h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("bot:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  identity: \"whatsease@bot.com\"\n")
	cfg.WriteString(fmt.Sprintf("  name: %q\n", a.botName))
	cfg.WriteString("  history_size: 50\n")
	cfg.WriteString("  memory_ttl: \"30m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString("  send_buffer: 64\n")
	cfg.WriteString("  write_timeout: \"5s\"\n")
	cfg.WriteString("  rate_limit: 20\n")
	cfg.WriteString("  rate_burst: 40\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.metrics))
	cfg.WriteString("  path: \"/metrics\"\n")

	return cfg.String()
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "ease-gateway configuration setup")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	// Never overwrite an existing config.
	if _, err := os.Stat(outputFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first to regenerate", outputFile)
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", filepath.Join(getDataPath(), "gateway.db"))

	fmt.Fprintln(out, "\n--- Bot Configuration ---")
	botName := prompt(reader, out, "Bot display name", "WhatsEase")

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	metricsAnswer := strings.ToLower(prompt(reader, out, "Enable /metrics?", "no"))

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	content := renderConfig(initAnswers{
		httpAddr:  httpAddr,
		dbPath:    dbPath,
		jwtSecret: secret,
		botName:   botName,
		logLevel:  logLevel,
		logFormat: logFormat,
		metrics:   metricsAnswer == "yes" || metricsAnswer == "y",
	})

	// Validate before writing.
	if _, err := config.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the signing secret.
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  ease-gateway serve")
	fmt.Fprintln(out, "  ease-gateway token --user you@example.com")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
