package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/closetiq/closetiq/internal/api"
	"github.com/closetiq/closetiq/internal/assistant"
	"github.com/closetiq/closetiq/internal/notify"
	"github.com/closetiq/closetiq/internal/store"
	"github.com/closetiq/closetiq/internal/tierapi"
	"github.com/closetiq/closetiq/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for closetiq state data
	DefaultStateDir = "/var/lib/closetiq"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "closetiq.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	assistantOpts := buildAssistantOptions(flags)
	tierOpts := buildTierOptions(flags)
	notifyOpts := buildNotifyOptions(config)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping closetiq with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "assistant", len(assistantOpts), "tier", len(tierOpts), "notify", len(notifyOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, assistantOpts, tierOpts, notifyOpts, apiOpts); err != nil {
		slog.Error("closetiq failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("closetiq exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	TierServiceURL   string
	TierServiceToken string
	APIAddr          string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TwilioTo         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	tierURL   *string
	tierToken *string
	apiAddr   *string
}

// initializeLogger sets up structured logging. Debug level is on by default
// and can be disabled with CLOSETIQ_DEBUG=false.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("CLOSETIQ_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("CLOSETIQ_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		TierServiceURL:   os.Getenv("TIER_SERVICE_URL"),
		TierServiceToken: os.Getenv("TIER_SERVICE_TOKEN"),
		APIAddr:          os.Getenv("API_ADDR"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioTo:         os.Getenv("TWILIO_TO_NUMBER"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CLOSETIQ_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("CLOSETIQ_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CLOSETIQ_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TIER_SERVICE_URL", config.TierServiceURL,
		"API_ADDR", config.APIAddr,
		"TWILIO_CONFIGURED", config.TwilioFrom != "" && config.TwilioTo != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for closetiq data (overrides $CLOSETIQ_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		tierURL:   flag.String("tier-service-url", config.TierServiceURL, "tier service base URL (overrides $TIER_SERVICE_URL)"),
		tierToken: flag.String("tier-service-token", config.TierServiceToken, "tier service bearer token (overrides $TIER_SERVICE_TOKEN)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"tierURL", *flags.tierURL,
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		// Check if it's a PostgreSQL DSN using the shared detection function
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildAssistantOptions constructs assistant configuration options
func buildAssistantOptions(flags Flags) []assistant.Option {
	var assistantOpts []assistant.Option
	if *flags.openaiKey != "" {
		assistantOpts = append(assistantOpts, assistant.WithAPIKey(*flags.openaiKey))
	}
	return assistantOpts
}

// buildTierOptions constructs tier service client options
func buildTierOptions(flags Flags) []tierapi.Option {
	var tierOpts []tierapi.Option
	if *flags.tierURL != "" {
		tierOpts = append(tierOpts, tierapi.WithBaseURL(*flags.tierURL))
		if *flags.tierToken != "" {
			tierOpts = append(tierOpts, tierapi.WithAuthToken(*flags.tierToken))
		}
	}
	return tierOpts
}

// buildNotifyOptions constructs Twilio notifier options when fully configured
func buildNotifyOptions(config Config) []notify.Option {
	if config.TwilioFrom == "" || config.TwilioTo == "" {
		return nil
	}
	notifyOpts := []notify.Option{
		notify.WithFrom(config.TwilioFrom),
		notify.WithTo(config.TwilioTo),
	}
	if config.TwilioSID != "" && config.TwilioToken != "" {
		notifyOpts = append(notifyOpts, notify.WithCredentials(config.TwilioSID, config.TwilioToken))
	}
	return notifyOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
