package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Options gathers every runtime knob of the client. Defaults are applied
// first, then a .env file, then process environment variables.
type Options struct {
	ServerURL      string
	SyncWithServer bool
	// AssumeOnline decides what the connectivity probe reports when the
	// probe itself errors: true means optimistic (attempt remote and let
	// the attempt fail over), false means skip straight to local.
	AssumeOnline   bool
	RequestTimeout time.Duration
	PollInterval   time.Duration
	MaxCashAmount  decimal.Decimal
	DataDir        string
	DatabaseFile   string
	SyncStatePath  string
	LogLevel       string
}

func NewConfig() *Options {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	opt := &Options{
		ServerURL:      "http://localhost:8080",
		SyncWithServer: true,
		AssumeOnline:   true,
		RequestTimeout: 5 * time.Second,
		PollInterval:   30 * time.Second,
		MaxCashAmount:  decimal.NewFromInt(100_000_000),
		LogLevel:       "info",
	}

	if opt.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		opt.DataDir = filepath.Join(home, "poskeeper")
	}

	if env, exists := os.LookupEnv("SERVER_URL"); exists {
		opt.ServerURL = env
	}
	if env, exists := os.LookupEnv("SYNC_WITH_SERVER"); exists {
		if value, err := strconv.ParseBool(env); err == nil {
			opt.SyncWithServer = value
		}
	}
	if env, exists := os.LookupEnv("ASSUME_ONLINE"); exists {
		if value, err := strconv.ParseBool(env); err == nil {
			opt.AssumeOnline = value
		}
	}
	if env, exists := os.LookupEnv("REQUEST_TIMEOUT"); exists {
		if value, err := time.ParseDuration(env); err == nil {
			opt.RequestTimeout = value
		}
	}
	if env, exists := os.LookupEnv("POLL_INTERVAL"); exists {
		if value, err := time.ParseDuration(env); err == nil {
			opt.PollInterval = value
		}
	}
	if env, exists := os.LookupEnv("MAX_CASH_AMOUNT"); exists {
		if value, err := decimal.NewFromString(env); err == nil {
			opt.MaxCashAmount = value
		}
	}
	if env, exists := os.LookupEnv("DATA_DIR"); exists {
		opt.DataDir = env
	}
	if env, exists := os.LookupEnv("LOG_LEVEL"); exists {
		opt.LogLevel = env
	}

	if _, err := os.Stat(opt.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(opt.DataDir, 0755); err != nil {
			log.Fatal(err)
		}
	}

	opt.DatabaseFile = filepath.Join(opt.DataDir, "poskeeper.db")
	opt.SyncStatePath = filepath.Join(opt.DataDir, "syncinfo.dat")

	return opt
}
