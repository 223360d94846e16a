package config

import (
	"errors"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by the LoadConfig function.
var (
	// ListenAddr is the address the HTTP API binds to (e.g. ":8087").
	ListenAddr string

	// LogLevel is the global zerolog level (debug, info, warn, error).
	LogLevel string

	// DatabaseURL is the Postgres connection string for the audit store.
	// Only read when RecorderEnabled is true.
	DatabaseURL string
	// RecorderEnabled toggles mirroring of calls into the audit store.
	RecorderEnabled bool

	// SimMode seeds the in-memory market environment instead of requiring
	// live collaborators; intended for local runs and demos.
	SimMode bool
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ListenAddr, err = getEnv("FIELDS_LISTEN_ADDR")
	if err != nil {
		return err
	}

	LogLevel, err = getEnv("FIELDS_LOG_LEVEL")
	if err != nil {
		return err
	}

	RecorderEnabled, err = getEnvAsBool("FIELDS_RECORDER_ENABLED")
	if err != nil {
		return err
	}

	if RecorderEnabled {
		DatabaseURL, err = getEnv("FIELDS_DATABASE_URL")
		if err != nil {
			return err
		}
	}

	SimMode, err = getEnvAsBool("FIELDS_SIM_MODE")
	if err != nil {
		return err
	}

	log.Debug().
		Str("ListenAddr", ListenAddr).
		Bool("RecorderEnabled", RecorderEnabled).
		Bool("SimMode", SimMode).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDec retrieves an environment variable as a LegacyDec. Returns error if not set or invalid.
func getEnvAsDec(key string) (sdkmath.LegacyDec, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	value, err := sdkmath.LegacyNewDecFromStr(valueStr)
	if err != nil {
		return sdkmath.LegacyDec{}, errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an Int. Returns error if not set or invalid.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.Int{}, err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
