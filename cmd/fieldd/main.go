package main

import (
	"os"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/config"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/engine"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/logger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/market/mock"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/state"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/tax"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/web"
)

// main is the entry point for the strategy manager.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("Fields strategy manager starting...")

	// Initialize the audit store when enabled
	var recorder engine.Recorder
	if config.RecorderEnabled {
		if err := state.InitDB(config.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		store, err := state.NewStore()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize audit store")
		}
		recorder = store
	}

	// --- 2. Market Environment (with Safety Switch) ---
	// Only sim mode is runnable from this binary: live collaborators require a
	// chain client this deployment does not ship. The halt mirrors the
	// safety-switch convention for anything that could move real funds.
	if !config.SimMode {
		log.Fatal().Msg("FIELDS_SIM_MODE is not set to 'true'. Halting: no live market adapters are configured in this build.")
	}

	params, err := loadParams()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load strategy parameters")
	}

	env := mock.NewEnv(tax.New(params.TaxRate, params.TaxCap), params.PrimaryAsset, params.SecondaryAsset)
	// reference pair at its documented launch state
	env.Pool.Seed(sdkmath.NewInt(69_000_000), sdkmath.NewInt(420_000_000), sdkmath.NewInt(170_235_131))
	log.Info().
		Str("primary", params.PrimaryAsset.Identifier).
		Str("secondary", params.SecondaryAsset.Identifier).
		Msg("Simulated market environment seeded")

	// --- 3. Engine Initialization ---
	eng, err := engine.New(engine.Config{
		Params:   params,
		Lending:  env.Lending,
		Pool:     env.Pool,
		Staking:  env.Staking,
		Oracle:   env.Oracle,
		Bank:     env.Bank,
		Env:      env,
		Recorder: recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}
	log.Info().Msg("Engine created successfully")

	// --- 4. Serve ---
	webServer := web.NewWebServer(config.ListenAddr, eng)
	log.Info().Str("addr", config.ListenAddr).Msg("Starting HTTP API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// loadParams reads the strategy parameter set from the environment, falling
// back to the reference defaults when none are set.
func loadParams() (types.StrategyParams, error) {
	if _, ok := os.LookupEnv("FIELDS_PRIMARY_ID"); !ok {
		log.Info().Msg("No strategy parameters in environment, using defaults")
		return config.DefaultStrategyParams(), nil
	}
	return config.LoadStrategyParams()
}
