package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/engine"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/logger"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/types"
	"github.com/mars-protocol/v1-fields-of-mars-sub001/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the strategy engine over HTTP. The engine itself is not
// safe for concurrent use, so every call goes through one mutex: the server is
// the serialization point the reference environment's message queue provides.
type WebServer struct {
	router *mux.Router
	addr   string

	mu     sync.Mutex
	engine *engine.Engine
}

// NewWebServer creates a new web server instance around the engine.
func NewWebServer(addr string, eng *engine.Engine) *WebServer {
	if addr == "" {
		addr = ":8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		addr:   addr,
		engine: eng,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", ws.handleGetConfig).Methods("GET")
	api.HandleFunc("/state", ws.handleGetState).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/positions", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/position/{addr}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/position/{addr}", ws.handleUpdatePosition).Methods("POST")
	api.HandleFunc("/health", ws.handleStrategyHealth).Methods("GET")
	api.HandleFunc("/health/{addr}", ws.handlePositionHealth).Methods("GET")
	api.HandleFunc("/harvest", ws.handleHarvest).Methods("POST")
	api.HandleFunc("/liquidate/{addr}", ws.handleLiquidate).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("addr", ws.addr).Msg("Starting web server")

	server := &http.Server{
		Addr:         ws.addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server process health
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "fields-strategy-manager",
			"version": "1.0.0",
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetConfig returns the immutable strategy parameters
func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	params := ws.engine.Params()
	ws.mu.Unlock()

	ws.writeJSONResponse(w, http.StatusOK, params)
}

// handleGetState returns the global unit ledger
func (ws *WebServer) handleGetState(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	state := ws.engine.State()
	ws.mu.Unlock()

	ws.writeJSONResponse(w, http.StatusOK, state)
}

// handleGetSummary returns the strategy-wide valuation in display units
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	report, err := ws.engine.Health("")
	ws.mu.Unlock()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to assess strategy health")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to assess strategy health")
		return
	}

	// six-decimal chain amounts rendered as whole tokens for dashboards
	bondValue, err := utils.SDKIntToFloat64(report.BondValue, 6)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to convert bond value")
		return
	}
	debtValue, err := utils.SDKIntToFloat64(report.DebtValue, 6)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to convert debt value")
		return
	}

	response := map[string]interface{}{
		"bond_value":  bondValue,
		"debt_value":  debtValue,
		"ltv":         report.LTV,
		"bond_amount": report.BondAmount,
		"timestamp":   time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPositions returns paginated position records
func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	startAfter := r.URL.Query().Get("start_after")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	ws.mu.Lock()
	records := ws.engine.Positions(startAfter, limit)
	ws.mu.Unlock()

	response := map[string]interface{}{
		"positions": records,
		"count":     len(records),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPosition returns one user's position record
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]

	ws.mu.Lock()
	position, ok := ws.engine.Position(addr)
	ws.mu.Unlock()
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Position not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, types.PositionRecord{User: addr, Position: position})
}

// handleStrategyHealth returns the whole strategy's valuation
func (ws *WebServer) handleStrategyHealth(w http.ResponseWriter, r *http.Request) {
	ws.mu.Lock()
	report, err := ws.engine.Health("")
	ws.mu.Unlock()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to assess strategy health")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to assess strategy health")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handlePositionHealth returns one user's valuation
func (ws *WebServer) handlePositionHealth(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]

	ws.mu.Lock()
	report, err := ws.engine.Health(addr)
	ws.mu.Unlock()
	if err != nil {
		webLogger.Error().Err(err).Str("user", addr).Msg("Failed to assess position health")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to assess position health")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handleUpdatePosition executes an ordered instruction list for the user
func (ws *WebServer) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]

	var body struct {
		Instructions []types.Instruction `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body.Instructions) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "No instructions given")
		return
	}

	ws.mu.Lock()
	report, err := ws.engine.UpdatePosition(addr, body.Instructions)
	ws.mu.Unlock()
	if err != nil {
		webLogger.Warn().Err(err).Str("user", addr).Msg("Position update rejected")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, report)
}

// handleHarvest runs the compounding operation
func (ws *WebServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MaxSpread         sdkmath.LegacyDec `json:"max_spread"`
		SlippageTolerance sdkmath.LegacyDec `json:"slippage_tolerance"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	ws.mu.Lock()
	receipt, err := ws.engine.Harvest(body.MaxSpread, body.SlippageTolerance)
	ws.mu.Unlock()
	if err != nil {
		webLogger.Error().Err(err).Msg("Harvest failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// handleLiquidate closes out the target position
func (ws *WebServer) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]

	var body struct {
		Liquidator string            `json:"liquidator"`
		MaxSpread  sdkmath.LegacyDec `json:"max_spread"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Liquidator == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Liquidator address is required")
		return
	}

	ws.mu.Lock()
	receipt, err := ws.engine.Liquidate(body.Liquidator, addr, body.MaxSpread)
	ws.mu.Unlock()
	if err != nil {
		webLogger.Warn().Err(err).Str("user", addr).Msg("Liquidation rejected")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, receipt)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
