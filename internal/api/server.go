// Package api serves the orchestrator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketbrain/internal/brain"
	"marketbrain/internal/model"
)

type Server struct {
	brain    *brain.Brain
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	timeout  time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

// NewServer wires handlers around b. When timeout is positive a request
// that outlives it gets 504 while its provider calls run to completion.
// gatherer backs /metrics and may be nil.
func NewServer(b *brain.Brain, gatherer prometheus.Gatherer, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{brain: b, gatherer: gatherer, logger: logger, timeout: timeout}
}

// Routes returns the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/quote/{symbol}", s.handleQuote)
		r.Get("/quotes", s.handleQuotes)
		r.Get("/historical/{symbol}", s.handleHistorical)
		r.Get("/intraday/{symbol}", s.handleIntraday)
		r.Get("/options/{symbol}", s.handleOptions)

		r.Get("/company/{symbol}", s.handleCompany)
		r.Get("/fundamentals/{symbol}", s.handleFundamentals)
		r.Get("/earnings/{symbol}", s.handleEarnings)
		r.Get("/dividends/{symbol}", s.handleDividends)

		r.Get("/news", s.handleNews)
		r.Get("/economic/events", s.handleEconomicEvents)
		r.Get("/economic/data/{indicator}", s.handleEconomicData)
		r.Get("/earnings-calendar", s.handleEarningsCalendar)
		r.Get("/transcripts/{symbol}/{year}/{quarter}", s.handleTranscript)
		r.Get("/indicators/{symbol}/{indicator}", s.handleIndicators)
		r.Get("/market-status", s.handleMarketStatus)

		r.Get("/providers", s.handleProviders)
		r.Get("/providers/status", s.handleProviderStatus)
		r.Delete("/providers/{name}/rate-limit", s.handleResetRateLimit)
		r.Delete("/cache", s.handleClearCache)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	respond(s, w, r, func(ctx context.Context) *brain.Result[*model.Quote] {
		return s.brain.GetQuote(ctx, symbol)
	})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitList(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	ctx, cancel := s.deadline(r)
	defer cancel()
	results, err := brain.Await(ctx, func(ctx context.Context) map[string]*brain.Result[*model.Quote] {
		return s.brain.GetMultipleQuotes(ctx, symbols)
	})
	if err != nil {
		writeTimeout(w)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}
	interval := orDefault(q.Get("interval"), "1d")
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.HistoricalPrice] {
		return s.brain.GetHistorical(ctx, symbol, start, end, interval)
	})
}

func (s *Server) handleIntraday(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	interval := orDefault(r.URL.Query().Get("interval"), "5min")
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.HistoricalPrice] {
		return s.brain.GetIntraday(ctx, symbol, interval)
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	exp, err := parseDate(r.URL.Query().Get("expiration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiration date")
		return
	}
	var expiration *time.Time
	if !exp.IsZero() {
		expiration = &exp
	}
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.OptionQuote] {
		return s.brain.GetOptionsChain(ctx, symbol, expiration)
	})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	respond(s, w, r, func(ctx context.Context) *brain.Result[*model.CompanyInfo] {
		return s.brain.GetCompanyInfo(ctx, symbol)
	})
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	respond(s, w, r, func(ctx context.Context) *brain.Result[model.Fundamentals] {
		return s.brain.GetFundamentals(ctx, symbol)
	})
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.EarningsRecord] {
		return s.brain.GetEarnings(ctx, symbol)
	})
}

func (s *Server) handleDividends(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.Dividend] {
		return s.brain.GetDividends(ctx, symbol)
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.NewsArticle] {
		return s.brain.GetNews(ctx, model.NewsQuery{Symbol: q.Get("symbol"), Limit: limit})
	})
}

func (s *Server) handleEconomicEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	importance, err := parseInt(q.Get("importance"))
	if err != nil || importance < 0 || importance > 3 {
		writeError(w, http.StatusBadRequest, "invalid importance")
		return
	}
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	start, end, ok := parseWindow(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.EconomicEvent] {
		return s.brain.GetEconomicEvents(ctx, model.EconomicEventsQuery{
			Countries:  splitList(q.Get("countries")),
			Importance: importance,
			Start:      start,
			End:        end,
			Limit:      limit,
		})
	})
}

func (s *Server) handleEconomicData(w http.ResponseWriter, r *http.Request) {
	indicator := chi.URLParam(r, "indicator")
	respond(s, w, r, func(ctx context.Context) *brain.Result[*model.EconomicData] {
		return s.brain.GetEconomicData(ctx, indicator)
	})
}

func (s *Server) handleEarningsCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	start, end, ok := parseWindow(w, q.Get("start"), q.Get("end"))
	if !ok {
		return
	}
	respond(s, w, r, func(ctx context.Context) *brain.Result[[]model.EarningsCalendarEntry] {
		return s.brain.GetEarningsCalendar(ctx, model.EarningsCalendarQuery{
			Symbol: q.Get("symbol"),
			Start:  start,
			End:    end,
			Limit:  limit,
		})
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	quarter, err := strconv.Atoi(chi.URLParam(r, "quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		writeError(w, http.StatusBadRequest, "quarter must be between 1 and 4")
		return
	}
	respond(s, w, r, func(ctx context.Context) *brain.Result[*model.EarningsTranscript] {
		return s.brain.GetEarningsTranscript(ctx, symbol, year, quarter)
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	indicator := chi.URLParam(r, "indicator")
	interval := orDefault(r.URL.Query().Get("interval"), "daily")
	respond(s, w, r, func(ctx context.Context) *brain.Result[*model.TechnicalIndicator] {
		return s.brain.GetTechnicalIndicators(ctx, symbol, indicator, interval)
	})
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, func(ctx context.Context) *brain.Result[model.MarketStatus] {
		return s.brain.GetMarketStatus(ctx)
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": s.brain.GetAvailableProviders()})
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.brain.GetProviderStatus())
}

func (s *Server) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.brain.ResetRateLimit(name) {
		writeError(w, http.StatusNotFound, "unknown provider "+name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.brain.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// deadline bounds one request by the server timeout. Provider calls are
// detached from it; only the wait is cut short.
func (s *Server) deadline(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

// respond runs one orchestrator call under the request deadline and writes
// its result, or 504 when the deadline passes first.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, call func(context.Context) *brain.Result[T]) {
	ctx, cancel := s.deadline(r)
	defer cancel()

	res, err := brain.Await(ctx, call)
	if err != nil {
		s.logger.Warn("request timed out", "path", r.URL.Path, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeTimeout(w)
		return
	}
	writeResult(w, res)
}

func writeTimeout(w http.ResponseWriter) {
	writeError(w, http.StatusGatewayTimeout, "request timed out")
}

// writeResult maps the aggregated outcome to a status code and writes the
// whole result, provenance included.
func writeResult[T any](w http.ResponseWriter, res *brain.Result[T]) {
	status := http.StatusOK
	switch {
	case res.Success:
	case res.Error == brain.ErrNoProviders:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// parseDate accepts YYYY-MM-DD. An empty value is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseWindow(w http.ResponseWriter, from, to string) (start, end time.Time, ok bool) {
	start, err := parseDate(from)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return start, end, false
	}
	end, err = parseDate(to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return start, end, false
	}
	return start, end, true
}

// parseInt treats an empty value as zero, leaving the default to the
// query's WithDefaults.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
