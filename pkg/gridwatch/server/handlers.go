package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/application/service"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/motor"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// timeLayout is the timestamp format accepted on the query string. Market
// timestamps are timezone-naive; they parse as UTC wall time.
const timeLayout = "2006-01-02T15:04:05"

func errUnknownSlot(name string) error {
	return &badRequestError{err: exception.NewGridErrorf(moduleName, "unknown dashboard slot '%s'", name)}
}

// writeJSON serializes v with a status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeError maps pipeline errors onto HTTP statuses. A window with no data
// is a 404, a malformed request a 400, everything else a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exception.ErrDataUnavailable):
		status = http.StatusNotFound
	case isBadRequest(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// badRequestError marks request-parsing failures so writeError can map them
// to 400 instead of 500.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func isBadRequest(err error) bool {
	var bre *badRequestError
	return errors.As(err, &bre)
}

func badRequestf(format string, a ...interface{}) error {
	return &badRequestError{err: exception.NewGridErrorf(moduleName, format, a...)}
}

// parseWindow reads the mandatory start/end parameters. Naive timestamps are
// taken as market time; timestamps carrying a UTC offset are converted to the
// configured market timezone first, then stripped to naive wall time.
func parseWindow(r *http.Request, loc *time.Location) (model.Window, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return model.Window{}, badRequestf("parameters 'start' and 'end' are required")
	}
	start, err := parseMarketTime(startStr, loc)
	if err != nil {
		return model.Window{}, badRequestf("invalid 'start' timestamp '%s'", startStr)
	}
	end, err := parseMarketTime(endStr, loc)
	if err != nil {
		return model.Window{}, badRequestf("invalid 'end' timestamp '%s'", endStr)
	}
	w, err := model.NewWindow(start, end)
	if err != nil {
		return model.Window{}, badRequestf("invalid window: %v", err)
	}
	return w, nil
}

// parseMarketTime parses one timestamp into naive market time. All internal
// timestamps are naive wall times stored as UTC, so an offset-carrying input
// is shifted into loc and its wall-clock fields rebuilt on UTC.
func parseMarketTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC), nil
}

// parseCSV splits a comma-separated query parameter, dropping empty items.
func parseCSV(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseResolution validates the optional resolution parameter, defaulting to auto.
func parseResolution(r *http.Request) (string, error) {
	raw := r.URL.Query().Get("resolution")
	if raw == "" {
		return model.ResolutionAuto, nil
	}
	if raw == model.ResolutionAuto {
		return raw, nil
	}
	if _, err := model.ParseResolution(raw); err != nil {
		return "", badRequestf("invalid 'resolution' '%s'", raw)
	}
	return raw, nil
}

// parseBucket reads the optional bucket parameter as a duration, defaulting
// to 30 minutes.
func parseBucket(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("bucket")
	if raw == "" {
		return 30 * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, badRequestf("invalid 'bucket' duration '%s'", raw)
	}
	return d, nil
}

func parseBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// handleAggregate serves GET /api/aggregate.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, s.marketTZ)
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := parseResolution(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bucket, err := parseBucket(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dims := parseCSV(r, "dims")
	if len(dims) == 0 {
		dims = []string{model.DimFuelType}
	}

	resp, err := s.svc.Aggregate(r.Context(), service.AggregateRequest{
		Window:         window,
		Regions:        parseCSV(r, "regions"),
		Resolution:     resolution,
		Dimensions:     dims,
		BucketSize:     bucket,
		Sorted:         parseBool(r, "sorted"),
		IncludeRooftop: parseBool(r, "rooftop"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePenetration serves GET /api/penetration.
func (s *Server) handlePenetration(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, s.marketTZ)
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := parseResolution(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bucket, err := parseBucket(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.svc.Penetration(r.Context(), service.PenetrationRequest{
		Window:         window,
		Regions:        parseCSV(r, "regions"),
		Resolution:     resolution,
		BucketSize:     bucket,
		IncludeRooftop: parseBool(r, "rooftop"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePrices serves GET /api/prices.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, s.marketTZ)
	if err != nil {
		writeError(w, err)
		return
	}
	resolution, err := parseResolution(r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := service.PricesRequest{
		Window:     window,
		Regions:    parseCSV(r, "regions"),
		Resolution: resolution,
	}

	if raw := r.URL.Query().Get("smooth"); raw != "" {
		req.SmoothMethod = motor.SmoothMethod(raw)
		req.SmoothWindow = 12
		if wRaw := r.URL.Query().Get("smooth_window"); wRaw != "" {
			n, err := strconv.Atoi(wRaw)
			if err != nil || n < 1 {
				writeError(w, badRequestf("invalid 'smooth_window' '%s'", wRaw))
				return
			}
			req.SmoothWindow = n
		}
		if mpRaw := r.URL.Query().Get("min_periods"); mpRaw != "" {
			n, err := strconv.Atoi(mpRaw)
			if err != nil || n < 1 {
				writeError(w, badRequestf("invalid 'min_periods' '%s'", mpRaw))
				return
			}
			req.MinPeriods = n
		}
	}

	for _, raw := range parseCSV(r, "bands") {
		edge, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, badRequestf("invalid price band edge '%s'", raw))
			return
		}
		req.BandEdges = append(req.BandEdges, edge)
	}

	resp, err := s.svc.Prices(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDashboard serves GET /api/dashboard/{view} from the prefetch slots.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	name := muxVar(r, "view")
	value, err := s.slots.Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

// handleCacheClear serves POST /api/cache/clear: flushes the result cache
// and invalidates every dashboard slot, for use after archives are republished.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.svc.InvalidateAll()
	s.slots.InvalidateAll()
	s.slots.Start(s.baseCtx)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleHealthz serves GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime_s": int(time.Since(s.started).Seconds()),
	})
}
