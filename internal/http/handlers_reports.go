package http

import (
	"encoding/json"
	"net/http"

	"fintrack/internal/services"
)

// Report handlers share a cache-then-compute shape: on a miss the
// computed payload is marshaled once and stored, so hits skip both the
// queries and the encoding.

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	start, err := queryDate(r, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := reportKeyPrefix(user.ID) + "summary|" + r.URL.RawQuery
	if cached, ok := s.reportCache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.reports.Summary(r.Context(), user.ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondCached(w, r, key, summary)
}

func (s *Server) handleReportByCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	start, err := queryDate(r, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ, err := queryType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := reportKeyPrefix(user.ID) + "by-category|" + r.URL.RawQuery
	if cached, ok := s.reportCache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	breakdown, err := s.reports.ByCategory(r.Context(), user.ID, start, end, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondCached(w, r, key, breakdown)
}

func (s *Server) handleReportMonthly(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	months, err := queryIntStrict(r, "months", 6)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := reportKeyPrefix(user.ID) + "monthly|" + r.URL.RawQuery
	if cached, ok := s.reportCache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	breakdown, err := s.reports.Monthly(r.Context(), user.ID, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondCached(w, r, key, breakdown)
}

func (s *Server) handleReportTrends(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	period := r.URL.Query().Get("period")
	if period == "" {
		period = services.PeriodWeekly
	}

	key := reportKeyPrefix(user.ID) + "trends|" + r.URL.RawQuery
	if cached, ok := s.reportCache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, cached)
		return
	}

	trend, err := s.reports.Trends(r.Context(), user.ID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondCached(w, r, key, trend)
}

func (s *Server) respondCached(w http.ResponseWriter, r *http.Request, key string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.reportCache.Set(key, payload)
	writeRawJSON(w, http.StatusOK, payload)
}
