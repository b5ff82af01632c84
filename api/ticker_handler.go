package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/seenimoa/tickerlab/internal/analysis/gaps"
	"github.com/seenimoa/tickerlab/internal/datasource"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// symbolParam validates the symbol query parameter, writing a 400 when it
// is missing or malformed.
func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sym, err := utils.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return sym, true
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Profile(r.Context(), sym))
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.News(r.Context(), sym))
}

func (s *Server) handleIntraday(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	day, err := utils.ParseDay(strings.TrimSpace(r.URL.Query().Get("date")), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	resp, err := s.svc.Intraday(r.Context(), sym, day)
	if err != nil {
		writeError(w, intradayStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// intradayStatus maps adapter errors onto HTTP statuses.
func intradayStatus(err error) int {
	switch {
	case errors.Is(err, datasource.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrUnexpectedShape):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	sym, ok := symbolParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	months := s.cfg.Gaps.DefaultMonths
	if v := q.Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "months must be an integer")
			return
		}
		months = n
	}
	if err := gaps.ValidateMonths(months); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := s.cfg.Gaps.DefaultThreshold
	if v := q.Get("gap_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "gap_threshold must be a number")
			return
		}
		threshold = f
	}
	if err := gaps.ValidateThreshold(threshold); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Gaps(r.Context(), sym, months, threshold))
}
