package api

import (
	"net/http"
	"time"

	"github.com/seenimoa/tickerlab/internal/config"
	"github.com/seenimoa/tickerlab/internal/datasource"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	Name         string                 `json:"name"`
	Timezone     string                 `json:"timezone"`
	MarketStatus string                 `json:"market_status"`
	Keys         []config.KeyStatus     `json:"keys"`
	Caches       []datasource.CacheStat `json:"caches"`
}

// handleStatus reports credential presence (masked) and cache occupancy.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: StatusResponse{
			Name:         config.AppName,
			Timezone:     s.loc.String(),
			MarketStatus: utils.MarketStatus(time.Now(), s.loc),
			Keys:         config.CheckAPIKeys(s.cfg),
			Caches:       s.svc.CacheStats(),
		},
	})
}
