package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

// StocksHandler serves the company name autocomplete endpoint
type StocksHandler struct {
	logger arbor.ILogger
}

func NewStocksHandler(logger arbor.ILogger) *StocksHandler {
	return &StocksHandler{logger: logger}
}

// SearchHandler matches companies by ticker or name fragment.
// GET /api/stocks/search?q=
func (h *StocksHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Missing required query parameter: q")
		return
	}

	matches := common.SearchTickers(query)
	results := make([]models.TickerMatch, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.TickerMatch{
			Ticker:      m.Ticker,
			CompanyName: m.CompanyName,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}
