package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

func TestSearchHandlerMatchesByNameAndTicker(t *testing.T) {
	h := NewStocksHandler(common.GetLogger())

	req := httptest.NewRequest("GET", "/api/stocks/search?q=tesla", nil)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query   string               `json:"query"`
		Results []models.TickerMatch `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tesla", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "TSLA", resp.Results[0].Ticker)

	// Ticker fragments match too.
	req = httptest.NewRequest("GET", "/api/stocks/search?q=AAP", nil)
	rec = httptest.NewRecorder()
	h.SearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AAPL")
}

func TestSearchHandlerNoMatches(t *testing.T) {
	h := NewStocksHandler(common.GetLogger())

	req := httptest.NewRequest("GET", "/api/stocks/search?q=zzzz", nil)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []models.TickerMatch `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	h := NewStocksHandler(common.GetLogger())

	req := httptest.NewRequest("GET", "/api/stocks/search", nil)
	rec := httptest.NewRecorder()
	h.SearchHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
