// Package exchange contains the client for the upstream market-data API.
//
// The collector depends only on the CandleFetcher interface, which performs a
// single bounded request for one symbol and one time window. Pagination,
// pacing and failure tolerance live in the collector package.
package exchange

import (
	"context"
	"fmt"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

// CandleFetcher retrieves raw candles for one window.
type CandleFetcher interface {
	// FetchCandles performs one request for req.Symbol over req.Window.
	//
	// On success it returns the candles exactly as the API sent them, which may
	// be fewer than the window could hold. Every failure (transport error,
	// non-success HTTP status, success:false body, undecodable body) is
	// returned as an error classified by internal/errors so the caller can
	// decide what to log; no partial result accompanies an error.
	FetchCandles(ctx context.Context, req FetchRequest) ([]models.Candle, error)
}

// FetchRequest represents a request for candles in one window
type FetchRequest struct {
	Symbol     string             `json:"symbol"`
	Resolution models.Resolution  `json:"resolution"`
	Window     models.FetchWindow `json:"window"`
}

// Validate checks the request parameters
func (r FetchRequest) Validate() error {
	if r.Symbol == "" {
		return &models.ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	if !r.Resolution.Valid() {
		return &models.ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", r.Resolution)}
	}
	return r.Window.Validate()
}
