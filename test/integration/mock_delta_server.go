package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

// MockDeltaServer serves /v2/history/candles from a synthetic price path. It
// can drop ranges of candles, reject symbols and fail a number of requests to
// exercise the fetch pipeline end to end.
type MockDeltaServer struct {
	*httptest.Server

	mu            sync.Mutex
	rejected      map[string]bool
	holes         []hole
	serverErrors  int
	requestCount  int64
	requestedWins []models.FetchWindow
}

type hole struct {
	from, to int64 // [from, to)
}

type wireCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  string  `json:"close"`
	Volume float64 `json:"volume"`
}

// NewMockDeltaServer starts a server; callers must Close it.
func NewMockDeltaServer() *MockDeltaServer {
	m := &MockDeltaServer{rejected: make(map[string]bool)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// RejectSymbol makes every request for symbol answer success:false.
func (m *MockDeltaServer) RejectSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[symbol] = true
}

// DropRange omits candles with from <= time < to.
func (m *MockDeltaServer) DropRange(from, to int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holes = append(m.holes, hole{from: from, to: to})
}

// FailNext answers the next n requests with HTTP 503.
func (m *MockDeltaServer) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverErrors = n
}

// RequestCount returns the number of requests received.
func (m *MockDeltaServer) RequestCount() int64 {
	return atomic.LoadInt64(&m.requestCount)
}

// Windows returns the windows requested so far, in order.
func (m *MockDeltaServer) Windows() []models.FetchWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FetchWindow, len(m.requestedWins))
	copy(out, m.requestedWins)
	return out
}

func (m *MockDeltaServer) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&m.requestCount, 1)

	if r.URL.Path != "/v2/history/candles" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	symbol := q.Get("symbol")
	res := models.Resolution(q.Get("resolution"))
	start, errStart := strconv.ParseInt(q.Get("start"), 10, 64)
	end, errEnd := strconv.ParseInt(q.Get("end"), 10, 64)
	if errStart != nil || errEnd != nil || !res.Valid() {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requestedWins = append(m.requestedWins, models.FetchWindow{Start: start, End: end})
	if m.serverErrors > 0 {
		m.serverErrors--
		m.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	rejected := m.rejected[symbol]
	holes := append([]hole(nil), m.holes...)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if rejected {
		fmt.Fprintf(w, `{"success":false,"error":{"code":"invalid_contract","context":{"symbol":%q}}}`, symbol)
		return
	}

	step := int64(res.Minutes()) * 60
	first := (start + step - 1) / step * step

	// Newest first, like the live endpoint
	candles := make([]wireCandle, 0)
	for t := end / step * step; t >= first; t -= step {
		if inHole(holes, t) {
			continue
		}
		candles = append(candles, syntheticCandle(t, step))
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": candles})
}

func inHole(holes []hole, t int64) bool {
	for _, h := range holes {
		if t >= h.from && t < h.to {
			return true
		}
	}
	return false
}

// syntheticCandle derives a deterministic candle from its timestamp.
func syntheticCandle(t, step int64) wireCandle {
	i := t / step
	price := 2300 + float64(i%17) - 8 + float64(i%240)*0.05
	return wireCandle{
		Time:   t,
		Open:   price - 0.5,
		High:   price + 1.25,
		Low:    price - 1.25,
		Close:  strconv.FormatFloat(price, 'f', 2, 64),
		Volume: float64(10 + i%7),
	}
}
