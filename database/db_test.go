package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// fakeRqlite records execute requests and replies with the configured results.
type fakeRqlite struct {
	mtx     sync.Mutex
	bodies  []string
	results string
}

func (f *fakeRqlite) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/db/execute" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mtx.Lock()
	f.bodies = append(f.bodies, string(body))
	results := f.results
	f.mtx.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(results))
}

func TestGenerateOutcomeID(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{
			name: "first day of month",
			date: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
			want: "2025-February-Week-1-XAUUSD",
		},
		{
			name: "end of first week",
			date: time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC),
			want: "2025-February-Week-1-XAUUSD",
		},
		{
			name: "start of second week",
			date: time.Date(2025, 2, 8, 10, 0, 0, 0, time.UTC),
			want: "2025-February-Week-2-XAUUSD",
		},
		{
			name: "month end",
			date: time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
			want: "2025-March-Week-5-XAUUSD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, generateOutcomeID(tt.date, "XAUUSD"), tt.want)
		})
	}
}

func TestDatabaseConfigValidate(t *testing.T) {
	cfg := &DatabaseConfig{}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "database endpoint cannot be an empty string"))

	_, err = NewDatabase(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPersistClosedTrade(t *testing.T) {
	fake := &fakeRqlite{results: `{"results":[{"last_insert_id":1,"rows_affected":1},{"last_insert_id":1,"rows_affected":1}],"time":0.001}`}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	// Ensure the database bootstraps its tables.
	db, err := NewDatabase(context.Background(), &DatabaseConfig{
		Endpoint: server.URL,
		User:     "user",
		Pass:     "pass",
		Logger:   &log.Logger,
	})
	assert.NoError(t, err)

	fake.mtx.Lock()
	assert.Equal(t, len(fake.bodies), 1)
	assert.True(t, strings.Contains(fake.bodies[0], "CREATE TABLE IF NOT EXISTS trade"))
	assert.True(t, strings.Contains(fake.bodies[0], "CREATE TABLE IF NOT EXISTS outcome"))
	fake.mtx.Unlock()

	trade := &position.Trade{
		ID:              "XAUUSD_1738681200_abcdef12",
		Instrument:      shared.Instrument{Symbol: "XAUUSD", Code: "XAU/USD", Category: shared.Commodities},
		Direction:       shared.Buy,
		Entry:           115,
		StopLoss:        95,
		InitialStopLoss: 95,
		TakeProfit1:     155,
		TakeProfit2:     195,
		Owner:           "42",
		State:           position.ClosedLoss,
		CreatedOn:       time.Date(2025, 2, 4, 15, 0, 0, 0, time.UTC),
		ClosedOn:        time.Date(2025, 2, 4, 15, 5, 0, 0, time.UTC),
		ExitPrice:       90,
	}

	// Ensure closed trades are journaled along with their weekly outcome.
	err = db.PersistClosedTrade(context.Background(), trade)
	assert.NoError(t, err)

	fake.mtx.Lock()
	assert.Equal(t, len(fake.bodies), 2)
	assert.True(t, strings.Contains(fake.bodies[1], "INSERT INTO trade"))
	assert.True(t, strings.Contains(fake.bodies[1], "XAUUSD_1738681200_abcdef12"))
	assert.True(t, strings.Contains(fake.bodies[1], "2025-February-Week-1-XAUUSD"))
	assert.True(t, strings.Contains(fake.bodies[1], "CLOSED_LOSS"))
	fake.mtx.Unlock()

	// Ensure open trades are not journaled.
	open := *trade
	open.State = position.Open
	err = db.PersistClosedTrade(context.Background(), &open)
	assert.Error(t, err)

	// Ensure statement errors are surfaced.
	fake.mtx.Lock()
	fake.results = `{"results":[{"error":"UNIQUE constraint failed: trade.id"}]}`
	fake.mtx.Unlock()

	err = db.PersistClosedTrade(context.Background(), trade)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "UNIQUE constraint failed"))
}
