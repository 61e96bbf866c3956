package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrotrack/internal/domain"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "trains:line:2", KeyLineTrains("2"))
	assert.Equal(t, "trains:station:1:0158", KeyStationTrains("1", "0158"))
}

func TestNewRedisCache_RequiresTTL(t *testing.T) {
	_, err := NewRedisCache(Options{Addr: "localhost:0"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c, err := NewRedisCache(Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), TTL: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := "test:" + t.Name()

	miss, err := c.Trains(ctx, key+":missing")
	require.NoError(t, err)
	assert.Nil(t, miss)

	want := Snapshot{
		Trains:      []domain.TrainRecord{{TrainNumber: "K1234", Line: "1", Status: domain.StatusDeparted}},
		GeneratedAt: time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.StoreTrains(ctx, key, want))

	got, err := c.Trains(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Trains, got.Trains)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
}
