package daily

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateKey(t *testing.T) {
	ts := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, "2024-03-09", DateKey(ts), "date key is UTC-based")

	utc := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, DateKey(utc), DateKey(ts))
}

func TestDeckSeed_Deterministic(t *testing.T) {
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	a := DeckSeed(day, "salt")
	b := DeckSeed(day.Add(5*time.Hour), "salt")
	assert.Equal(t, a, b, "same date + salt → same seed")

	assert.NotEqual(t, a, DeckSeed(day, "other-salt"), "salt changes the seed")
	assert.NotEqual(t, a, DeckSeed(day.AddDate(0, 0, 1), "salt"), "date changes the seed")

	assert.GreaterOrEqual(t, a, int64(0), "seed is non-negative")
}
