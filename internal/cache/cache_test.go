package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misua/quake-monitor-web/internal/domain"
)

func weatherRecords(at time.Time, temp float64) []domain.Record {
	return []domain.Record{{
		Kind:       domain.KindWeather,
		SourceID:   "open-meteo",
		ObservedAt: at,
		Weather:    &domain.WeatherReading{TemperatureC: temp},
	}}
}

func TestStoreRegister(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)
	s.Register("open-meteo", domain.KindWeather, 30*time.Second)

	entry, ok := s.Get("open-meteo")
	require.True(t, ok)
	assert.Equal(t, domain.KindWeather, entry.Kind)
	assert.Empty(t, entry.Records)
	assert.True(t, entry.Stale, "never-fetched source starts stale")

	_, ok = s.Get("unknown")
	assert.False(t, ok)
}

func TestStoreSuccessThenFailuresKeepValue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)
	s.Register("open-meteo", domain.KindWeather, 30*time.Second)

	fetchedAt := clock.Now()
	s.RecordSuccess("open-meteo", weatherRecords(fetchedAt, 31.4))

	entry, _ := s.Get("open-meteo")
	require.Len(t, entry.Records, 1)
	assert.False(t, entry.Stale)
	assert.Equal(t, fetchedAt, entry.LastFetchedAt)

	// Three consecutive timeouts: the reading survives, staleness and the
	// error surface.
	for i := 0; i < 3; i++ {
		clock.Advance(30 * time.Second)
		s.RecordFailure("open-meteo", errors.New("fetch timeout"))
	}

	entry, _ = s.Get("open-meteo")
	require.Len(t, entry.Records, 1, "failures must not drop the last value")
	assert.Equal(t, 31.4, entry.Records[0].Weather.TemperatureC)
	assert.True(t, entry.Stale)
	assert.Equal(t, 3, entry.FailedAttempts)
	assert.Equal(t, "fetch timeout", entry.LastError)
	assert.Equal(t, fetchedAt, entry.LastFetchedAt, "failure must not touch the success timestamp")

	// Recovery clears the failure state.
	s.RecordSuccess("open-meteo", weatherRecords(clock.Now(), 30.9))
	entry, _ = s.Get("open-meteo")
	assert.False(t, entry.Stale)
	assert.Zero(t, entry.FailedAttempts)
	assert.Empty(t, entry.LastError)
	assert.Equal(t, 30.9, entry.Records[0].Weather.TemperatureC)
}

func TestStoreStalenessByAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)
	s.Register("open-meteo", domain.KindWeather, 30*time.Second)
	s.RecordSuccess("open-meteo", weatherRecords(clock.Now(), 31.4))

	clock.Advance(60 * time.Second)
	entry, _ := s.Get("open-meteo")
	assert.False(t, entry.Stale, "exactly interval*staleFactor is still fresh")

	clock.Advance(time.Second)
	entry, _ = s.Get("open-meteo")
	assert.True(t, entry.Stale)
}

func TestStoreEmptySuccessRefreshesTimestamp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)
	s.Register("pagasa-typhoon", domain.KindTyphoon, 30*time.Second)

	s.RecordSuccess("pagasa-typhoon", []domain.Record{{
		Kind:       domain.KindTyphoon,
		SourceID:   "pagasa-typhoon",
		ObservedAt: clock.Now(),
		Typhoon:    &domain.TyphoonAdvisory{Name: "PEPITO"},
	}})

	clock.Advance(45 * time.Second)
	s.RecordSuccess("pagasa-typhoon", nil)

	entry, _ := s.Get("pagasa-typhoon")
	assert.False(t, entry.Stale)
	assert.Equal(t, clock.Now(), entry.LastFetchedAt)
	require.Len(t, entry.Records, 1, "empty fetch keeps the previous advisory")
	assert.Equal(t, "PEPITO", entry.Records[0].Typhoon.Name)
}

func TestStoreStaleFactorClamped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 0.25)
	s.Register("open-meteo", domain.KindWeather, 40*time.Second)
	s.RecordSuccess("open-meteo", weatherRecords(clock.Now(), 31.4))

	clock.Advance(39 * time.Second)
	entry, _ := s.Get("open-meteo")
	assert.False(t, entry.Stale, "factor below 1 clamps to the full interval")
}

func TestStoreSnapshotOrderedAndCopied(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)
	s.Register("usgs", domain.KindEarthquake, time.Minute)
	s.Register("open-meteo", domain.KindWeather, 30*time.Second)
	s.RecordSuccess("open-meteo", weatherRecords(clock.Now(), 31.4))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "open-meteo", snap[0].SourceID)
	assert.Equal(t, "usgs", snap[1].SourceID)

	// Truncating the snapshot slice must not leak into the store.
	snap[0].Records = snap[0].Records[:0]
	entry, _ := s.Get("open-meteo")
	require.Len(t, entry.Records, 1)
}

func TestStoreIgnoresUnregisteredSources(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, 2)

	s.RecordSuccess("ghost", weatherRecords(clock.Now(), 1))
	s.RecordFailure("ghost", errors.New("boom"))

	_, ok := s.Get("ghost")
	assert.False(t, ok)
}
