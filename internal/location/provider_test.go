package location

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

func TestCurrentLocationSavesFix(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	pub := &capturePublisher{}
	p := newTestProvider(t, WithSource(src), WithEventPublisher(pub))

	fix, err := p.CurrentLocation(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 41.7008, fix.Latitude, 1e-9)
	assert.Equal(t, 1, src.callCount())

	last, ok := p.LastKnown()
	require.True(t, ok)
	assert.Equal(t, fix, last)
	assert.Len(t, p.History(), 1)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeLocationUpdated, published[0].Type)
	assert.Equal(t, fix, published[0].Payload)
}

func TestCurrentLocationPermission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		checker   PermissionChecker
		wantErr   bool
		wantCalls int
	}{
		{"granted", StaticPermission(PermissionGranted), false, 1},
		{"denied", StaticPermission(PermissionDenied), true, 0},
		{"undecided without prompter", StaticPermission(PermissionPrompt), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := &fakeSource{}
			p := newTestProvider(t, WithSource(src), WithPermissionChecker(tt.checker))

			_, err := p.CurrentLocation(t.Context())
			if tt.wantErr {
				requireCategory(t, err, errors.CategoryPermissionDenied)
				_, ok := p.LastKnown()
				assert.False(t, ok, "no stale value may be returned or stored")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, src.callCount())
		})
	}
}

func TestRequestPermissionPrompts(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	settings.Location.Permission = string(PermissionPrompt)

	var prompts int
	var persisted Permission
	checker := NewSettingsPermission(settings,
		func(context.Context) (bool, error) {
			prompts++
			return true, nil
		},
		func(p Permission) { persisted = p })

	p, err := NewProvider(settings, nil, WithSource(&fakeSource{}), WithPermissionChecker(checker))
	require.NoError(t, err)
	defer p.Close()

	granted, err := p.RequestPermission(t.Context())
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, PermissionGranted, persisted)

	// Already decided: no second prompt.
	_, err = p.CurrentLocation(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, prompts)
}

func TestRequestPermissionPrompterError(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	settings.Location.Permission = string(PermissionPrompt)
	checker := NewSettingsPermission(settings, func(context.Context) (bool, error) {
		return false, fmt.Errorf("stdin closed")
	}, nil)

	p := newTestProvider(t, WithSource(&fakeSource{}), WithPermissionChecker(checker))
	granted, err := p.RequestPermission(t.Context())
	assert.False(t, granted)
	requireCategory(t, err, errors.CategoryPermissionDenied)

	state, err := checker.Check(t.Context())
	require.NoError(t, err)
	assert.Equal(t, PermissionPrompt, state, "a failed prompt leaves the state undecided")
}

func TestCurrentLocationSourceErrors(t *testing.T) {
	t.Parallel()

	t.Run("plain error becomes unavailable", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{results: []fakeResult{{err: fmt.Errorf("receiver unplugged")}}}
		p := newTestProvider(t, WithSource(src))

		_, err := p.CurrentLocation(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonNoFix)
		assert.Empty(t, p.History())
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		settings := createTestSettings(t)
		settings.Location.Timeout = 20 * time.Millisecond
		p, err := NewProvider(settings, nil, WithSource(blockingSource{}))
		require.NoError(t, err)
		defer p.Close()

		_, err = p.CurrentLocation(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonTimeout)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{results: []fakeResult{{fix: Fix{Latitude: 123, Longitude: 0}}}}
		p := newTestProvider(t, WithSource(src))

		_, err := p.CurrentLocation(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		assert.Empty(t, p.History())
	})
}

func TestHistoryBounded(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, WithSource(&fakeSource{}))
	for i := range MaxHistory + 1 {
		p.SaveLocation(Fix{Latitude: float64(i) / 10, Longitude: -83})
	}

	history := p.History()
	require.Len(t, history, MaxHistory)
	assert.InDelta(t, 0.1, history[0].Latitude, 1e-9, "oldest fix evicted first")
	assert.InDelta(t, float64(MaxHistory)/10, history[MaxHistory-1].Latitude, 1e-9)

	// The returned slice is a copy.
	history[0].Latitude = 99
	assert.NotEqual(t, 99.0, p.History()[0].Latitude)
}

func TestSaveLocationStampsTime(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, WithSource(&fakeSource{}))
	p.SaveLocation(Fix{Latitude: 41, Longitude: -83})

	last, ok := p.LastKnown()
	require.True(t, ok)
	assert.False(t, last.Timestamp.IsZero())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, WithSource(&fakeSource{}))
	updates, cancel := p.Subscribe(1)

	fix, err := p.CurrentLocation(t.Context())
	require.NoError(t, err)

	select {
	case got := <-updates:
		assert.Equal(t, fix, got)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the fix")
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open, "cancel closes the channel")

	// Saving after cancel must not panic on the closed channel.
	p.SaveLocation(Fix{Latitude: 1, Longitude: 1})
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewLocationMetrics(reg)
	require.NoError(t, err)

	p := newTestProvider(t, WithSource(&fakeSource{}), WithMetrics(m))
	updates, cancel := p.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 5 {
			p.SaveLocation(Fix{Latitude: float64(i), Longitude: 0})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SaveLocation blocked on a full subscriber")
	}

	got := <-updates
	assert.InDelta(t, 0.0, got.Latitude, 1e-9, "the buffered fix is the first one")
	assert.Len(t, p.History(), 5)
	assert.Positive(t, testutil.CollectAndCount(reg))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(createTestSettings(t), nil, WithSource(&fakeSource{}))
	require.NoError(t, err)

	a, cancelA := p.Subscribe(0)
	b, _ := p.Subscribe(0)
	p.Close()
	p.Close()

	_, openA := <-a
	_, openB := <-b
	assert.False(t, openA)
	assert.False(t, openB)
	cancelA()

	late, _ := p.Subscribe(1)
	_, open := <-late
	assert.False(t, open, "subscribing to a closed provider yields a closed channel")

	p.SaveLocation(Fix{Latitude: 1, Longitude: 1})
	assert.Empty(t, p.History())
}

func TestNewProviderSelectsSource(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t)
	assert.Equal(t, "fixture", p.SourceName())

	settings := createTestSettings(t)
	settings.Location.Source = "carrier-pigeon"
	_, err := NewProvider(settings, nil)
	requireCategory(t, err, errors.CategoryConfiguration)
}
