package location

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/errors"
)

const (
	devicesLine = `{"class":"DEVICES","devices":[{"class":"DEVICE","path":"/dev/ttyACM0","driver":"u-blox"}]}`
	watchLine   = `{"class":"WATCH","enable":true,"json":true}`
	noFixLine   = `{"class":"TPV","device":"/dev/ttyACM0","mode":1}`
	fix3DLine   = `{"class":"TPV","device":"/dev/ttyACM0","mode":3,"time":"2024-06-21T14:30:00.000Z","lat":41.7008,"lon":-83.0453,"altHAE":174.2,"eph":3.5,"track":225.0,"speed":1.8}`
	fix2DLine   = `{"class":"TPV","mode":2,"lat":41.5120,"lon":-82.9377,"alt":170.0}`
)

func TestGpsdSourceFix(t *testing.T) {
	t.Parallel()

	addr := startFakeGpsd(t, []string{devicesLine, watchLine, "not json", noFixLine, fix3DLine}, false)
	src := NewGpsdSource(addr)

	fix, err := src.Locate(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 41.7008, fix.Latitude, 1e-9)
	assert.InDelta(t, -83.0453, fix.Longitude, 1e-9)
	require.NotNil(t, fix.Altitude)
	assert.InDelta(t, 174.2, *fix.Altitude, 1e-9)
	require.NotNil(t, fix.Accuracy)
	require.NotNil(t, fix.Course)
	require.NotNil(t, fix.Speed)
	assert.Equal(t, time.Date(2024, 6, 21, 14, 30, 0, 0, time.UTC), fix.Timestamp)
	assert.Equal(t, "gpsd", fix.Source)
}

func TestGpsdSource2DFixHasNoAltitude(t *testing.T) {
	t.Parallel()

	addr := startFakeGpsd(t, []string{devicesLine, fix2DLine}, false)
	fix, err := NewGpsdSource(addr).Locate(t.Context())
	require.NoError(t, err)
	assert.Nil(t, fix.Altitude)
	assert.False(t, fix.Timestamp.IsZero(), "missing time falls back to the clock")
}

func TestGpsdSourceFailures(t *testing.T) {
	t.Parallel()

	t.Run("no devices", func(t *testing.T) {
		t.Parallel()
		addr := startFakeGpsd(t, []string{`{"class":"DEVICES","devices":[]}`}, true)
		_, err := NewGpsdSource(addr).Locate(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonUnsupported)
	})

	t.Run("no fix before deadline", func(t *testing.T) {
		t.Parallel()
		addr := startFakeGpsd(t, []string{devicesLine, noFixLine}, true)
		ctx, cancel := contextWithTimeout(t, 100*time.Millisecond)
		defer cancel()

		_, err := NewGpsdSource(addr).Locate(ctx)
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonNoFix)
	})

	t.Run("silent daemon times out", func(t *testing.T) {
		t.Parallel()
		addr := startFakeGpsd(t, nil, true)
		ctx, cancel := contextWithTimeout(t, 100*time.Millisecond)
		defer cancel()

		_, err := NewGpsdSource(addr).Locate(ctx)
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonTimeout)
	})

	t.Run("connection closed", func(t *testing.T) {
		t.Parallel()
		addr := startFakeGpsd(t, []string{devicesLine}, false)
		_, err := NewGpsdSource(addr).Locate(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonNoFix)
	})

	t.Run("daemon not running", func(t *testing.T) {
		t.Parallel()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = NewGpsdSource(addr).Locate(t.Context())
		requireCategory(t, err, errors.CategoryLocationUnavailable)
		requireReason(t, err, ReasonDisabled)
	})
}
