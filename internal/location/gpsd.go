package location

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
)

const (
	gpsdWatch        = "?WATCH={\"enable\":true,\"json\":true};\n"
	gpsdMaxLine      = 64 * 1024
	gpsdDefaultLimit = 10 * time.Second
)

// gpsdReport holds the fields of the gpsd JSON reports the source reads.
// See gpsd_json(5).
type gpsdReport struct {
	Class   string            `json:"class"`
	Mode    int               `json:"mode"`
	Time    string            `json:"time"`
	Lat     *float64          `json:"lat"`
	Lon     *float64          `json:"lon"`
	Alt     *float64          `json:"alt"`
	AltHAE  *float64          `json:"altHAE"`
	Eph     *float64          `json:"eph"`
	Track   *float64          `json:"track"`
	Speed   *float64          `json:"speed"`
	Devices []json.RawMessage `json:"devices"`
}

// GpsdSource reads fixes from a gpsd daemon over its JSON socket protocol.
// Every Locate opens a fresh connection, enables watching and returns the
// first TPV report with a 2D or 3D fix.
type GpsdSource struct {
	addr   string
	dialer net.Dialer
	now    func() time.Time
}

// NewGpsdSource connects to gpsd at addr (host:port).
func NewGpsdSource(addr string) *GpsdSource {
	return &GpsdSource{addr: addr, now: time.Now}
}

func (g *GpsdSource) Name() string { return conf.LocationSourceGpsd }

func (g *GpsdSource) Locate(ctx context.Context) (Fix, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpsdDefaultLimit)
		defer cancel()
	}

	conn, err := g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		if ctx.Err() != nil {
			return Fix{}, unavailable(ctx.Err(), g.Name(), ReasonTimeout)
		}
		// Nothing listening: the receiver or the daemon is switched off.
		return Fix{}, g.fail(err, ReasonDisabled)
	}
	defer conn.Close()

	// Unblock the scanner when the context ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(gpsdWatch)); err != nil {
		return Fix{}, g.fail(err, ReasonDisabled)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), gpsdMaxLine)

	sawNoFix := false
	for scanner.Scan() {
		var report gpsdReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}

		switch report.Class {
		case "DEVICES":
			if len(report.Devices) == 0 {
				return Fix{}, g.fail(errors.NewStd("gpsd reports no GPS devices"), ReasonUnsupported)
			}
		case "TPV":
			if report.Mode < 2 || report.Lat == nil || report.Lon == nil {
				sawNoFix = true
				continue
			}
			return g.toFix(&report), nil
		}
	}

	reason := ReasonNoFix
	cause := scanner.Err()
	switch {
	case ctx.Err() != nil:
		cause = ctx.Err()
		if !sawNoFix {
			reason = ReasonTimeout
		}
	case cause == nil:
		cause = errors.NewStd("gpsd closed the connection")
	}
	return Fix{}, g.fail(cause, reason)
}

func (g *GpsdSource) toFix(r *gpsdReport) Fix {
	fix := Fix{
		Latitude:  *r.Lat,
		Longitude: *r.Lon,
		Accuracy:  r.Eph,
		Course:    r.Track,
		Speed:     r.Speed,
		Source:    g.Name(),
	}
	// gpsd 3.20 moved altitude to altHAE; older daemons only send alt.
	fix.Altitude = r.AltHAE
	if fix.Altitude == nil {
		fix.Altitude = r.Alt
	}
	if r.Mode < 3 {
		fix.Altitude = nil
	}

	fix.Timestamp = g.now().UTC()
	if t, err := time.Parse(time.RFC3339Nano, r.Time); err == nil {
		fix.Timestamp = t.UTC()
	}
	return fix
}

func (g *GpsdSource) fail(err error, reason string) error {
	return errors.New(err).
		Component("location").
		Category(errors.CategoryLocationUnavailable).
		Context("source", g.Name()).
		Context("address", g.addr).
		Context("reason", reason).
		Build()
}
