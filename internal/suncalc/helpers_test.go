package suncalc

import "time"

// Lake Erie western basin
const (
	testLatitude  = 41.7008
	testLongitude = -83.0453
)

func newTestSunCalc() *SunCalc {
	return NewSunCalc(time.UTC)
}

// midsummerDate returns June 21, 2024 noon UTC
func midsummerDate() time.Time {
	return time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
}
