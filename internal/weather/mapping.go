package weather

import (
	"math"
	"strings"
	"time"
)

// astroTimeLayout is how the API formats sun and moon times, e.g. "05:55 AM"
const astroTimeLayout = "2006-01-02 03:04 PM"

// timeZone resolves the API time zone, falling back to local time
func timeZone(loc *apiLocation) *time.Location {
	if loc == nil || loc.TzID == "" {
		return time.Local
	}
	tz, err := time.LoadLocation(loc.TzID)
	if err != nil {
		return time.Local
	}
	return tz
}

func applyLocation(s *Snapshot, loc *apiLocation) {
	if loc == nil {
		return
	}
	s.Latitude = loc.Lat
	s.Longitude = loc.Lon
	s.LocationName = loc.Name
	s.Region = loc.Region
	s.Country = loc.Country
	s.TimeZone = loc.TzID
	s.LocalTime = loc.LocalTime
}

// mapCurrent converts a current.json payload into a snapshot
func mapCurrent(cur *apiCurrent, loc *apiLocation, fetchedAt time.Time) Snapshot {
	s := Snapshot{
		Timestamp:        fetchedAt.UTC(),
		LastUpdated:      cur.LastUpdated,
		IsDay:            cur.IsDay == 1,
		Temperature:      cur.TempF,
		FeelsLike:        cur.FeelsLikeF,
		DewPoint:         cur.DewPointF,
		Humidity:         cur.Humidity,
		Pressure:         InHgToHPa(cur.PressureIn),
		WindSpeed:        cur.WindMph,
		WindGust:         cur.GustMph,
		WindDirection:    cur.WindDegree,
		WindDirectionAPI: cur.WindDir,
		Visibility:       cur.VisMiles,
		CloudCover:       cur.Cloud,
		WeatherCondition: cur.Condition.Text,
		Icon:             normalizeIcon(cur.Condition.Icon),
		UVIndex:          cur.UV,
		RainfallAmount:   cur.PrecipIn,
		WaterTemperature: cur.WaterTempF,
	}
	if cur.ChanceOfRain != nil {
		s.PrecipitationChance = *cur.ChanceOfRain
	}
	if cur.AirQuality != nil && cur.AirQuality.USEPAIndex != nil {
		idx := *cur.AirQuality.USEPAIndex
		s.AirQualityIndex = &idx
	}
	s.AirQualityDescription = AirQualityDescription(s.AirQualityIndex)
	applyLocation(&s, loc)
	return s
}

// mapForecastDay converts one forecast day. Day pressure is the mean of the
// hourly readings since the daily summary carries none.
func mapForecastDay(day *apiForecastDay, loc *apiLocation, tz *time.Location) Snapshot {
	s := Snapshot{
		Date:                  day.Date,
		Temperature:           day.Day.AvgTempF,
		TemperatureMin:        day.Day.MinTempF,
		TemperatureMax:        day.Day.MaxTempF,
		Humidity:              int(math.Round(day.Day.AvgHumidity)),
		WindSpeed:             day.Day.MaxWindMph,
		Visibility:            day.Day.AvgVisMiles,
		WeatherCondition:      day.Day.Condition.Text,
		Icon:                  normalizeIcon(day.Day.Condition.Icon),
		UVIndex:               day.Day.UV,
		PrecipitationChance:   day.Day.DailyChanceOfRain,
		RainfallAmount:        day.Day.TotalPrecipIn,
		IsDay:                 true,
		AirQualityDescription: AirQualityDescription(nil),
	}
	if ts, err := time.ParseInLocation(time.DateOnly, day.Date, tz); err == nil {
		s.Timestamp = ts
	}

	if n := len(day.Hour); n > 0 {
		var pressure, gust, cloud, feels, dew float64
		var sinSum, cosSum float64
		for _, h := range day.Hour {
			pressure += h.PressureIn
			gust = max(gust, h.GustMph)
			cloud += float64(h.Cloud)
			feels += h.FeelsLikeF
			dew += h.DewPointF
			rad := h.WindDegree * math.Pi / 180
			sinSum += math.Sin(rad)
			cosSum += math.Cos(rad)
		}
		s.Pressure = InHgToHPa(pressure / float64(n))
		s.WindGust = gust
		s.CloudCover = int(math.Round(cloud / float64(n)))
		s.FeelsLike = feels / float64(n)
		s.DewPoint = dew / float64(n)
		// circular mean so 350 and 10 average to 0, not 180
		deg := math.Atan2(sinSum, cosSum) * 180 / math.Pi
		if deg < 0 {
			deg += 360
		}
		s.WindDirection = deg
	} else {
		s.FeelsLike = s.Temperature
	}

	astro := mapAstro(&day.Astro, day.Date, tz)
	s.Sunrise = astro.Sunrise
	s.Sunset = astro.Sunset
	s.Moonrise = astro.Moonrise
	s.Moonset = astro.Moonset
	s.MoonPhase = astro.MoonPhase
	s.MoonIllumination = astro.MoonIllumination

	applyLocation(&s, loc)
	return s
}

func mapAstro(a *apiAstro, date string, tz *time.Location) Astronomy {
	return Astronomy{
		Date:             date,
		Sunrise:          parseAstroTime(date, a.Sunrise, tz),
		Sunset:           parseAstroTime(date, a.Sunset, tz),
		Moonrise:         parseAstroTime(date, a.Moonrise, tz),
		Moonset:          parseAstroTime(date, a.Moonset, tz),
		MoonPhase:        a.MoonPhase,
		MoonIllumination: float64(a.MoonIllumination),
		IsSunUp:          a.IsSunUp == 1,
		IsMoonUp:         a.IsMoonUp == 1,
	}
}

// parseAstroTime combines a date with an "hh:mm AM" time. Values such as
// "No moonrise" yield the zero time.
func parseAstroTime(date, clock string, tz *time.Location) time.Time {
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(astroTimeLayout, date+" "+clock, tz)
	if err != nil {
		return time.Time{}
	}
	return t
}

// normalizeIcon turns the protocol-relative icon path into an https URL
func normalizeIcon(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}
