package weather

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// apiResponse covers current.json, forecast.json and astronomy.json; each
// endpoint fills a different subset.
type apiResponse struct {
	Location  *apiLocation  `json:"location"`
	Current   *apiCurrent   `json:"current"`
	Forecast  *apiForecast  `json:"forecast"`
	Astronomy *apiAstronomy `json:"astronomy"`
}

type apiLocation struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TzID      string  `json:"tz_id"`
	LocalTime string  `json:"localtime"`
}

type apiCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

type apiAirQuality struct {
	USEPAIndex *int `json:"us-epa-index"`
}

type apiCurrent struct {
	LastUpdatedEpoch int64          `json:"last_updated_epoch"`
	LastUpdated      string         `json:"last_updated"`
	TempF            float64        `json:"temp_f"`
	IsDay            int            `json:"is_day"`
	Condition        apiCondition   `json:"condition"`
	WindMph          float64        `json:"wind_mph"`
	WindDegree       float64        `json:"wind_degree"`
	WindDir          string         `json:"wind_dir"`
	PressureIn       float64        `json:"pressure_in"`
	PrecipIn         float64        `json:"precip_in"`
	Humidity         int            `json:"humidity"`
	Cloud            int            `json:"cloud"`
	FeelsLikeF       float64        `json:"feelslike_f"`
	DewPointF        float64        `json:"dewpoint_f"`
	VisMiles         float64        `json:"vis_miles"`
	UV               float64        `json:"uv"`
	GustMph          float64        `json:"gust_mph"`
	WaterTempF       *float64       `json:"water_temp_f"`
	ChanceOfRain     *int           `json:"chance_of_rain"`
	AirQuality       *apiAirQuality `json:"air_quality"`
}

type apiForecast struct {
	ForecastDay []apiForecastDay `json:"forecastday"`
}

type apiForecastDay struct {
	Date  string    `json:"date"`
	Day   apiDay    `json:"day"`
	Astro apiAstro  `json:"astro"`
	Hour  []apiHour `json:"hour"`
}

type apiDay struct {
	MaxTempF          float64      `json:"maxtemp_f"`
	MinTempF          float64      `json:"mintemp_f"`
	AvgTempF          float64      `json:"avgtemp_f"`
	MaxWindMph        float64      `json:"maxwind_mph"`
	TotalPrecipIn     float64      `json:"totalprecip_in"`
	AvgVisMiles       float64      `json:"avgvis_miles"`
	AvgHumidity       float64      `json:"avghumidity"`
	DailyChanceOfRain int          `json:"daily_chance_of_rain"`
	Condition         apiCondition `json:"condition"`
	UV                float64      `json:"uv"`
}

type apiHour struct {
	Time       string  `json:"time"`
	PressureIn float64 `json:"pressure_in"`
	WindDegree float64 `json:"wind_degree"`
	GustMph    float64 `json:"gust_mph"`
	Cloud      int     `json:"cloud"`
	FeelsLikeF float64 `json:"feelslike_f"`
	DewPointF  float64 `json:"dewpoint_f"`
}

type apiAstronomy struct {
	Astro apiAstro `json:"astro"`
}

type apiAstro struct {
	Sunrise          string    `json:"sunrise"`
	Sunset           string    `json:"sunset"`
	Moonrise         string    `json:"moonrise"`
	Moonset          string    `json:"moonset"`
	MoonPhase        string    `json:"moon_phase"`
	MoonIllumination flexFloat `json:"moon_illumination"`
	IsMoonUp         int       `json:"is_moon_up"`
	IsSunUp          int       `json:"is_sun_up"`
}

// apiErrorBody is the error envelope, e.g. {"error":{"code":1006,"message":"No matching location found."}}
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// API error codes with a specific meaning
const (
	apiCodeNoLocation = 1006
	apiCodeKeyInvalid = 2006
	apiCodeQuota      = 2007
	apiCodeKeyDisable = 2008
)

// flexFloat accepts a JSON number or a numeric string such as "45" or "45%".
// The API has served moon_illumination both ways.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
