package notification

import (
	"context"
	"sync"

	"github.com/trolltrack/trolltrack/internal/weather"
)

type sentMessage struct {
	title   string
	message string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{title: title, message: message})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func goodSnapshot(place string) weather.Snapshot {
	return weather.Snapshot{
		LocationName:        place,
		Latitude:            41.7008,
		Longitude:           -83.0453,
		Temperature:         68,
		WindSpeed:           7,
		WindDirection:       225,
		Visibility:          10,
		WeatherCondition:    "Partly cloudy",
		PrecipitationChance: 20,
	}
}

func windySnapshot(place string) weather.Snapshot {
	s := goodSnapshot(place)
	s.WindSpeed = 25
	return s
}
