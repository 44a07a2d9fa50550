package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
)

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes in memory.
type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr error
	connects   int
	messages   []published
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func testCatch() datastore.CatchRecord {
	program := "program-1"
	return datastore.CatchRecord{
		ID:        "5b0f7c1e-8f0a-4a7e-9a53-3c1f3f0f5e11",
		Timestamp: time.Date(2024, 6, 21, 14, 30, 0, 0, time.UTC),
		FishInfo:  &datastore.FishInfo{CommonName: "Walleye", ScientificName: "Sander vitreus"},
		Location:  &datastore.LocationFix{Latitude: 41.7008, Longitude: -83.0453},
		ProgramID: &program,
		Program:   &datastore.Program{ID: program, Name: "Bandits 2.0 mph"},
		Lure:      &datastore.Lure{Manufacturer: "Bandit", Color: "Pink Lemonade"},
		Weight:    6.2,
		Length:    24.5,
	}
}
