package dht

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// MockSensor produces a slowly drifting synthetic reading, used when
// MOCK_SENSOR_MODE is set (spec.md §6) so the rest of the system can be
// exercised without real hardware attached.
type MockSensor struct {
	rnd   *rand.Rand
	start time.Time
}

func NewMockSensor(seed int64) *MockSensor {
	return &MockSensor{rnd: rand.New(rand.NewSource(seed)), start: time.Now()}
}

func (m *MockSensor) Read(ctx context.Context) (float64, float64, error) {
	t := time.Since(m.start).Seconds()
	temperature := 22 + 3*math.Sin(t/60) + (m.rnd.Float64()-0.5)
	humidity := 55 + 10*math.Sin(t/90+1) + (m.rnd.Float64()-0.5)*2
	return temperature, humidity, nil
}
