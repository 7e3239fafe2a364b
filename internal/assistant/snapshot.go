package assistant

import (
	"context"
	"time"
)

// WaterQuality is the latest sensor reading for one tank.
type WaterQuality struct {
	PH              float64 `json:"ph"`
	TemperatureC    float64 `json:"temperature_c"`
	DissolvedOxygen float64 `json:"dissolved_oxygen"`
	Ammonia         float64 `json:"ammonia"`
	Nitrite         float64 `json:"nitrite"`
	Nitrate         float64 `json:"nitrate"`
	Salinity        float64 `json:"salinity"`
	Turbidity       float64 `json:"turbidity"`
}

// TankReading describes one tank and its current water quality.
type TankReading struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Species      string        `json:"species"`
	CapacityL    float64       `json:"capacity_l"`
	CurrentStock int           `json:"current_stock"`
	Location     string        `json:"location,omitempty"`
	Status       string        `json:"status,omitempty"`
	WaterQuality *WaterQuality `json:"water_quality,omitempty"`
}

// DomainSnapshot is the farm state sent alongside each query so the
// assistant can answer about specific tanks without a second round trip.
// PrimaryTankID, when set, names the tank the user is currently viewing.
type DomainSnapshot struct {
	Tanks         []TankReading `json:"tanks,omitempty"`
	PrimaryTankID string        `json:"primary_tank_id,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
}

// SnapshotProvider supplies the current farm snapshot at query time. A nil
// provider means queries travel without farm context.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*DomainSnapshot, error)
}
