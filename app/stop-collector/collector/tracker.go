package collector

import (
	"fmt"
	"math"
	"time"
)

// VehicleState is the last known state of a vehicle key, kept across cycles.
// Owned exclusively by the VehicleTracker.
type VehicleState struct {
	VehicleKey     string
	LastCycleId    string
	LastObservedAt time.Time
	LastLat        *float64
	LastLon        *float64
	LastStopCode   string
	LastLineNumber *string
	// FirstSeenCycleId is preserved from the first sighting across all later updates
	FirstSeenCycleId string
	CyclesSeen       int
}

// MovementResult reports how a vehicle moved relative to its previous sighting.
// IsNew is true for a never-seen key, in which case no other field is meaningful.
type MovementResult struct {
	IsNew       bool
	StopChanged bool
	// DistanceKm is the great circle distance from the previous position,
	// nil when either observation lacks coordinates
	DistanceKm       *float64
	PreviousStopCode string
	PreviousLat      *float64
	PreviousLon      *float64
}

// VehicleTracker retains per-key state across collection cycles and evicts
// vehicles unseen for ttlCycles cleanups. The hot update path stays cheap, the
// eviction sweep does the expensive work once per cycle.
type VehicleTracker struct {
	states    map[string]*VehicleState
	ttlCycles int
	// cycleCounter is the internal cycle ordinal, advanced by Cleanup
	cycleCounter int
	// cycleVehicles indexes which keys were touched during each cycle ordinal
	cycleVehicles map[int]map[string]bool
}

// MakeVehicleTracker creates a tracker evicting vehicles unseen for ttlCycles.
// A TTL below one is a configuration error.
func MakeVehicleTracker(ttlCycles int) (*VehicleTracker, error) {
	if ttlCycles < 1 {
		return nil, fmt.Errorf("ttlCycles must be at least 1, got %d", ttlCycles)
	}
	return &VehicleTracker{
		states:        make(map[string]*VehicleState),
		ttlCycles:     ttlCycles,
		cycleVehicles: make(map[int]map[string]bool),
	}, nil
}

// Update records the new state for vehicleKey and returns the previous state,
// nil on the first sighting. The first seen cycle id survives updates and the
// cycles seen counter increments by one per update.
func (t *VehicleTracker) Update(vehicleKey string, cycleId string, observedAt time.Time,
	lat *float64, lon *float64, stopCode string, lineNumber *string) *VehicleState {

	previous := t.states[vehicleKey]

	state := &VehicleState{
		VehicleKey:       vehicleKey,
		LastCycleId:      cycleId,
		LastObservedAt:   observedAt,
		LastLat:          lat,
		LastLon:          lon,
		LastStopCode:     stopCode,
		LastLineNumber:   lineNumber,
		FirstSeenCycleId: cycleId,
		CyclesSeen:       1,
	}
	if previous != nil {
		state.FirstSeenCycleId = previous.FirstSeenCycleId
		state.CyclesSeen = previous.CyclesSeen + 1
	}
	t.states[vehicleKey] = state

	touched := t.cycleVehicles[t.cycleCounter]
	if touched == nil {
		touched = make(map[string]bool)
		t.cycleVehicles[t.cycleCounter] = touched
	}
	touched[vehicleKey] = true

	return previous
}

// DetectMovement compares the current sighting against the retained state for
// vehicleKey. Must be called before Update for the same sighting, Update
// overwrites the state being compared against.
func (t *VehicleTracker) DetectMovement(vehicleKey string, currentStopCode string,
	currentLat *float64, currentLon *float64) MovementResult {

	previous := t.states[vehicleKey]
	if previous == nil {
		return MovementResult{IsNew: true}
	}

	var distanceKm *float64
	if previous.LastLat != nil && previous.LastLon != nil &&
		currentLat != nil && currentLon != nil {
		distance := greatCircleKm(*previous.LastLat, *previous.LastLon, *currentLat, *currentLon)
		distanceKm = &distance
	}

	return MovementResult{
		StopChanged:      previous.LastStopCode != currentStopCode,
		DistanceKm:       distanceKm,
		PreviousStopCode: previous.LastStopCode,
		PreviousLat:      previous.LastLat,
		PreviousLon:      previous.LastLon,
	}
}

// Cleanup advances the cycle ordinal and evicts every key whose most recent
// touch fell out of the ttl window. A key recorded in a stale cycle bucket
// survives if it was also touched in any cycle still inside the window.
// Returns the number of vehicles evicted.
func (t *VehicleTracker) Cleanup() int {
	t.cycleCounter++

	staleCycle := t.cycleCounter - t.ttlCycles
	if staleCycle < 0 {
		return 0
	}

	candidates := make(map[string]bool)
	var staleBuckets []int
	for cycle, touched := range t.cycleVehicles {
		if cycle <= staleCycle {
			staleBuckets = append(staleBuckets, cycle)
			for vehicleKey := range touched {
				candidates[vehicleKey] = true
			}
		}
	}

	evicted := 0
	for vehicleKey := range candidates {
		if t.states[vehicleKey] == nil {
			continue
		}
		stale := true
		for cycle, touched := range t.cycleVehicles {
			if cycle > staleCycle && touched[vehicleKey] {
				stale = false
				break
			}
		}
		if stale {
			delete(t.states, vehicleKey)
			evicted++
		}
	}

	for _, cycle := range staleBuckets {
		delete(t.cycleVehicles, cycle)
	}
	return evicted
}

// VehicleCount reports how many vehicles are currently tracked
func (t *VehicleTracker) VehicleCount() int {
	return len(t.states)
}

// GetVehicleState retrieves the retained state for vehicleKey, nil if untracked
func (t *VehicleTracker) GetVehicleState(vehicleKey string) *VehicleState {
	return t.states[vehicleKey]
}

const earthRadiusKm = 6371.0

// greatCircleKm computes the haversine distance between two positions in kilometers
func greatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	radLat1 := lat1 * math.Pi / 180
	radLat2 := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(radLat1)*math.Cos(radLat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
