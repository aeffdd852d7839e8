package collector

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestMakeVehicleTracker_RejectsInvalidTTL(t *testing.T) {
	is := is.New(t)

	_, err := MakeVehicleTracker(0)
	is.True(err != nil)

	_, err = MakeVehicleTracker(-1)
	is.True(err != nil)

	tracker, err := MakeVehicleTracker(1)
	is.NoErr(err)
	is.True(tracker != nil)
}

func TestVehicleTracker_Update(t *testing.T) {
	is := is.New(t)

	tracker, err := MakeVehicleTracker(5)
	is.NoErr(err)

	now := time.Now().UTC()

	previous := tracker.Update("garage:P93123", "20260829T120000Z", now,
		floatPtr(44.79215), floatPtr(20.44911), "1234", strPtr("31"))
	is.True(previous == nil)

	state := tracker.GetVehicleState("garage:P93123")
	is.True(state != nil)
	is.Equal(state.CyclesSeen, 1)
	is.Equal(state.FirstSeenCycleId, "20260829T120000Z")
	is.Equal(state.LastStopCode, "1234")

	previous = tracker.Update("garage:P93123", "20260829T120100Z", now.Add(time.Minute),
		floatPtr(44.79301), floatPtr(20.45002), "5678", strPtr("31"))
	is.True(previous != nil)
	is.Equal(previous.LastStopCode, "1234")

	state = tracker.GetVehicleState("garage:P93123")
	is.Equal(state.CyclesSeen, 2)
	is.Equal(state.FirstSeenCycleId, "20260829T120000Z")
	is.Equal(state.LastCycleId, "20260829T120100Z")
	is.Equal(state.LastStopCode, "5678")
}

func TestVehicleTracker_DetectMovement(t *testing.T) {
	is := is.New(t)

	tracker, err := MakeVehicleTracker(5)
	is.NoErr(err)

	movement := tracker.DetectMovement("garage:P93123", "1234",
		floatPtr(44.79215), floatPtr(20.44911))
	is.True(movement.IsNew)

	tracker.Update("garage:P93123", "20260829T120000Z", time.Now().UTC(),
		floatPtr(44.79215), floatPtr(20.44911), "1234", strPtr("31"))

	// same stop, same position
	movement = tracker.DetectMovement("garage:P93123", "1234",
		floatPtr(44.79215), floatPtr(20.44911))
	is.True(!movement.IsNew)
	is.True(!movement.StopChanged)
	is.True(movement.DistanceKm != nil)
	is.True(*movement.DistanceKm < 0.001)
	is.Equal(movement.PreviousStopCode, "1234")

	// different stop, roughly 111m north
	movement = tracker.DetectMovement("garage:P93123", "5678",
		floatPtr(44.79315), floatPtr(20.44911))
	is.True(movement.StopChanged)
	is.True(movement.DistanceKm != nil)
	is.True(*movement.DistanceKm > 0.1 && *movement.DistanceKm < 0.13)
}

func TestVehicleTracker_DetectMovement_MissingCoordinates(t *testing.T) {
	is := is.New(t)

	tracker, err := MakeVehicleTracker(5)
	is.NoErr(err)

	tracker.Update("hash:abc", "20260829T120000Z", time.Now().UTC(),
		nil, nil, "1234", strPtr("31"))

	movement := tracker.DetectMovement("hash:abc", "1234",
		floatPtr(44.79215), floatPtr(20.44911))
	is.True(!movement.IsNew)
	is.True(movement.DistanceKm == nil)
}

func TestVehicleTracker_CleanupEvictsAfterTTL(t *testing.T) {
	is := is.New(t)

	tracker, err := MakeVehicleTracker(2)
	is.NoErr(err)

	tracker.Update("garage:P93123", "c0", time.Now().UTC(),
		nil, nil, "1234", nil)
	is.Equal(tracker.VehicleCount(), 1)

	is.Equal(tracker.Cleanup(), 0)

	// second cleanup pushes the only sighting outside the two cycle window
	is.Equal(tracker.Cleanup(), 1)
	is.Equal(tracker.VehicleCount(), 0)
	is.True(tracker.GetVehicleState("garage:P93123") == nil)
}

func TestVehicleTracker_CleanupKeepsRecentlySeen(t *testing.T) {
	is := is.New(t)

	tracker, err := MakeVehicleTracker(2)
	is.NoErr(err)

	tracker.Update("garage:P93123", "c0", time.Now().UTC(), nil, nil, "1234", nil)
	tracker.Cleanup()

	// seen again in a later cycle, the stale bucket entry must not evict it
	tracker.Update("garage:P93123", "c1", time.Now().UTC(), nil, nil, "5678", nil)
	is.Equal(tracker.Cleanup(), 0)
	is.Equal(tracker.VehicleCount(), 1)

	// no sightings since, the ttl finally runs out
	is.Equal(tracker.Cleanup(), 1)
	is.Equal(tracker.VehicleCount(), 0)
}

func TestGreatCircleKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expectMin, expectMax   float64
	}{
		{
			name: "same point",
			lat1: 44.79215, lon1: 20.44911,
			lat2: 44.79215, lon2: 20.44911,
			expectMin: 0, expectMax: 0.0001,
		},
		{
			name: "one degree of latitude",
			lat1: 44.0, lon1: 20.0,
			lat2: 45.0, lon2: 20.0,
			expectMin: 110, expectMax: 112,
		},
		{
			name: "across town",
			lat1: 44.8125, lon1: 20.4612,
			lat2: 44.8176, lon2: 20.4569,
			expectMin: 0.5, expectMax: 0.8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			distance := greatCircleKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if distance < tt.expectMin || distance > tt.expectMax {
				t.Errorf("expected distance between %v and %v, got %v",
					tt.expectMin, tt.expectMax, distance)
			}
		})
	}
}
