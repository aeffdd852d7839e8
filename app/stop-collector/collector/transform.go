package collector

import (
	"strconv"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/UrbanObservatory/stopcast/business/data/gtfs"
)

// normalizedVehicle holds one upstream vehicle observation with every field
// parsed to its proper type. Missing or unparseable values are nil, never an error.
type normalizedVehicle struct {
	lineNumber      *string
	lineName        *string
	direction       *string
	secondsLeft     *int
	stationsBetween *int
	vehicleId       *string
	lat             *float64
	lon             *float64
}

// normalizeVehicle extracts typed fields from a raw vehicle observation.
// raw may be nil, every extraction is fallible on its own.
func normalizeVehicle(raw map[string]interface{}) normalizedVehicle {
	lat, lon := parseCoordsValue(raw["coords"])
	return normalizedVehicle{
		lineNumber:      parseStringValue(raw["lineNumber"]),
		lineName:        parseStringValue(raw["lineName"]),
		direction:       parseStringValue(raw["direction"]),
		secondsLeft:     parseIntValue(raw["secondsLeft"]),
		stationsBetween: parseIntValue(raw["stationsBetween"]),
		vehicleId:       parseStringValue(raw["garageNo"]),
		lat:             lat,
		lon:             lon,
	}
}

// buildPredictionRecord builds the per (stop, vehicle) observation row for one cycle
func buildPredictionRecord(stop gtfs.Stop, outcome *FetchOutcome,
	rawVehicle map[string]interface{}, cycleId string) arrivals.PredictionRecord {

	normalized := normalizeVehicle(rawVehicle)

	var predictedArrivalAt *string
	if normalized.secondsLeft != nil {
		arrivalAt := arrivals.FormatTimestamp(
			outcome.ObservedAt.Add(time.Duration(*normalized.secondsLeft) * time.Second))
		predictedArrivalAt = &arrivalAt
	}

	var apiStopUid *string
	if payload, ok := outcome.Payload.(map[string]interface{}); ok {
		apiStopUid = parseStringValue(payload["uid"])
	}

	vehicleKey := BuildVehicleKey(normalized.vehicleId, normalized.lineNumber,
		normalized.direction, normalized.lat, normalized.lon, stop.StopCode)

	return arrivals.PredictionRecord{
		ObservedAt:         arrivals.FormatTimestamp(outcome.ObservedAt),
		CycleId:            cycleId,
		StopId:             stop.StopId,
		StopCode:           stop.StopCode,
		ApiStopUid:         apiStopUid,
		LineNumber:         normalized.lineNumber,
		LineName:           normalized.lineName,
		Direction:          normalized.direction,
		SecondsLeft:        normalized.secondsLeft,
		PredictedArrivalAt: predictedArrivalAt,
		StationsBetween:    normalized.stationsBetween,
		VehicleId:          normalized.vehicleId,
		VehicleKey:         vehicleKey,
		VehicleLat:         normalized.lat,
		VehicleLon:         normalized.lon,
	}
}

// buildVehicleRecord builds the once-per-cycle unique vehicle row from the first
// prediction carrying its key. movement and cyclesSeen are nil when cross cycle
// tracking is disabled.
func buildVehicleRecord(stop gtfs.Stop, prediction *arrivals.PredictionRecord,
	movement *MovementResult, cyclesSeen *int) arrivals.VehicleRecord {

	record := arrivals.VehicleRecord{
		ObservedAt:      prediction.ObservedAt,
		CycleId:         prediction.CycleId,
		VehicleId:       prediction.VehicleId,
		VehicleKey:      prediction.VehicleKey,
		LineNumber:      prediction.LineNumber,
		LineName:        prediction.LineName,
		Direction:       prediction.Direction,
		VehicleLat:      prediction.VehicleLat,
		VehicleLon:      prediction.VehicleLon,
		SourceStopId:    stop.StopId,
		SourceStopCode:  stop.StopCode,
		SecondsLeft:     prediction.SecondsLeft,
		StationsBetween: prediction.StationsBetween,
		CyclesSeen:      cyclesSeen,
	}
	if movement != nil && !movement.IsNew {
		stopChanged := movement.StopChanged
		record.StopChanged = &stopChanged
		record.DistanceKm = movement.DistanceKm
		previousStopCode := movement.PreviousStopCode
		record.PreviousStopCode = &previousStopCode
	}
	return record
}

// buildErrorRecord builds the row recording one failed stop query
func buildErrorRecord(stop gtfs.Stop, outcome *FetchOutcome, cycleId string) arrivals.ErrorRecord {
	return arrivals.ErrorRecord{
		ObservedAt: arrivals.FormatTimestamp(outcome.ObservedAt),
		CycleId:    cycleId,
		StopId:     stop.StopId,
		StopCode:   stop.StopCode,
		Error:      outcome.Error,
		HttpStatus: outcome.HttpStatus,
		Attempts:   outcome.Attempts,
		DurationMs: outcome.DurationMs,
	}
}

// parseStringValue renders a json value as a string. Numbers are formatted,
// anything else yields nil
func parseStringValue(value interface{}) *string {
	switch v := value.(type) {
	case string:
		return &v
	case float64:
		formatted := strconv.FormatFloat(v, 'f', -1, 64)
		return &formatted
	case int:
		formatted := strconv.Itoa(v)
		return &formatted
	}
	return nil
}

// parseIntValue parses a json value as an int, nil when it doesn't convert
func parseIntValue(value interface{}) *int {
	switch v := value.(type) {
	case float64:
		result := int(v)
		return &result
	case int:
		result := v
		return &result
	case string:
		result, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return &result
	}
	return nil
}

// parseFloatValue parses a json value as a float64, nil when it doesn't convert
func parseFloatValue(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		result := v
		return &result
	case int:
		result := float64(v)
		return &result
	case string:
		result, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &result
	}
	return nil
}

// parseCoordsValue parses a [lat, lon] pair. Anything short or malformed yields (nil, nil)
func parseCoordsValue(value interface{}) (*float64, *float64) {
	coords, ok := value.([]interface{})
	if !ok || len(coords) < 2 {
		return nil, nil
	}
	return parseFloatValue(coords[0]), parseFloatValue(coords[1])
}

// vehiclesFromPayload extracts the vehicles list from a payload. A missing or
// non list vehicles field means zero vehicles, not an error
func vehiclesFromPayload(payload interface{}) []interface{} {
	body, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}
	vehicles, ok := body["vehicles"].([]interface{})
	if !ok {
		return nil
	}
	return vehicles
}
