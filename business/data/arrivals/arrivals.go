// Package arrivals provides record types produced by collection cycles and
// CRUD functionality for persisting them to the analytical store.
package arrivals

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// table names in the analytical store
const (
	TablePredictions = "stop_prediction"
	TableVehicles    = "vehicle_sighting"
	TableErrors      = "fetch_error"
	TableCycles      = "collection_cycle"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp formats t as an ISO 8601 UTC timestamp with millisecond
// precision and a literal Z suffix, the canonical timestamp form for all records
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a timestamp previously produced by FormatTimestamp
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// MakeCycleId derives the cycle identifier from the cycle start instant
func MakeCycleId(startedAt time.Time) string {
	return startedAt.UTC().Format("20060102T150405Z")
}

// PredictionRecord is one observation of a vehicle predicted to arrive at a stop.
// One row is written per (stop, vehicle) per cycle. Append only, never mutated.
type PredictionRecord struct {
	ObservedAt string  `db:"observed_at" json:"observed_at"`
	CycleId    string  `db:"cycle_id" json:"cycle_id"`
	StopId     int     `db:"stop_id" json:"stop_id"`
	StopCode   string  `db:"stop_code" json:"stop_code"`
	ApiStopUid *string `db:"api_stop_uid" json:"api_stop_uid"`
	LineNumber *string `db:"line_number" json:"line_number"`
	LineName   *string `db:"line_name" json:"line_name"`
	Direction  *string `db:"direction" json:"direction"`
	// SecondsLeft is the upstream countdown until arrival, nil when it didn't parse
	SecondsLeft *int `db:"seconds_left" json:"seconds_left"`
	// PredictedArrivalAt is ObservedAt + SecondsLeft, nil whenever SecondsLeft is nil
	PredictedArrivalAt *string  `db:"predicted_arrival_at" json:"predicted_arrival_at"`
	StationsBetween    *int     `db:"stations_between" json:"stations_between"`
	VehicleId          *string  `db:"vehicle_id" json:"vehicle_id"`
	VehicleKey         string   `db:"vehicle_key" json:"vehicle_key"`
	VehicleLat         *float64 `db:"vehicle_lat" json:"vehicle_lat"`
	VehicleLon         *float64 `db:"vehicle_lon" json:"vehicle_lon"`
}

// VehicleRecord is written once per unique vehicle key per cycle, on the first
// sighting of that key. Movement fields are populated when cross cycle tracking
// is enabled and the vehicle was seen in an earlier cycle.
type VehicleRecord struct {
	ObservedAt       string   `db:"observed_at" json:"observed_at"`
	CycleId          string   `db:"cycle_id" json:"cycle_id"`
	VehicleId        *string  `db:"vehicle_id" json:"vehicle_id"`
	VehicleKey       string   `db:"vehicle_key" json:"vehicle_key"`
	LineNumber       *string  `db:"line_number" json:"line_number"`
	LineName         *string  `db:"line_name" json:"line_name"`
	Direction        *string  `db:"direction" json:"direction"`
	VehicleLat       *float64 `db:"vehicle_lat" json:"vehicle_lat"`
	VehicleLon       *float64 `db:"vehicle_lon" json:"vehicle_lon"`
	SourceStopId     int      `db:"source_stop_id" json:"source_stop_id"`
	SourceStopCode   string   `db:"source_stop_code" json:"source_stop_code"`
	SecondsLeft      *int     `db:"seconds_left" json:"seconds_left"`
	StationsBetween  *int     `db:"stations_between" json:"stations_between"`
	StopChanged      *bool    `db:"stop_changed" json:"stop_changed"`
	DistanceKm       *float64 `db:"distance_km" json:"distance_km"`
	PreviousStopCode *string  `db:"previous_stop_code" json:"previous_stop_code"`
	CyclesSeen       *int     `db:"cycles_seen" json:"cycles_seen"`
}

// ErrorRecord is one row per failed stop query
type ErrorRecord struct {
	ObservedAt string `db:"observed_at" json:"observed_at"`
	CycleId    string `db:"cycle_id" json:"cycle_id"`
	StopId     int    `db:"stop_id" json:"stop_id"`
	StopCode   string `db:"stop_code" json:"stop_code"`
	Error      string `db:"error" json:"error"`
	HttpStatus *int   `db:"http_status" json:"http_status"`
	Attempts   int    `db:"attempts" json:"attempts"`
	DurationMs int64  `db:"duration_ms" json:"duration_ms"`
}

// CycleRecord summarizes one complete collection pass, written once at cycle end
type CycleRecord struct {
	CycleId        string `db:"cycle_id" json:"cycle_id"`
	StartedAt      string `db:"started_at" json:"started_at"`
	FinishedAt     string `db:"finished_at" json:"finished_at"`
	ServiceDay     string `db:"service_day" json:"service_day"`
	StopsTotal     int    `db:"stops_total" json:"stops_total"`
	Responses      int    `db:"responses" json:"responses"`
	Errors         int    `db:"errors" json:"errors"`
	Predictions    int    `db:"predictions" json:"predictions"`
	UniqueVehicles int    `db:"unique_vehicles" json:"unique_vehicles"`
}

// InsertPredictionRecords saves a batch of PredictionRecords in one statement.
// No-op on an empty batch
func InsertPredictionRecords(ctx context.Context, db *sqlx.DB, records []PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	statementString := "insert into " + TablePredictions + " " +
		"(observed_at, " +
		"cycle_id, " +
		"stop_id, " +
		"stop_code, " +
		"api_stop_uid, " +
		"line_number, " +
		"line_name, " +
		"direction, " +
		"seconds_left, " +
		"predicted_arrival_at, " +
		"stations_between, " +
		"vehicle_id, " +
		"vehicle_key, " +
		"vehicle_lat, " +
		"vehicle_lon) " +
		"values " +
		"(:observed_at, " +
		":cycle_id, " +
		":stop_id, " +
		":stop_code, " +
		":api_stop_uid, " +
		":line_number, " +
		":line_name, " +
		":direction, " +
		":seconds_left, " +
		":predicted_arrival_at, " +
		":stations_between, " +
		":vehicle_id, " +
		":vehicle_key, " +
		":vehicle_lat, " +
		":vehicle_lon)"
	_, err := db.NamedExecContext(ctx, db.Rebind(statementString), records)
	return err
}

// InsertVehicleRecords saves a batch of VehicleRecords in one statement.
// No-op on an empty batch
func InsertVehicleRecords(ctx context.Context, db *sqlx.DB, records []VehicleRecord) error {
	if len(records) == 0 {
		return nil
	}
	statementString := "insert into " + TableVehicles + " " +
		"(observed_at, " +
		"cycle_id, " +
		"vehicle_id, " +
		"vehicle_key, " +
		"line_number, " +
		"line_name, " +
		"direction, " +
		"vehicle_lat, " +
		"vehicle_lon, " +
		"source_stop_id, " +
		"source_stop_code, " +
		"seconds_left, " +
		"stations_between, " +
		"stop_changed, " +
		"distance_km, " +
		"previous_stop_code, " +
		"cycles_seen) " +
		"values " +
		"(:observed_at, " +
		":cycle_id, " +
		":vehicle_id, " +
		":vehicle_key, " +
		":line_number, " +
		":line_name, " +
		":direction, " +
		":vehicle_lat, " +
		":vehicle_lon, " +
		":source_stop_id, " +
		":source_stop_code, " +
		":seconds_left, " +
		":stations_between, " +
		":stop_changed, " +
		":distance_km, " +
		":previous_stop_code, " +
		":cycles_seen)"
	_, err := db.NamedExecContext(ctx, db.Rebind(statementString), records)
	return err
}

// InsertErrorRecords saves a batch of ErrorRecords in one statement.
// No-op on an empty batch
func InsertErrorRecords(ctx context.Context, db *sqlx.DB, records []ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	statementString := "insert into " + TableErrors + " " +
		"(observed_at, " +
		"cycle_id, " +
		"stop_id, " +
		"stop_code, " +
		"error, " +
		"http_status, " +
		"attempts, " +
		"duration_ms) " +
		"values " +
		"(:observed_at, " +
		":cycle_id, " +
		":stop_id, " +
		":stop_code, " +
		":error, " +
		":http_status, " +
		":attempts, " +
		":duration_ms)"
	_, err := db.NamedExecContext(ctx, db.Rebind(statementString), records)
	return err
}

// InsertCycleRecords saves a batch of CycleRecords in one statement.
// No-op on an empty batch
func InsertCycleRecords(ctx context.Context, db *sqlx.DB, records []CycleRecord) error {
	if len(records) == 0 {
		return nil
	}
	statementString := "insert into " + TableCycles + " " +
		"(cycle_id, " +
		"started_at, " +
		"finished_at, " +
		"service_day, " +
		"stops_total, " +
		"responses, " +
		"errors, " +
		"predictions, " +
		"unique_vehicles) " +
		"values " +
		"(:cycle_id, " +
		":started_at, " +
		":finished_at, " +
		":service_day, " +
		":stops_total, " +
		":responses, " +
		":errors, " +
		":predictions, " +
		":unique_vehicles)"
	_, err := db.NamedExecContext(ctx, db.Rebind(statementString), records)
	return err
}
