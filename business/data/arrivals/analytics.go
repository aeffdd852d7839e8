package arrivals

import (
	"fmt"
	logger "log"

	"github.com/UrbanObservatory/stopcast/foundation/database"
	"github.com/jmoiron/sqlx"
)

// ProcessArrivals derives arrival events from recently collected predictions.
// A vehicle is considered to have arrived when it reports zero stations between
// itself and the stop and carries a predicted arrival instant. Re-running over
// the same window replaces earlier rows for the same arrival rather than
// duplicating them.
func ProcessArrivals(db *sqlx.DB, lookbackMinutes int) (int64, error) {
	statementString := "insert into arrival " +
		"(vehicle_key, " +
		"vehicle_id, " +
		"line_number, " +
		"direction, " +
		"stop_id, " +
		"stop_code, " +
		"arrival_at, " +
		"source_cycle_id, " +
		"source_observed_at) " +
		"select " +
		"vehicle_key, " +
		"vehicle_id, " +
		"line_number, " +
		"direction, " +
		"stop_id, " +
		"stop_code, " +
		"predicted_arrival_at, " +
		"cycle_id, " +
		"observed_at " +
		"from " + TablePredictions + " " +
		"where observed_at >= now() - make_interval(mins => :lookback_minutes) " +
		"and stations_between = 0 " +
		"and predicted_arrival_at is not null " +
		"and vehicle_key <> '' " +
		"on conflict (vehicle_key, stop_id, arrival_at) do update set " +
		"source_cycle_id = excluded.source_cycle_id, " +
		"source_observed_at = excluded.source_observed_at"

	query, args, err := database.PrepareNamedQueryFromMap(statementString, db,
		map[string]interface{}{"lookback_minutes": lookbackMinutes})
	if err != nil {
		return 0, fmt.Errorf("preparing arrivals query: %w", err)
	}
	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("processing arrivals: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ProcessEtaErrors joins each arrival in the lookback window against the nearest
// preceding prediction for the same vehicle and stop, recording the signed
// prediction error in seconds. Matches further than an hour out are discarded
// as unrelated predictions.
func ProcessEtaErrors(db *sqlx.DB, lookbackMinutes int) (int64, error) {
	statementString := "insert into eta_error " +
		"(observed_at, " +
		"predicted_arrival_at, " +
		"actual_arrival_at, " +
		"stop_id, " +
		"stop_code, " +
		"line_number, " +
		"direction, " +
		"vehicle_key, " +
		"error_seconds) " +
		"select " +
		"p.observed_at, " +
		"p.predicted_arrival_at, " +
		"a.arrival_at, " +
		"a.stop_id, " +
		"a.stop_code, " +
		"a.line_number, " +
		"a.direction, " +
		"a.vehicle_key, " +
		"cast(extract(epoch from (a.arrival_at - p.predicted_arrival_at)) as integer) " +
		"from arrival a " +
		"join lateral (" +
		"select observed_at, predicted_arrival_at " +
		"from " + TablePredictions + " pred " +
		"where pred.vehicle_key = a.vehicle_key " +
		"and pred.stop_id = a.stop_id " +
		"and pred.predicted_arrival_at is not null " +
		"and pred.observed_at <= a.arrival_at " +
		"order by pred.observed_at desc " +
		"limit 1" +
		") p on true " +
		"where a.arrival_at >= now() - make_interval(mins => :lookback_minutes) " +
		"and abs(extract(epoch from (a.arrival_at - p.predicted_arrival_at))) < 3600 " +
		"on conflict (vehicle_key, stop_id, actual_arrival_at) do nothing"

	query, args, err := database.PrepareNamedQueryFromMap(statementString, db,
		map[string]interface{}{"lookback_minutes": lookbackMinutes})
	if err != nil {
		return 0, fmt.Errorf("preparing eta errors query: %w", err)
	}
	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("processing eta errors: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ProcessCycle runs both derivations after a collection cycle. Failures are
// logged and never propagate, they must not affect collection.
func ProcessCycle(log *logger.Logger, db *sqlx.DB, arrivalsLookbackMinutes int, etaLookbackMinutes int) (int64, int64) {
	arrivalRows, err := ProcessArrivals(db, arrivalsLookbackMinutes)
	if err != nil {
		log.Printf("failed to process arrivals, error:%v", err)
	}
	etaRows, err := ProcessEtaErrors(db, etaLookbackMinutes)
	if err != nil {
		log.Printf("failed to process eta errors, error:%v", err)
	}
	return arrivalRows, etaRows
}
