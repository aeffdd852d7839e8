package collector

import (
	"fmt"
	logger "log"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/UrbanObservatory/stopcast/business/data/gtfs"
	"golang.org/x/sync/errgroup"
)

//stopOutcome pairs the fetched outcome with the stop it was fetched for
type stopOutcome struct {
	stop    gtfs.Stop
	outcome FetchOutcome
}

//runCycle queries every stop once and records what came back, returning the
//cycle summary row. Fetches run on a bounded worker pool while a single drain
//loop performs all record building and tracker access, so the tracker needs
//no locking. A panicking fetch worker surfaces as an error row and never
//takes the cycle down.
func runCycle(log *logger.Logger,
	stops []gtfs.Stop,
	fetcher *stopFetcher,
	limiter *TokenBucketRateLimiter,
	tracker *VehicleTracker,
	recorders recorder,
	concurrency int,
	startedAt time.Time,
	cycleId string,
	serviceDay string) arrivals.CycleRecord {

	results := make(chan stopOutcome, len(stops))

	go func() {
		group := errgroup.Group{}
		group.SetLimit(concurrency)
		for _, stop := range stops {
			stop := stop
			group.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("recovered fetch panic for stop %s: %v", stop.StopCode, r)
						results <- stopOutcome{
							stop: stop,
							outcome: FetchOutcome{
								StopCode:   stop.StopCode,
								ObservedAt: time.Now().UTC(),
								Error:      fmt.Sprintf("unexpected:%v", r),
							},
						}
					}
				}()
				if limiter != nil {
					limiter.Acquire(1)
				}
				results <- stopOutcome{stop: stop, outcome: fetcher.fetchStop(stop.StopCode)}
				return nil
			})
		}
		_ = group.Wait()
		close(results)
	}()

	defer recorders.close()

	summary := arrivals.CycleRecord{
		CycleId:    cycleId,
		StartedAt:  arrivals.FormatTimestamp(startedAt),
		ServiceDay: serviceDay,
		StopsTotal: len(stops),
	}
	seenVehicleKeys := make(map[string]bool)

	for result := range results {
		outcome := result.outcome

		// a zero attempt count only appears when the worker panicked before
		// performing any request
		if outcome.Error != "" && outcome.Attempts == 0 {
			summary.Errors++
			errorRecord := buildErrorRecord(result.stop, &outcome, cycleId)
			recorders.fetchError(&errorRecord)
			continue
		}

		summary.Responses++

		if outcome.Error != "" {
			summary.Errors++
			errorRecord := buildErrorRecord(result.stop, &outcome, cycleId)
			recorders.fetchError(&errorRecord)
			continue
		}

		for _, rawValue := range vehiclesFromPayload(outcome.Payload) {
			rawVehicle, ok := rawValue.(map[string]interface{})
			if !ok {
				continue
			}
			prediction := buildPredictionRecord(result.stop, &outcome, rawVehicle, cycleId)
			recorders.prediction(&prediction)
			summary.Predictions++

			if seenVehicleKeys[prediction.VehicleKey] {
				continue
			}
			seenVehicleKeys[prediction.VehicleKey] = true

			var movement *MovementResult
			var cyclesSeen *int
			if tracker != nil {
				detected := tracker.DetectMovement(prediction.VehicleKey,
					result.stop.StopCode, prediction.VehicleLat, prediction.VehicleLon)
				movement = &detected
				tracker.Update(prediction.VehicleKey, cycleId, outcome.ObservedAt,
					prediction.VehicleLat, prediction.VehicleLon,
					result.stop.StopCode, prediction.LineNumber)
				if state := tracker.GetVehicleState(prediction.VehicleKey); state != nil {
					seen := state.CyclesSeen
					cyclesSeen = &seen
				}
			}
			vehicle := buildVehicleRecord(result.stop, &prediction, movement, cyclesSeen)
			recorders.vehicle(&vehicle)
			summary.UniqueVehicles++
		}
	}

	summary.FinishedAt = arrivals.FormatTimestamp(time.Now().UTC())
	recorders.cycle(&summary)
	return summary
}
