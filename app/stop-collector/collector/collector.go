// Package collector polls a stop arrival prediction feed on a fixed cadence
// and records the predictions, unique vehicle sightings and fetch failures it
// observes each cycle.
package collector

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/UrbanObservatory/stopcast/business/data/arrivals"
	"github.com/UrbanObservatory/stopcast/business/data/gtfs"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

//RunCollectionLoop starts the loop that queries every configured stop once per
//cycle and records the results. Runs a single cycle and returns when
//conf.Interval is zero. db and natsConn may be nil, disabling those sinks.
func RunCollectionLoop(log *log.Logger,
	db *sqlx.DB,
	natsConn *nats.Conn,
	stops []gtfs.Stop,
	conf Conf,
	shutdownSignal chan os.Signal) error {

	if err := validateConf(conf); err != nil {
		return err
	}
	if len(stops) == 0 {
		return fmt.Errorf("no stops to collect, check stop and route filters")
	}

	var limiter *TokenBucketRateLimiter
	if conf.RateLimitEnabled {
		var err error
		limiter, err = MakeTokenBucketRateLimiter(conf.RatePerSecond, 0)
		if err != nil {
			return err
		}
	}

	var tracker *VehicleTracker
	if conf.TrackingEnabled {
		var err error
		tracker, err = MakeVehicleTracker(conf.TrackingTTLCycles)
		if err != nil {
			return err
		}
	}

	fetcher := makeStopFetcher(conf.BaseUrl, conf.Timeout, conf.Retries, conf.UserAgent)
	calendar := makeServiceCalendar()

	if conf.Shuffle {
		rand.Shuffle(len(stops), func(i, j int) {
			stops[i], stops[j] = stops[j], stops[i]
		})
	}

	monitor := makeStatusMonitor(time.Now())
	wg := sync.WaitGroup{}
	statusShutdown := make(chan bool, 1)
	if conf.StatusEnabled {
		go runStatusWebService(log, &wg, monitor, conf.StatusPort, statusShutdown)
	}

	log.Printf("collecting from %d stops every %s with concurrency %d",
		len(stops), conf.Interval, conf.Concurrency)

	sleepChan := make(chan bool)
	sleep := time.Duration(0) //sleep for zero seconds the first time

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting on shutdown signal")
			statusShutdown <- true
			wg.Wait()
			return nil
		case <-sleepChan:
			break
		}

		// mark the time we start working
		start := time.Now().UTC()
		cycleId := arrivals.MakeCycleId(start)
		serviceDay := calendar.serviceDay(start)

		recorders := makeRecorders(log, db, natsConn, conf, cycleId, start)
		summary := runCycle(log, stops, fetcher, limiter, tracker, recorders,
			conf.Concurrency, start, cycleId, serviceDay)

		log.Printf("cycle=%s responses=%d errors=%d predictions=%d unique_vehicles=%d",
			summary.CycleId, summary.Responses, summary.Errors,
			summary.Predictions, summary.UniqueVehicles)

		if tracker != nil {
			evicted := tracker.Cleanup()
			if evicted > 0 {
				log.Printf("evicted %d vehicles not seen for %d cycles",
					evicted, conf.TrackingTTLCycles)
			}
			monitor.recordCycle(summary, tracker.VehicleCount())
		} else {
			monitor.recordCycle(summary, 0)
		}

		if db != nil && conf.AnalyticsEnabled {
			arrivals.ProcessCycle(log, db, conf.ArrivalsLookbackMinutes, conf.EtaLookbackMinutes)
		}

		// attempt to run the loop every conf.Interval by subtracting the time it took to perform the work
		workTook := time.Now().Sub(start)

		log.Printf("work took %s\n", fmtDuration(workTook))

		if conf.Interval <= 0 {
			statusShutdown <- true
			if conf.StatusEnabled {
				wg.Wait()
			}
			return nil
		}

		// if the work took longer than the interval don't sleep at all on the next loop
		if workTook >= conf.Interval {
			sleep = time.Duration(0)
		} else {
			sleep = conf.Interval - workTook
		}

	}
}

//makeRecorders builds the recorder fan-out for one cycle from the enabled sinks
func makeRecorders(log *log.Logger,
	db *sqlx.DB,
	natsConn *nats.Conn,
	conf Conf,
	cycleId string,
	startedAt time.Time) recorder {

	recorders := multiRecorder{}
	if db != nil {
		recorders = append(recorders, makeDBRecorder(log, db, conf.BatchSize, conf.SinkTimeout))
	}
	if conf.JsonlEnabled {
		jsonlRec, err := makeJsonlRecorder(log, conf.OutputDir, cycleId, startedAt)
		if err != nil {
			log.Printf("unable to open jsonl output for cycle %s, skipping jsonl sink, error:%v",
				cycleId, err)
		} else {
			recorders = append(recorders, jsonlRec)
		}
	}
	if natsConn != nil {
		recorders = append(recorders, makeNatsRecorder(log, natsConn, conf.NatsSubjectPrefix))
	}
	return recorders
}

//fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d.%d", h, m, mill)
}
