package main

import (
	"fmt"
	"github.com/UrbanObservatory/stopcast/app/stop-collector/collector"
	"github.com/UrbanObservatory/stopcast/business/data/gtfs"
	"github.com/UrbanObservatory/stopcast/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "STOP_COLLECTOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
			Disable    bool   `conf:"default:false"`
		}
		API struct {
			BaseUrl   string        `conf:"default:http://localhost:3000/api/stations/search"`
			UserAgent string        `conf:"default:stopcast/1.0"`
			Timeout   time.Duration `conf:"default:10s"`
			Retries   int           `conf:"default:2"`
		}
		GTFS struct {
			StopsPath     string `conf:"default:gtfs/stops.csv"`
			RoutesPath    string `conf:"default:gtfs/routes.csv"`
			TripsPath     string `conf:"default:gtfs/trips.csv"`
			StopTimesPath string `conf:"default:gtfs/stop_times.csv"`
		}
		Collect struct {
			Concurrency       int           `conf:"default:10"`
			Interval          time.Duration `conf:"default:0s"`
			Limit             int           `conf:"default:0"`
			StopCodes         string        `conf:"default:"`
			Routes            string        `conf:"default:"`
			Shuffle           bool          `conf:"default:false"`
			BBoxMinLat        float64       `conf:"default:0"`
			BBoxMaxLat        float64       `conf:"default:0"`
			BBoxMinLon        float64       `conf:"default:0"`
			BBoxMaxLon        float64       `conf:"default:0"`
			RateLimit         float64       `conf:"default:25"`
			RateLimitDisable  bool          `conf:"default:false"`
			TrackingTTLCycles int           `conf:"default:5"`
			TrackingDisable   bool          `conf:"default:false"`
		}
		Sinks struct {
			BatchSize         int           `conf:"default:2000"`
			Timeout           time.Duration `conf:"default:10s"`
			JsonlEnable       bool          `conf:"default:false"`
			OutputDir         string        `conf:"default:data/raw"`
			NatsEnable        bool          `conf:"default:false"`
			NatsUrl           string        `conf:"default:nats://localhost:4222"`
			NatsSubjectPrefix string        `conf:"default:stopcast"`
		}
		Status struct {
			Disable bool `conf:"default:false"`
			Port    int  `conf:"default:8017"`
		}
		Analytics struct {
			Disable                 bool `conf:"default:false"`
			ArrivalsLookbackMinutes int  `conf:"default:10"`
			EtaLookbackMinutes      int  `conf:"default:60"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Collect stop arrival predictions into database and files"
	const prefix = "COLLECTOR"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Resolve stop set

	filter := gtfs.StopFilter{
		StopCodes:  gtfs.ParseStopCodes([]string{cfg.Collect.StopCodes}),
		RouteNames: gtfs.ParseRouteNames([]string{cfg.Collect.Routes}),
		Limit:      cfg.Collect.Limit,
	}
	if cfg.Collect.BBoxMinLat != 0 || cfg.Collect.BBoxMaxLat != 0 ||
		cfg.Collect.BBoxMinLon != 0 || cfg.Collect.BBoxMaxLon != 0 {
		filter.BBox = &gtfs.BBox{
			MinLat: cfg.Collect.BBoxMinLat,
			MaxLat: cfg.Collect.BBoxMaxLat,
			MinLon: cfg.Collect.BBoxMinLon,
			MaxLon: cfg.Collect.BBoxMaxLon,
		}
	}
	stops, err := gtfs.ResolveStops(gtfs.Paths{
		Stops:     cfg.GTFS.StopsPath,
		Routes:    cfg.GTFS.RoutesPath,
		Trips:     cfg.GTFS.TripsPath,
		StopTimes: cfg.GTFS.StopTimesPath,
	}, filter)
	if err != nil {
		return fmt.Errorf("resolving stops: %w", err)
	}
	log.Printf("main: resolved %d stops", len(stops))

	// =========================================================================
	// Start Database

	var db *sqlx.DB
	if !cfg.DB.Disable {
		log.Println("main: Initializing database support")

		opened, err := database.Open(database.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		db = opened
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			err = db.Close()
			if err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
	}

	// =========================================================================
	// Start NATS

	var natsConn *nats.Conn
	if cfg.Sinks.NatsEnable {
		log.Println("main: Initializing nats support")
		natsConn, err = nats.Connect(cfg.Sinks.NatsUrl)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsConn.Close()
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return collector.RunCollectionLoop(log, db, natsConn, stops, collector.Conf{
		BaseUrl:                 cfg.API.BaseUrl,
		UserAgent:               cfg.API.UserAgent,
		Timeout:                 cfg.API.Timeout,
		Retries:                 cfg.API.Retries,
		Interval:                cfg.Collect.Interval,
		Concurrency:             cfg.Collect.Concurrency,
		Shuffle:                 cfg.Collect.Shuffle,
		RateLimitEnabled:        !cfg.Collect.RateLimitDisable,
		RatePerSecond:           cfg.Collect.RateLimit,
		TrackingEnabled:         !cfg.Collect.TrackingDisable,
		TrackingTTLCycles:       cfg.Collect.TrackingTTLCycles,
		BatchSize:               cfg.Sinks.BatchSize,
		SinkTimeout:             cfg.Sinks.Timeout,
		JsonlEnabled:            cfg.Sinks.JsonlEnable,
		OutputDir:               cfg.Sinks.OutputDir,
		NatsSubjectPrefix:       cfg.Sinks.NatsSubjectPrefix,
		AnalyticsEnabled:        !cfg.Analytics.Disable,
		ArrivalsLookbackMinutes: cfg.Analytics.ArrivalsLookbackMinutes,
		EtaLookbackMinutes:      cfg.Analytics.EtaLookbackMinutes,
		StatusEnabled:           !cfg.Status.Disable,
		StatusPort:              cfg.Status.Port,
	}, shutdown)
}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
