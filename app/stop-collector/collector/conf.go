package collector

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

//Conf holds the runtime settings for the collection loop
type Conf struct {
	BaseUrl   string        `validate:"required,url"`
	UserAgent string        `validate:"required"`
	Timeout   time.Duration `validate:"gt=0"`
	Retries   int           `validate:"gte=0"`

	Interval    time.Duration
	Concurrency int `validate:"gte=1"`
	Shuffle     bool

	RateLimitEnabled bool
	RatePerSecond    float64

	TrackingEnabled   bool
	TrackingTTLCycles int

	BatchSize   int           `validate:"gte=1"`
	SinkTimeout time.Duration `validate:"gt=0"`

	JsonlEnabled bool
	OutputDir    string

	NatsSubjectPrefix string

	AnalyticsEnabled        bool
	ArrivalsLookbackMinutes int `validate:"gte=1"`
	EtaLookbackMinutes      int `validate:"gte=1"`

	StatusEnabled bool
	StatusPort    int `validate:"gte=1,lte=65535"`
}

//validateConf checks conf field constraints before the loop starts.
//Rate limiting and tracking settings are only constrained while their
//feature is enabled, a disabled feature may carry any value.
func validateConf(conf Conf) error {
	err := validator.New().Struct(conf)
	if err != nil {
		return fmt.Errorf("invalid collector configuration: %w", err)
	}
	if conf.RateLimitEnabled && conf.RatePerSecond <= 0 {
		return fmt.Errorf("invalid collector configuration: rate per second must be positive when rate limiting is enabled, got %v",
			conf.RatePerSecond)
	}
	if conf.TrackingEnabled && conf.TrackingTTLCycles < 1 {
		return fmt.Errorf("invalid collector configuration: tracking ttl cycles must be at least 1 when tracking is enabled, got %d",
			conf.TrackingTTLCycles)
	}
	return nil
}
