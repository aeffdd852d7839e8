package collector

import (
	"testing"
	"time"
)

func validTestConf() Conf {
	return Conf{
		BaseUrl:                 "http://localhost:3000/api/stations/search",
		UserAgent:               "stopcast/1.0",
		Timeout:                 10 * time.Second,
		Retries:                 2,
		Concurrency:             10,
		RatePerSecond:           25,
		TrackingTTLCycles:       5,
		BatchSize:               2000,
		SinkTimeout:             10 * time.Second,
		ArrivalsLookbackMinutes: 10,
		EtaLookbackMinutes:      60,
		StatusPort:              8017,
	}
}

func TestValidateConf(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(conf *Conf)
		expectError bool
	}{
		{
			name:   "valid conf",
			mutate: func(*Conf) {},
		},
		{
			name:        "missing base url",
			mutate:      func(conf *Conf) { conf.BaseUrl = "" },
			expectError: true,
		},
		{
			name:        "base url not a url",
			mutate:      func(conf *Conf) { conf.BaseUrl = "not a url" },
			expectError: true,
		},
		{
			name:        "zero concurrency",
			mutate:      func(conf *Conf) { conf.Concurrency = 0 },
			expectError: true,
		},
		{
			name:        "negative retries",
			mutate:      func(conf *Conf) { conf.Retries = -1 },
			expectError: true,
		},
		{
			name: "zero rate with rate limiting enabled",
			mutate: func(conf *Conf) {
				conf.RateLimitEnabled = true
				conf.RatePerSecond = 0
			},
			expectError: true,
		},
		{
			name: "zero rate allowed while rate limiting disabled",
			mutate: func(conf *Conf) {
				conf.RateLimitEnabled = false
				conf.RatePerSecond = 0
			},
		},
		{
			name: "zero tracking ttl with tracking enabled",
			mutate: func(conf *Conf) {
				conf.TrackingEnabled = true
				conf.TrackingTTLCycles = 0
			},
			expectError: true,
		},
		{
			name: "zero tracking ttl allowed while tracking disabled",
			mutate: func(conf *Conf) {
				conf.TrackingEnabled = false
				conf.TrackingTTLCycles = 0
			},
		},
		{
			name:        "status port out of range",
			mutate:      func(conf *Conf) { conf.StatusPort = 70000 },
			expectError: true,
		},
		{
			name:   "zero interval allowed for single cycle runs",
			mutate: func(conf *Conf) { conf.Interval = 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validTestConf()
			tt.mutate(&conf)
			err := validateConf(conf)
			if tt.expectError && err == nil {
				t.Errorf("expected validation error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
