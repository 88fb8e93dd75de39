package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration can build a working tracker.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Collector.Endpoint == "" {
		errs = append(errs, errors.New("collector.endpoint is required"))
	} else if u, err := url.Parse(c.Collector.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("collector.endpoint %q is not an absolute URL", c.Collector.Endpoint))
	}
	if c.Collector.Collection == "" {
		errs = append(errs, errors.New("collector.collection is required"))
	}
	if c.Collector.AccountID == "" {
		errs = append(errs, errors.New("collector.accountId is required"))
	}
	if c.Collector.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("collector.timeoutSeconds must not be negative"))
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Address == "" {
			errs = append(errs, errors.New("storage.redis.address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of %s, %s, %s",
			c.Storage.Backend, BackendSQLite, BackendRedis, BackendMemory))
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		errs = append(errs, errors.New("storage.key is required"))
	}

	if c.Tracking.RetentionDays <= 0 {
		errs = append(errs, errors.New("tracking.retentionDays must be positive"))
	}
	if c.Tracking.MaxInFlight < 0 {
		errs = append(errs, errors.New("tracking.maxInFlight must not be negative"))
	}
	if c.Tracking.FlushIntervalSeconds < 0 {
		errs = append(errs, errors.New("tracking.flushIntervalSeconds must not be negative"))
	}
	if c.Tracking.PurgeIntervalSeconds < 0 {
		errs = append(errs, errors.New("tracking.purgeIntervalSeconds must not be negative"))
	}

	return errors.Join(errs...)
}
