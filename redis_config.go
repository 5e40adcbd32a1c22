package geobase

import (
	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written by RedisBackend
const DefaultRedisNamespace = "geobase:"

// RedisOptions returns redis.Options for a redis:// or rediss:// connection URI.
//
// The URI carries address, database number and credentials as usual:
//
//	redis://:secret@cache.example.com:6379/2
//
// When the URI omits a password, cfg.Password (and cfg.Username, if the
// URI has no user either) is used instead, so secrets can stay out of the URI.
func RedisOptions(cfg Config) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "URI",
			"reason": err.Error(),
		})
	}

	if opts.Password == "" && cfg.Password != "" {
		opts.Password = cfg.Password
		if opts.Username == "" && cfg.Username != DefaultCloudUser {
			opts.Username = cfg.Username
		}
	}
	if opts.DialTimeout == 0 && cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout
	}
	return opts, nil
}
