package playliststore

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

type fileSettings struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type redisSettings struct {
	Addr     string `yaml:"addr" mapstructure:"addr" default:"localhost:6379"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" default:"0" validate:"gte=0"`
	Key      string `yaml:"key" mapstructure:"key"`
}

// NewStoreFromSettings builds a playlist store from the configured
// backend type and its settings map.
func NewStoreFromSettings(kind string, settings map[string]any) (Store, error) {
	switch kind {
	case "file":
		var cfg fileSettings
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrap(err, "file store settings")
		}
		return NewFileStore(cfg.Path), nil

	case "redis":
		var cfg redisSettings
		if err := decodeSettings(settings, &cfg); err != nil {
			return nil, errors.Wrap(err, "redis store settings")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedisStore(client, cfg.Key), nil

	default:
		return nil, errors.Newf("unknown playlist store type: %q", kind)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
