package main

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/vitkovskii/cirjson"
)

// Config is read from an optional config file and CIRJSON_* environment
// variables, e.g. CIRJSON_READ_ENABLE or CIRJSON_LOG_LEVEL.
type Config struct {
	Log     LogConfig   `mapstructure:"log"`
	Read    ReadConfig  `mapstructure:"read"`
	Write   WriteConfig `mapstructure:"write"`
	Pool    PoolConfig  `mapstructure:"pool"`
	IDs     string      `mapstructure:"ids"`
	Workers int         `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReadConfig struct {
	Enable  []string `mapstructure:"enable"`
	Disable []string `mapstructure:"disable"`

	MaxNestingDepth     int   `mapstructure:"max_nesting_depth"`
	MaxNumberLength     int   `mapstructure:"max_number_length"`
	MaxStringLength     int   `mapstructure:"max_string_length"`
	MaxNameLength       int   `mapstructure:"max_name_length"`
	MaxDocumentLength   int64 `mapstructure:"max_document_length"`
	MaxObjectProperties int   `mapstructure:"max_object_properties"`
}

type WriteConfig struct {
	Enable  []string `mapstructure:"enable"`
	Disable []string `mapstructure:"disable"`

	MaxNestingDepth int `mapstructure:"max_nesting_depth"`
}

type PoolConfig struct {
	// Strategy is one of none, per-context, bounded or deque.
	Strategy string `mapstructure:"strategy"`
	Capacity int    `mapstructure:"capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("read.enable", []string{})
	v.SetDefault("read.disable", []string{})
	v.SetDefault("read.max_nesting_depth", 0)
	v.SetDefault("read.max_number_length", 0)
	v.SetDefault("read.max_string_length", 0)
	v.SetDefault("read.max_name_length", 0)
	v.SetDefault("read.max_document_length", 0)
	v.SetDefault("read.max_object_properties", 0)
	v.SetDefault("write.enable", []string{})
	v.SetDefault("write.disable", []string{})
	v.SetDefault("write.max_nesting_depth", 0)
	v.SetDefault("pool.strategy", "per-context")
	v.SetDefault("pool.capacity", 64)
	v.SetDefault("ids", "sequential")
	v.SetDefault("workers", runtime.NumCPU())
}

// loadConfig reads path when it is not empty. Environment variables win
// over the file.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CIRJSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "can't read config %s", path)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "can't decode config")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func applyFeatures[F ~uint32](set F, enable, disable []string, byName func(string) (F, bool)) (F, error) {
	for _, name := range enable {
		f, ok := byName(strings.TrimSpace(name))
		if !ok {
			return set, errors.Errorf("unknown feature %q", name)
		}
		set |= f
	}
	for _, name := range disable {
		f, ok := byName(strings.TrimSpace(name))
		if !ok {
			return set, errors.Errorf("unknown feature %q", name)
		}
		set &^= f
	}
	return set, nil
}

func (c Config) recyclerPool() (cirjson.RecyclerPool, error) {
	switch strings.ToLower(c.Pool.Strategy) {
	case "", "per-context":
		return cirjson.NewPerContextPool(), nil
	case "none":
		return cirjson.NewNonRecyclingPool(), nil
	case "bounded":
		return cirjson.NewBoundedPool(c.Pool.Capacity), nil
	case "deque":
		return cirjson.NewConcurrentDequePool(), nil
	}
	return nil, errors.Errorf("unknown pool strategy %q", c.Pool.Strategy)
}

// Factory builds the codec factory the commands share.
func (c Config) Factory() (*cirjson.Factory, error) {
	rf, err := applyFeatures(cirjson.DefaultReadFeatures, c.Read.Enable, c.Read.Disable, cirjson.ReadFeatureByName)
	if err != nil {
		return nil, errors.Wrap(err, "read features")
	}
	wf, err := applyFeatures(cirjson.DefaultWriteFeatures, c.Write.Enable, c.Write.Disable, cirjson.WriteFeatureByName)
	if err != nil {
		return nil, errors.Wrap(err, "write features")
	}
	pool, err := c.recyclerPool()
	if err != nil {
		return nil, err
	}

	opts := []cirjson.Option{
		cirjson.WithReadFeatures(rf),
		cirjson.WithWriteFeatures(wf),
		cirjson.WithReadConstraints(cirjson.StreamReadConstraints{
			MaxNestingDepth:     c.Read.MaxNestingDepth,
			MaxNumberLength:     c.Read.MaxNumberLength,
			MaxStringLength:     c.Read.MaxStringLength,
			MaxNameLength:       c.Read.MaxNameLength,
			MaxDocumentLength:   c.Read.MaxDocumentLength,
			MaxObjectProperties: c.Read.MaxObjectProperties,
		}),
		cirjson.WithWriteConstraints(cirjson.StreamWriteConstraints{MaxNestingDepth: c.Write.MaxNestingDepth}),
		cirjson.WithRecyclerPool(pool),
	}

	switch strings.ToLower(c.IDs) {
	case "", "sequential":
	case "uuid":
		opts = append(opts, cirjson.WithIDGenerator(func() cirjson.IDGenerator { return cirjson.NewUUIDGenerator() }))
	default:
		return nil, errors.Errorf("unknown id strategy %q", c.IDs)
	}
	return cirjson.NewFactory(opts...), nil
}

func (c LogConfig) formatter() (logrus.Formatter, error) {
	switch strings.ToLower(c.Format) {
	case "", "text":
		return &logrus.TextFormatter{DisableTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	}
	return nil, errors.Errorf("unknown log format %q", c.Format)
}
