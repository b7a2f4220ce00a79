package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/granulemap/granulemap/featureflag"
	granulemaphttp "github.com/granulemap/granulemap/http"
	"github.com/granulemap/granulemap/pipeline"
	"github.com/granulemap/granulemap/sink"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
)

var (
	// The granulemap version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "granulemap_info",
		Help:        "Granulemap information.",
		ConstLabels: prometheus.Labels{"version": version, "binary": "server"},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr           string       `cli:""        env:"GRANULEMAP_ADDR"            help:"Listening address."`
	AdminAddr      string       `cli:""        env:"GRANULEMAP_ADMIN_ADDR"      help:"Admin listening address."`
	DataDir        string       `cli:""        env:"GRANULEMAP_DATA_DIR"        help:"The directory where the ingest job writes its datasets."`
	KeyPrefix      string       `cli:",hidden" env:"GRANULEMAP_KEY_PREFIX"      help:"The key prefix of the published datasets."`
	AllowedOrigins []string     `cli:""        env:"GRANULEMAP_ALLOWED_ORIGINS" help:"Comma separated origins allowed to read the responses."`
	Redis          redisConfig  `cli:",hidden" env:"-"                          help:"Redis cache configuration."`
	LogLevel       string       `cli:""        env:"GRANULEMAP_LOG_LEVEL"       help:"Log level (debug|info|warning|error)."`
	LogIndent      bool         `cli:""        env:"GRANULEMAP_LOG_INDENT"      help:"Indent logs."`
	Events         eventsConfig `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags   []string     `cli:",hidden" env:"GRANULEMAP_FEATURE_FLAGS"   help:"Comma separated feature flags"`
	Version        bool         `cli:""        env:"-"                          help:"Show version."`
	Help           bool         `cli:""        env:"-"                          help:"Show help."`
}

type redisConfig struct {
	Addr     string        `cli:",hidden" env:"GRANULEMAP_REDIS_ADDR"     help:"Redis address. Empty disables the cache."`
	Password string        `cli:",hidden" env:"GRANULEMAP_REDIS_PASSWORD" help:"Redis password."`
	DB       int           `cli:",hidden" env:"GRANULEMAP_REDIS_DB"       help:"Redis database."`
	TTL      time.Duration `cli:",hidden" env:"GRANULEMAP_REDIS_TTL"      help:"The expiration of the datasets written back to the cache."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"GRANULEMAP_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"GRANULEMAP_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"GRANULEMAP_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"GRANULEMAP_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:      ":8080",
		AdminAddr: ":18190",
		DataDir:   "data",
		KeyPrefix: pipeline.DefaultKeyPrefix,
		AllowedOrigins: []string{
			"https://asfadmin.github.io",
			"http://localhost:8080",
		},
		Redis: redisConfig{
			TTL: time.Hour,
		},
		LogLevel: logs.InfoLevel.String(),
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	_ = godotenv.Load()

	cli.Register().
		Help("Serves the merged granule footprints and their outline.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "granulemap-server",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	latest := pipeline.LatestDatasetKey(conf.KeyPrefix)

	store := &granulemaphttp.DatasetStore{
		Path:         sink.FileSink{Dir: conf.DataDir}.Path(latest),
		CacheKey:     latest,
		CacheTTL:     conf.Redis.TTL,
		DisableCache: flags.IsSet(featureflag.FlagDisableResponseCache),
	}
	if conf.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		defer client.Close()
		store.Cache = client
	}

	service := granulemaphttp.NewRouter(granulemaphttp.RouterOptions{
		Store:          store,
		Version:        version,
		AllowedOrigins: conf.AllowedOrigins,
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", granulemaphttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.HandleFunc("/ready", granulemaphttp.HandleReadyCheck(store.Ready))

	logs.WithTag("version", version).
		WithTag("addr", conf.Addr).
		WithTag("admin_addr", conf.AdminAddr).
		WithTag("dataset", store.Path).
		WithTag("cache", store.Cache != nil && !store.DisableCache).
		WithTag("log_level", conf.LogLevel).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting granulemap server")

	granulemaphttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(service,
			granulemaphttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.Addr == "" {
		return errors.New("addr is required")
	}

	if conf.AdminAddr == "" {
		return errors.New("admin addr is required")
	}

	if conf.Addr == conf.AdminAddr {
		return errors.New("addr and admin addr must be different").
			WithTag("addr", conf.Addr)
	}

	if conf.DataDir == "" {
		return errors.New("data dir is required")
	}
	return nil
}
