package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
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
	"github.com/granulemap/granulemap/modules"
	"github.com/granulemap/granulemap/modules/antimeridian"
	"github.com/granulemap/granulemap/modules/quadtree"
	"github.com/granulemap/granulemap/pipeline"
	"github.com/granulemap/granulemap/sink"
	"github.com/granulemap/granulemap/source"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
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
		ConstLabels: prometheus.Labels{"version": version, "binary": "ingest"},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

const dateLayout = "2006-01-02"

type config struct {
	Source        string         `cli:""        env:"GRANULEMAP_SOURCE"          help:"Where footprints are loaded from (file|postgres)."`
	InputPath     string         `cli:""        env:"GRANULEMAP_INPUT_PATH"      help:"The GeoJSON file loaded by the file source."`
	Database      databaseConfig `cli:",hidden" env:"-"                          help:"Database configuration."`
	Query         queryConfig    `cli:",hidden" env:"-"                          help:"Granule query configuration."`
	Tolerance     float64        `cli:""        env:"GRANULEMAP_TOLERANCE"       help:"The vertex distance in degrees under which two footprints are duplicates."`
	MinCellSize   float64        `cli:",hidden" env:"GRANULEMAP_MIN_CELL_SIZE"   help:"The quad-tree cell side in degrees at which subdivision stops."`
	SeamThreshold float64        `cli:",hidden" env:"GRANULEMAP_SEAM_THRESHOLD"  help:"The longitude gap in degrees that marks an antimeridian crossing."`
	ParallelDepth int            `cli:",hidden" env:"GRANULEMAP_PARALLEL_DEPTH"  help:"The quad-tree depth down to which quadrants are split concurrently."`
	SkipInvalid   bool           `cli:""        env:"GRANULEMAP_SKIP_INVALID"    help:"Drop malformed footprints instead of failing the run."`
	OutputDir     string         `cli:""        env:"GRANULEMAP_OUTPUT_DIR"      help:"The directory where datasets are written. Empty disables the file sink."`
	KeyPrefix     string         `cli:",hidden" env:"GRANULEMAP_KEY_PREFIX"      help:"The key prefix of the published datasets."`
	Minio         minioConfig    `cli:",hidden" env:"-"                          help:"MinIO sink configuration."`
	Redis         redisConfig    `cli:",hidden" env:"-"                          help:"Redis sink configuration."`
	AdminAddr     string         `cli:""        env:"GRANULEMAP_ADMIN_ADDR"      help:"Admin listening address while the run is in progress. Empty disables it."`
	LogLevel      string         `cli:""        env:"GRANULEMAP_LOG_LEVEL"       help:"Log level (debug|info|warning|error)."`
	LogIndent     bool           `cli:""        env:"GRANULEMAP_LOG_INDENT"      help:"Indent logs."`
	Events        eventsConfig   `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags  []string       `cli:",hidden" env:"GRANULEMAP_FEATURE_FLAGS"   help:"Comma separated feature flags"`
	Version       bool           `cli:""        env:"-"                          help:"Show version."`
	Help          bool           `cli:""        env:"-"                          help:"Show help."`
}

type databaseConfig struct {
	URL      string `cli:",hidden" env:"GRANULEMAP_DB_URL"      help:"PostgreSQL connection string. Overrides the other database options."`
	Host     string `cli:",hidden" env:"GRANULEMAP_DB_HOST"     help:"Database host."`
	Name     string `cli:",hidden" env:"GRANULEMAP_DB_NAME"     help:"Database name."`
	Username string `cli:",hidden" env:"GRANULEMAP_DB_USERNAME" help:"Database user."`
	Password string `cli:",hidden" env:"GRANULEMAP_DB_PASSWORD" help:"Database password."`
}

type queryConfig struct {
	Start         string   `cli:",hidden" env:"GRANULEMAP_QUERY_START"          help:"The first granule start date (YYYY-MM-DD)."`
	End           string   `cli:",hidden" env:"GRANULEMAP_QUERY_END"            help:"The last granule start date (YYYY-MM-DD)."`
	PlatformTypes []string `cli:",hidden" env:"GRANULEMAP_QUERY_PLATFORM_TYPES" help:"Comma separated platform types."`
	GranuleTypes  []string `cli:",hidden" env:"GRANULEMAP_QUERY_GRANULE_TYPES"  help:"Comma separated data granule types."`
	ProductTypes  []string `cli:",hidden" env:"GRANULEMAP_QUERY_PRODUCT_TYPES"  help:"Comma separated product types."`
}

type minioConfig struct {
	Endpoint        string `cli:",hidden" env:"GRANULEMAP_MINIO_ENDPOINT"          help:"MinIO endpoint. Empty disables the MinIO sink."`
	AccessKeyID     string `cli:",hidden" env:"GRANULEMAP_MINIO_ACCESS_KEY_ID"     help:"MinIO access key."`
	SecretAccessKey string `cli:",hidden" env:"GRANULEMAP_MINIO_SECRET_ACCESS_KEY" help:"MinIO secret key."`
	Bucket          string `cli:",hidden" env:"GRANULEMAP_MINIO_BUCKET"            help:"The bucket datasets are uploaded to."`
	Region          string `cli:",hidden" env:"GRANULEMAP_MINIO_REGION"            help:"The region of the bucket."`
	UseSSL          bool   `cli:",hidden" env:"GRANULEMAP_MINIO_USE_SSL"           help:"Use TLS to reach MinIO."`
}

type redisConfig struct {
	Addr     string        `cli:",hidden" env:"GRANULEMAP_REDIS_ADDR"     help:"Redis address. Empty disables the Redis sink."`
	Password string        `cli:",hidden" env:"GRANULEMAP_REDIS_PASSWORD" help:"Redis password."`
	DB       int           `cli:",hidden" env:"GRANULEMAP_REDIS_DB"       help:"Redis database."`
	TTL      time.Duration `cli:",hidden" env:"GRANULEMAP_REDIS_TTL"      help:"The expiration of the cached datasets. Zero keeps them."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"GRANULEMAP_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"GRANULEMAP_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"GRANULEMAP_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"GRANULEMAP_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaults := source.DefaultGranuleQuery()
	conf := config{
		Source:        "file",
		InputPath:     "granules.geojson",
		Tolerance:     quadtree.DefaultTolerance,
		MinCellSize:   quadtree.DefaultMinCellSize,
		SeamThreshold: antimeridian.DefaultSeamThreshold,
		ParallelDepth: quadtree.DefaultParallelDepth,
		OutputDir:     "data",
		KeyPrefix:     pipeline.DefaultKeyPrefix,
		Query: queryConfig{
			Start:         defaults.Start.Format(dateLayout),
			End:           defaults.End.Format(dateLayout),
			PlatformTypes: defaults.PlatformTypes,
			GranuleTypes:  defaults.GranuleTypes,
			ProductTypes:  defaults.ProductTypes,
		},
		Minio: minioConfig{
			Bucket: "granulemap",
		},
		Redis: redisConfig{
			TTL: 24 * time.Hour,
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

	// A missing .env file is not an error, the environment may be set
	// another way.
	_ = godotenv.Load()

	cli.Register().
		Help("Loads granule footprints, splits them along the antimeridian, merges the duplicates and publishes the result.").
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

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "granulemap-ingest",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	if conf.AdminAddr != "" {
		adminCtx, stopAdmin := context.WithCancel(ctx)
		defer stopAdmin()

		var admin http.ServeMux
		admin.Handle("/metrics", promhttp.Handler())
		admin.HandleFunc("/health", granulemaphttp.HandleHealthCheck)
		admin.HandleFunc("/debug/pprof/", pprof.Index)
		admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
		admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))

		go granulemaphttp.ListenAndServe(adminCtx, &http.Server{Addr: conf.AdminAddr, Handler: &admin})
	}

	flags := featureflag.New(conf.FeatureFlags)

	src, closeSource, err := newSource(ctx, conf)
	if err != nil {
		logs.Fatal(err)
	}
	defer closeSource()

	sinks, err := newSinks(conf)
	if err != nil {
		logs.Fatal(err)
	}

	p := pipeline.Pipeline{
		Source:      src,
		Stages:      newStages(conf, flags),
		Publisher:   sink.Publisher{Sinks: sinks},
		SkipInvalid: conf.SkipInvalid,
		KeyPrefix:   conf.KeyPrefix,
	}

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("source", src.Name()).
		WithTag("sinks", len(sinks)).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting granulemap ingest")

	res, err := p.Run(ctx)
	if err != nil {
		logs.Fatal(err)
	}

	logs.WithTag("run_id", res.RunID).
		WithTag("keys", res.Keys).
		Info("granulemap ingest done")
}

func newStages(conf config, flags featureflag.FeatureFlag) []modules.Module {
	var stages []modules.Module

	flags.IfNotSet(featureflag.FlagDisableAntimeridianSplit, func() {
		stages = append(stages, &antimeridian.Module{
			Splitter: antimeridian.Splitter{Threshold: conf.SeamThreshold},
		})
	})

	opts := quadtree.Options{
		Tolerance:     conf.Tolerance,
		MinCellSize:   conf.MinCellSize,
		ParallelDepth: conf.ParallelDepth,
	}
	flags.IfSet(featureflag.FlagDisableParallelSplit, func() {
		opts.ParallelDepth = 0
	})

	flags.IfNotSet(featureflag.FlagDisableMerge, func() {
		stages = append(stages, &quadtree.Module{Options: opts})
	})
	return stages
}

func newSource(ctx context.Context, conf config) (source.Source, func(), error) {
	switch conf.Source {
	case "file":
		return source.GeoJSONSource{Path: conf.InputPath}, func() {}, nil

	case "postgres":
		q, err := granuleQuery(conf.Query)
		if err != nil {
			return nil, nil, err
		}

		pool, err := pgxpool.New(ctx, databaseURL(conf.Database))
		if err != nil {
			return nil, nil, errors.New("creating database pool failed").
				WithType(source.ErrTypeSourceUnavailable).
				WithTag("host", conf.Database.Host).
				Wrap(err)
		}
		return source.PostgresSource{DB: pool, Query: q}, pool.Close, nil

	default:
		return nil, nil, errors.New("unknown source").WithTag("source", conf.Source)
	}
}

func newSinks(conf config) ([]sink.Sink, error) {
	var sinks []sink.Sink

	if conf.OutputDir != "" {
		sinks = append(sinks, sink.FileSink{Dir: conf.OutputDir})
	}

	if conf.Minio.Endpoint != "" {
		client, err := minio.New(conf.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(conf.Minio.AccessKeyID, conf.Minio.SecretAccessKey, ""),
			Secure: conf.Minio.UseSSL,
			Region: conf.Minio.Region,
		})
		if err != nil {
			return nil, errors.New("creating minio client failed").
				WithTag("endpoint", conf.Minio.Endpoint).
				Wrap(err)
		}

		sinks = append(sinks, &sink.MinioSink{
			Client: client,
			Bucket: conf.Minio.Bucket,
			Region: conf.Minio.Region,
		})
	}

	if conf.Redis.Addr != "" {
		sinks = append(sinks, sink.RedisSink{
			Client: redis.NewClient(&redis.Options{
				Addr:     conf.Redis.Addr,
				Password: conf.Redis.Password,
				DB:       conf.Redis.DB,
			}),
			TTL: conf.Redis.TTL,
		})
	}
	return sinks, nil
}

func granuleQuery(conf queryConfig) (source.GranuleQuery, error) {
	start, err := time.Parse(dateLayout, conf.Start)
	if err != nil {
		return source.GranuleQuery{}, errors.New("invalid query start").
			WithType(source.ErrTypeInvalidQuery).
			WithTag("start", conf.Start).
			Wrap(err)
	}

	end, err := time.Parse(dateLayout, conf.End)
	if err != nil {
		return source.GranuleQuery{}, errors.New("invalid query end").
			WithType(source.ErrTypeInvalidQuery).
			WithTag("end", conf.End).
			Wrap(err)
	}

	q := source.GranuleQuery{
		Start:         start,
		End:           end,
		PlatformTypes: conf.PlatformTypes,
		GranuleTypes:  conf.GranuleTypes,
		ProductTypes:  conf.ProductTypes,
	}
	return q, q.Validate()
}

func databaseURL(conf databaseConfig) string {
	if conf.URL != "" {
		return conf.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   conf.Host,
		Path:   "/" + conf.Name,
	}
	if conf.Username != "" {
		u.User = url.UserPassword(conf.Username, conf.Password)
	}
	return u.String()
}

func validateConfig(conf config) error {
	switch conf.Source {
	case "file":
		if conf.InputPath == "" {
			return errors.New("the file source needs an input path")
		}

	case "postgres":
		if conf.Database.URL == "" && conf.Database.Host == "" {
			return errors.New("the postgres source needs a database url or host")
		}

	default:
		return errors.New("invalid source").WithTag("source", conf.Source)
	}

	if conf.OutputDir == "" && conf.Minio.Endpoint == "" && conf.Redis.Addr == "" {
		return errors.New("at least one of output dir, minio endpoint or redis addr is required")
	}

	if conf.Minio.Endpoint != "" && conf.Minio.Bucket == "" {
		return errors.New("the minio sink needs a bucket")
	}

	return quadtree.Options{
		Tolerance:   conf.Tolerance,
		MinCellSize: conf.MinCellSize,
	}.Validate()
}
