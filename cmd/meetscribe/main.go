// Command meetscribe runs the meeting transcription service: uploads and
// live recordings go through transcription, diarization and speaker naming,
// and results are served over HTTP, server-sent events and websockets.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kbukum/meetscribe/api"
	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/auth"
	"github.com/kbukum/meetscribe/bootstrap"
	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/config"
	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/diarization/pyannote"
	"github.com/kbukum/meetscribe/embedding/sidecar"
	"github.com/kbukum/meetscribe/encryption"
	"github.com/kbukum/meetscribe/jobs"
	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/kafka/producer"
	"github.com/kbukum/meetscribe/live"
	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/llm/ollama"
	"github.com/kbukum/meetscribe/llm/openai"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/observability"
	"github.com/kbukum/meetscribe/orchestrator"
	"github.com/kbukum/meetscribe/process"
	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/redis"
	"github.com/kbukum/meetscribe/resilience"
	"github.com/kbukum/meetscribe/server"
	"github.com/kbukum/meetscribe/server/endpoint"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/sse"
	"github.com/kbukum/meetscribe/storage"
	_ "github.com/kbukum/meetscribe/storage/local"
	_ "github.com/kbukum/meetscribe/storage/s3"
	"github.com/kbukum/meetscribe/store"
	"github.com/kbukum/meetscribe/transcription/whisper"
	"github.com/kbukum/meetscribe/voiceprofile"
)

const serviceName = "meetscribe"

type cli struct {
	Config  string           `help:"Path to the YAML config file." type:"path" placeholder:"FILE"`
	EnvFile string           `help:"Path to a .env file." name:"env-file" type:"path" placeholder:"FILE"`
	Version kong.VersionFlag `help:"Print the version and exit."`
}

func main() {
	var args cli
	kong.Parse(&args,
		kong.Name(serviceName),
		kong.Description("Meeting transcription service."),
		kong.Vars{"version": endpoint.Version},
	)

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg,
		config.WithConfigFile(args.Config),
		config.WithEnvFile(args.EnvFile),
		config.WithEnvPrefix("MEETSCRIBE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = endpoint.Version
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := wire(app); err != nil {
		app.Logger.Fatal("wiring failed", logger.ErrorFields("wire", err))
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Fatal("application error", logger.ErrorFields("run", err))
	}
}

// infra holds the infrastructure components started before wiring.
type infra struct {
	telemetry *observability.Component
	db        *database.Component
	redis     *redis.Component
	blobs     *storage.Component
	events    *sse.Component
	jobs      provider.Sink[kafka.Event]
}

// wire registers infrastructure components and defers business wiring to
// the configure phase, when connections are open.
func wire(app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger

	in := &infra{
		telemetry: observability.NewComponent(cfg.Observability, app.Name, app.Version, cfg.Environment, log),
		db:        database.NewComponent(cfg.Database, log).WithAutoMigrate(store.Models()...),
		redis:     redis.NewComponent(cfg.Redis, log),
		blobs:     storage.NewComponent(cfg.Storage, log),
		events:    sse.NewComponent(log),
	}
	kc := kafka.NewComponent(cfg.Kafka, log)
	if cfg.Kafka.Enabled {
		p, err := producer.NewLazyProducer(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		kc.SetProducer(p)
		in.jobs = provider.WithSinkResilience[kafka.Event](producer.NewPublisher(p, cfg.Kafka.Topic), provider.ResilienceConfig{
			Retry: &resilience.RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 200 * time.Millisecond,
				MaxBackoff:     2 * time.Second,
				BackoffFactor:  2,
				RetryIf:        kafka.IsRetryableError,
			},
		})
	}

	for _, c := range []component.Component{in.telemetry, in.db, in.redis, in.blobs, kc, in.events} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		return configure(ctx, a, in)
	})
	return nil
}

// configure builds the business components over the running
// infrastructure. Components started here stop before the infrastructure,
// the HTTP server first.
func configure(ctx context.Context, a *bootstrap.App[*Config], in *infra) error {
	cfg, log := a.Cfg, a.Logger

	metrics := in.telemetry.Metrics()

	var storeOpts []store.Option
	if cfg.Encryption.Enabled {
		sealer, err := encryption.New(cfg.Encryption)
		if err != nil {
			return err
		}
		storeOpts = append(storeOpts, store.WithSealer(sealer))
	}
	st := store.New(in.db.DB(), log, storeOpts...)
	if err := st.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("store indexes: %w", err)
	}
	blobs := in.blobs.Storage()

	var rc *redis.Client
	fanout := []jobs.FanoutOption{jobs.WithHub(in.events.Hub())}
	if in.redis.Enabled() {
		rc = in.redis.Client()
		fanout = append(fanout, jobs.WithPubSub(rc))
	}
	if in.jobs != nil {
		fanout = append(fanout, jobs.WithEvents(in.jobs))
	}
	tracker := jobs.NewTracker(st, jobs.NewFanout(log, fanout...), log)

	transcriber, err := whisper.NewProvider(cfg.Whisper)
	if err != nil {
		return fmt.Errorf("whisper: %w", err)
	}
	diarizer, err := pyannote.NewProvider(cfg.Pyannote)
	if err != nil {
		return fmt.Errorf("pyannote: %w", err)
	}
	embedder, err := sidecar.NewProvider(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	normalizer := audio.NewNormalizer(cfg.Audio, ffmpegRunner(cfg.Audio), log)

	completer, err := completions(a, metrics)
	if err != nil {
		return err
	}
	var idOpts []speakerid.Option
	if cfg.SpeakerID.ProfilesEnabled {
		idOpts = append(idOpts, speakerid.WithProfiles(embedder, st))
	}
	identifier := speakerid.New(cfg.SpeakerID, completer, log, idOpts...)
	profiles := voiceprofile.NewService(st, blobs, embedder, cfg.SpeakerID.ProfileSamples, log)

	ttl := cfg.Redis.TTL()
	if ttl <= 0 {
		ttl = cfg.Orchestrator.CacheTTL
	}
	orch, err := orchestrator.New(cfg.Orchestrator, orchestrator.Deps{
		Store:       st,
		Blobs:       blobs,
		Normalizer:  normalizer,
		Transcriber: transcriber,
		Diarizer:    diarizer,
		Identifier:  identifier,
		Tracker:     tracker,
		Cache:       orchestrator.NewArtifactCache(st, rc, ttl, log),
		Metrics:     metrics,
	}, log)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := a.StartComponent(ctx, orch); err != nil {
		return err
	}

	coord, err := live.New(cfg.Live, live.Deps{
		Store:       st,
		Blobs:       blobs,
		Decoder:     normalizer,
		Transcriber: transcriber,
		Embedder:    embedder,
		Identifier:  identifier,
		Tracker:     tracker,
		Finalizer:   orch,
		Metrics:     metrics,
	}, log)
	if err != nil {
		return fmt.Errorf("live: %w", err)
	}
	if err := a.StartComponent(ctx, coord.Component()); err != nil {
		return err
	}

	handler, err := api.New(cfg.API, api.Deps{
		Store:    st,
		Blobs:    blobs,
		Pipeline: orch,
		Live:     coord,
		Profiles: profiles,
		Hub:      in.events.Hub(),
	}, log)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}

	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		if verifier, err = auth.NewVerifier(cfg.Auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(verifier)
	srv.UseMetrics(metrics)
	srv.RegisterDefaultEndpoints(a.Name, a.Components.HealthAll)
	handler.Register(srv.GinEngine())
	return a.StartComponent(ctx, server.NewComponent(srv))
}

// completions builds the naming backend: the enabled LLM providers in
// priority order, behind a circuit breaker, with logging, metrics and
// tracing around each call.
func completions(a *bootstrap.App[*Config], metrics *observability.Metrics) (speakerid.Completer, error) {
	cfg := a.Cfg.LLM
	m := llm.NewManager(llm.WithSelector(&provider.PrioritySelector[llm.Provider]{Priority: cfg.Priority()}))
	m.Register("ollama", ollama.Factory())
	m.Register("openai", openai.Factory())
	for _, name := range cfg.Priority() {
		pc := cfg.Ollama
		if name == "openai" {
			pc = cfg.OpenAI
		}
		if err := m.Initialize(name, pc.ToMap()); err != nil {
			return nil, fmt.Errorf("llm %s: %w", name, err)
		}
	}
	a.OnStop(m.Close)

	backend := provider.WithResilience(llm.AsRequestResponse(llm.FromManager(m)), provider.ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			Name:             "llm",
			MaxFailures:      5,
			Timeout:          30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	})
	return provider.Chain(
		provider.WithLogging[llm.CompletionRequest, llm.CompletionResponse](a.Logger.WithComponent("llm")),
		provider.WithMetrics[llm.CompletionRequest, llm.CompletionResponse](metrics),
		provider.WithTracing[llm.CompletionRequest, llm.CompletionResponse](a.Name),
	)(backend), nil
}

// ffmpegRunner caps concurrent ffmpeg processes when configured.
func ffmpegRunner(cfg audio.Config) *process.Runner {
	var rc provider.ResilienceConfig
	if cfg.MaxConcurrent > 0 {
		rc.Bulkhead = &resilience.BulkheadConfig{
			Name:          "ffmpeg",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       -1,
		}
	}
	return process.NewRunner(rc)
}
