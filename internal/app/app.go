package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/connect"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	lambdaapi "voice-transcription-service/internal/api/lambda"
	"voice-transcription-service/internal/attributes"
	"voice-transcription-service/internal/auth"
	"voice-transcription-service/internal/config"
	"voice-transcription-service/internal/delivery"
	"voice-transcription-service/internal/events"
	"voice-transcription-service/internal/media"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/logging"
	"voice-transcription-service/internal/observability/metrics"
	"voice-transcription-service/internal/schema"
	"voice-transcription-service/internal/secrets"
	"voice-transcription-service/internal/service/audio"
	"voice-transcription-service/internal/service/orchestrator"
	"voice-transcription-service/internal/service/stt"
	"voice-transcription-service/internal/service/stt/google"
	"voice-transcription-service/internal/service/stt/mock"
	"voice-transcription-service/internal/service/stt/transcribe"
	"voice-transcription-service/internal/service/track"
)

const serviceName = "voice-transcription-service"

// Application holds process-wide state for the service. Everything here is
// built once per execution environment and shared by all invocations.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Handler      *lambdaapi.Handler
	Orchestrator *orchestrator.Orchestrator
	Tokens       *auth.TokenCache

	publisher *events.Publisher
	pusher    *metrics.Pusher
	closers   []io.Closer
	sentry    bool
}

// New constructs the Application and all clients from cfg.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{Cfg: cfg}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.AppRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	recognizer, err := a.newRecognizer(ctx, awsCfg)
	if err != nil {
		return nil, err
	}

	a.Tokens = auth.NewTokenCache(a.newSecretStore(awsCfg), auth.Config{
		KeyParamName: cfg.Auth.PrivateKeyParamName,
		Issuer:       cfg.Auth.OrgID,
		Subject:      cfg.Auth.CallCenterAPIName,
		Audience:     cfg.Auth.Audience,
		TTL:          cfg.Auth.TokenTTL,
	})

	a.publisher = events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicSegments: cfg.Kafka.TopicSegments,
		TopicStatus:   cfg.Kafka.TopicStatus,
		Principal:     cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.publisher)

	attrs := attributes.NewConnectUpdater(connect.NewFromConfig(awsCfg))
	senders := func(req models.TranscriptionRequest) audio.Sender {
		return delivery.New(delivery.Config{
			EndpointBase:        cfg.Delivery.EndpointBase,
			Timeout:             cfg.Delivery.Timeout,
			VoiceCallID:         req.VoiceCallID,
			InstanceARN:         req.InstanceARN,
			CustomerPhoneNumber: req.CustomerPhoneNumber,
		}, a.Tokens, attrs, delivery.WithSink(a.publisher))
	}

	source := media.NewKVSSource(kinesisvideo.NewFromConfig(awsCfg), media.NewMediaFactory(awsCfg), cfg.Media.StartSelectorType)
	tracks := track.NewBuilder(source, cfg.Media.FrameBufferSize)

	a.Orchestrator = orchestrator.New(orchestrator.Config{
		Deadline:     cfg.Session.Deadline,
		WaitMode:     cfg.Session.WaitMode,
		SampleRateHz: cfg.Recognition.SampleRateHz,
	}, schema.New(), TrackBuilder(tracks), recognizer, senders)

	a.pusher = metrics.NewPusher(cfg.Observability.PushgatewayURL, serviceName)
	a.setupSentry()

	a.Handler = lambdaapi.NewHandler(a.Orchestrator,
		lambdaapi.WithFailureReporter(a.reportFailure),
		lambdaapi.WithAfterRun(a.afterRun),
	)

	appLogger.Info().
		Str("provider", recognizer.Name()).
		Str("waitMode", cfg.Session.WaitMode).
		Dur("deadline", cfg.Session.Deadline).
		Msg("Voice transcription service application created")
	return a, nil
}

// TrackBuilder adapts a track.Builder to the orchestrator.
func TrackBuilder(b *track.Builder) orchestrator.TrackBuilder {
	return orchestrator.TrackBuilderFunc(func(ctx context.Context, streamName, startOffset string, d models.Direction, voiceCallID string) (orchestrator.Track, error) {
		s, err := b.Build(ctx, streamName, startOffset, d, voiceCallID)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

func (a *Application) newRecognizer(ctx context.Context, awsCfg aws.Config) (stt.Recognizer, error) {
	switch a.Cfg.Recognition.Provider {
	case google.ProviderName:
		g, err := google.New(ctx, google.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("create google recognizer: %w", err)
		}
		a.closers = append(a.closers, g)
		return g, nil
	case mock.ProviderName:
		return mock.New(mock.DefaultConfig()), nil
	default:
		client := transcribestreaming.NewFromConfig(awsCfg, func(o *transcribestreaming.Options) {
			o.Region = a.Cfg.AWS.TranscribeRegion
		})
		return transcribe.New(client), nil
	}
}

func (a *Application) newSecretStore(awsCfg aws.Config) auth.SecretStore {
	if a.Cfg.Auth.SecretsSource == "extension" {
		return secrets.NewExtensionStore(a.Cfg.Auth.ExtensionPort)
	}
	return secrets.NewSSMStore(ssm.NewFromConfig(awsCfg))
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	lc.Level = a.Cfg.Observability.LogLevel
	lc.Format = a.Cfg.Observability.LogFormat
	if a.Cfg.Service.Env == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	a.Logger = log.With().
		Str("service", serviceName).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

func (a *Application) setupSentry() {
	if a.Cfg.Observability.SentryDSN == "" {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         a.Cfg.Observability.SentryDSN,
		Environment: a.Cfg.Service.Env,
		ServerName:  serviceName,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Sentry init failed")
		return
	}
	a.sentry = true
	a.Logger.Info().Msg("Sentry initialized")
}

// reportFailure sends a failed invocation to Sentry.
func (a *Application) reportFailure(_ context.Context, req models.TranscriptionRequest, err error) {
	if !a.sentry {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("voiceCallId", req.VoiceCallID)
		scope.SetTag("engine", req.Engine)
		scope.SetExtra("streamARN", req.StreamARN)
		sentry.CaptureException(err)
	})
}

// afterRun flushes everything that must leave the process before the
// execution environment is frozen.
func (a *Application) afterRun(ctx context.Context) {
	if a.sentry {
		sentry.Flush(2 * time.Second)
	}
	a.pusher.Push(ctx, map[string]string{"instance": hostname()})
}

// Start performs any startup work required before serving invocations.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice transcription service starting")

	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Close failed")
		}
	}
	if a.sentry {
		sentry.Flush(2 * time.Second)
	}
	shutdownLogger.Info().Msg("Voice transcription service shutting down")
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
