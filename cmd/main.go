package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/app"
	"voice-transcription-service/internal/config"
	httpapi "voice-transcription-service/internal/http"
	"voice-transcription-service/internal/observability"
)

func main() {
	cfg := config.Load()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	if err := a.Start(); err != nil {
		log.Fatal().Err(err).Msg("start app")
	}

	// Inside Lambda the runtime owns the process; lambda.Start never returns.
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.StartWithOptions(a.Handler.Handle, lambda.WithEnableSIGTERM(a.Shutdown))
		return
	}

	srv := observability.NewServer(cfg.Local.HTTPAddr, httpapi.NewRouter(a.Handler))
	srv.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	a.Shutdown()
}
