package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"sipnread/api/internal/auth"
	"sipnread/api/internal/config"
	"sipnread/api/internal/flow"
	"sipnread/api/internal/handle"
	"sipnread/api/internal/httpserver"
	"sipnread/api/internal/llm/gemini"
	"sipnread/api/internal/notify"
	"sipnread/api/internal/objectstore"
	"sipnread/api/internal/speech"
	"sipnread/api/internal/store"
	"sipnread/api/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg, ctx.logger())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	defer func() { _ = log.Sync() }()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}

	var gopts []option.ClientOption
	if cfg.CredentialsFile != "" {
		gopts = append(gopts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	engine := gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model, gemini.NewMediaFetcher(nil, objectstore.BucketURL(cfg.Storage.Bucket)))
	fopts := []flow.Option{flow.WithSafety(cfg.Gemini.Safety)}
	if cfg.Gemini.Temperature != nil {
		fopts = append(fopts, flow.WithTemperature(*cfg.Gemini.Temperature))
	}
	flows := flow.New(engine, log.Named("flow"), fopts...)

	objects, err := objectstore.NewGCS(ctx, cfg.Storage.Bucket, gopts...)
	if err != nil {
		return err
	}

	var transcriber speech.Transcriber
	if cfg.Speech.Enabled {
		g, err := speech.NewGoogle(ctx, cfg.Speech.LanguageCode, gopts...)
		if err != nil {
			return err
		}
		transcriber = g
	}
	dictation := speech.SelectDictation(cfg.Speech.LocalDictation, transcriber)
	log.Info("dictation", zap.String("strategy", dictation.Name()))

	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.ChatID, log.Named("notify"))
	if err != nil {
		return err
	}

	verifier, err := auth.NewGoogleVerifier(ctx, cfg.Auth.Audience)
	if err != nil {
		return err
	}

	readings := store.NewReadingRepo(db)
	profiles := store.NewProfileRepo(db)
	wf := workflow.New(readings, store.NewPersonalizationRepo(db), profiles, log.Named("workflow"),
		workflow.WithNotifier(notifier),
		workflow.WithDictation(dictation),
		workflow.WithTranscriber(transcriber),
		workflow.WithPricing(workflow.Pricing{PriceCents: cfg.Pricing.PriceCents, Currency: cfg.Pricing.Currency}),
	)

	h := handle.New(handle.Deps{
		Flows:       flows,
		Workflow:    wf,
		Readings:    readings,
		Profiles:    profiles,
		Catalog:     store.NewCatalogRepo(db),
		Objects:     objects,
		Log:         log.Named("http"),
		FlowTimeout: cfg.FlowTimeout,
	})
	mux := http.NewServeMux()
	h.Routes(mux)

	log.Info("sipnread starting", zap.String("model", flows.ModelName()), zap.String("bucket", cfg.Storage.Bucket))
	return httpserver.New(":"+cfg.Port, auth.Middleware(verifier)(mux), log).Run(ctx)
}
