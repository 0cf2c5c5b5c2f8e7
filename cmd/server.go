package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/truemediaorg/detectbot/config"
	"github.com/truemediaorg/detectbot/cursor"
	"github.com/truemediaorg/detectbot/extractor"
	"github.com/truemediaorg/detectbot/pipeline"
	"github.com/truemediaorg/detectbot/responder"
	"github.com/truemediaorg/detectbot/server"
	"github.com/truemediaorg/detectbot/service"
	"github.com/truemediaorg/detectbot/signer"
	"github.com/truemediaorg/detectbot/watcher"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 90 * time.Second
)

func init() {
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Runs the detectbot server",
	Long:  `Runs the detectbot server: the scheduled mention search, the webhook and the record lookup API`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromEnvfile()
		setupLogging(cfg)

		if cfg.TestModeEnabled {
			log.Info("TEST MODE ENABLED")
		}

		/*
			Graceful shutdown is possible with errgroup + signal.NotifyContext
			NotifyContext returns a context that will close on OS signals to terminate the process
			errgroup uses that context, and also closes it in case a goroutine errors out
		*/
		ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer done()

		secrets, err := newSecretsClient(ctx)
		if err != nil {
			log.Fatal(err)
		}

		records, closeStore, err := openStore(ctx, cfg.Database, secrets)
		if err != nil {
			log.Fatal(err)
		}
		defer closeStore()

		twitterSecrets, err := config.LoadSecret[config.TwitterSecretData](ctx, secrets, cfg.Twitter.SecretPath)
		if err != nil {
			log.Fatalf("twitter secrets: %v", err)
		}
		window := signer.NewWindow(cfg.Twitter.RequestBudget, cfg.Twitter.RequestWindow, nil)
		twitterService, err := service.NewTwitterService(ctx, cfg.Twitter, twitterSecrets, window, service.TwitterHost)
		if err != nil {
			log.Fatal(err)
		}

		detector, err := service.NewDetectionRunner(ctx, cfg.Detection, secrets)
		if err != nil {
			log.Fatal(err)
		}
		enricher, err := service.NewEnricher(ctx, cfg.Enrichment, secrets)
		if err != nil {
			log.Fatal(err)
		}

		mentionCursor, err := newCursor(ctx, cfg, records)
		if err != nil {
			log.Fatal(err)
		}

		tasks := pipeline.NewTasks(ctx)
		mentions := pipeline.New(
			pipeline.Config{
				BotHandle:       cfg.Twitter.BotUserName,
				Provider:        cfg.Detection.Provider,
				TestModeEnabled: cfg.TestModeEnabled,
			},
			extractor.NewExtractor(extractor.NewHTTPPageFetcher(extractor.DefaultFetchTimeout)),
			detector,
			enricher,
			records,
			responder.NewComposer(cfg.ShortLinkBaseURL),
			twitterService,
			twitterService,
			tasks,
			window,
		)

		mentionWatcher := watcher.NewWatcher(watcher.Config{
			Schedule:     cfg.Twitter.PollSchedule,
			CallsPerTick: cfg.Twitter.CallsPerTick,
			CallSpacing:  cfg.Twitter.CallSpacing,
		}, twitterService, mentionCursor, mentions, window)

		httpServer := server.NewHTTPServer(cfg.HTTPPort, server.NewHandlers(server.Config{
			ConsumerSecret: twitterSecrets.ConsumerSecret,
			WebhookEnabled: cfg.WebhookEnabled,
		}, mentions, records))

		g, gCtx := errgroup.WithContext(ctx)

		if err := mentionWatcher.Start(gCtx); err != nil {
			log.Fatalf("error scheduling watcher: %v", err)
		}

		g.Go(func() error {
			defer log.Info("exiting http server")
			return httpServer.Start()
		})

		// ...and wind everything down once the bot needs to terminate
		g.Go(func() error {
			<-gCtx.Done()
			<-mentionWatcher.Stop().Done()
			log.Info("exiting watcher")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Errorf("http server shutdown: %v", err)
			}

			if err := tasks.Drain(drainTimeout); err != nil {
				log.Warn(err)
			}
			log.Info("background tasks drained")
			return nil
		})

		err = g.Wait()
		if err != nil {
			log.Errorf("caught error: %v", err)
		}
	},
}

func newCursor(ctx context.Context, cfg config.Config, seed cursor.Seeder) (cursor.Store, error) {
	if cfg.RedisURL == "" {
		return cursor.NewMemory(seed), nil
	}
	client, err := cursor.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info("keeping mention cursor in redis")
	return cursor.NewRedis(client, seed), nil
}
