package cmd

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/truemediaorg/detectbot/config"
	"github.com/truemediaorg/detectbot/database"
	"github.com/truemediaorg/detectbot/store"
)

var rootCmd = &cobra.Command{
	Use:   "detectbot",
	Short: "detectbot answers mentions with AI image detection results",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("No subcommand given")
		cmd.Usage()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Exit with a nonzero exit code if the command fails with an error
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.Config) {
	log.SetLevel(cfg.LogLevel)
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}
}

func newSecretsClient(ctx context.Context) (*secretsmanager.Client, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsConfig), nil
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, secrets config.SecretGetter) (*store.Store, func(), error) {
	switch cfg.Driver {
	case config.DatabaseDriverSQLite:
		local, err := database.OpenLocal(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening local database: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("using local sqlite database")
		return store.NewStore(local), func() { local.Close() }, nil
	default:
		databaseURL := cfg.PostgresURL
		if databaseURL == "" {
			pgSecrets, err := config.LoadSecret[config.PostgresSecretData](ctx, secrets, cfg.PostgresSecretPath)
			if err != nil {
				return nil, nil, fmt.Errorf("postgres secrets: %w", err)
			}
			databaseURL = pgSecrets.ConnectionString
		}
		db := database.NewDatabase(databaseURL)
		if err := db.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("error connecting to database: %w", err)
		}
		return store.NewStore(db), db.Disconnect, nil
	}
}
