package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/truemediaorg/detectbot/config"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/store"
)

func init() {
	recordCmd.AddCommand(recordGetCmd, recordDeleteCmd, recordBackfillCmd)
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspects and administers stored detection records",
}

var recordGetCmd = &cobra.Command{
	Use:   "get <shortId>",
	Short: "Prints the record behind a short id",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, records *store.Store, args []string) error {
		retrieval, err := records.FindByShortID(ctx, args[0])
		if err != nil {
			return err
		}
		switch retrieval.Status {
		case model.RetrievalNotFound:
			return fmt.Errorf("no record with short id %s", args[0])
		case model.RetrievalGone:
			fmt.Printf("record %s has been deleted\n", args[0])
			return nil
		}

		record := *retrieval.Record
		record.ImageBytes = nil
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(record)
	}),
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <shortId>",
	Short: "Soft deletes a record; its link reports gone from then on",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, records *store.Store, args []string) error {
		if err := records.SoftDelete(ctx, args[0]); err != nil {
			return err
		}
		log.WithField("shortId", args[0]).Info("record deleted")
		return nil
	}),
}

var recordBackfillCmd = &cobra.Command{
	Use:   "backfill <recordId>",
	Short: "Allocates a short id for a record stored without one",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, records *store.Store, args []string) error {
		shortID, err := records.BackfillShortID(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(shortID)
		return nil
	}),
}

func withStore(fn func(ctx context.Context, records *store.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnvfile()
		setupLogging(cfg)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var secrets config.SecretGetter
		if cfg.Database.Driver != config.DatabaseDriverSQLite && cfg.Database.PostgresURL == "" {
			client, err := newSecretsClient(ctx)
			if err != nil {
				return err
			}
			secrets = client
		}

		records, closeStore, err := openStore(ctx, cfg.Database, secrets)
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(ctx, records, args)
	}
}
