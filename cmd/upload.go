package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/sink"
)

var (
	uploadCollection string
	uploadMongoURI   string
	uploadChunk      int
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.json>",
	Short: "Upsert a scraped JSON file into MongoDB",
	Long:  "Reads a JSON array produced by an earlier file run and upserts the records into MongoDB, keyed by content hash so re-uploads update instead of duplicating.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "upload: read %s", args[0])
		}
		var records []model.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return eris.Wrapf(err, "upload: parse %s", args[0])
		}
		if len(records) == 0 {
			zap.L().Info("nothing to upload", zap.String("file", args[0]))
			return nil
		}

		collection := uploadCollection
		if collection == "" {
			collection = cfg.Mongo.Collection
		}

		uri := uploadMongoURI
		if uri == "" {
			uri = cfg.Mongo.URI
		}

		snk, err := sink.NewMongo(ctx, uri, cfg.Mongo.Database, collection)
		if err != nil {
			return err
		}
		defer snk.Close(ctx) //nolint:errcheck

		start := time.Now()
		var total sink.Result
		for i := 0; i < len(records); i += uploadChunk {
			end := min(i+uploadChunk, len(records))
			res, err := snk.WriteBatch(ctx, records[i:end])
			total = total.Add(res)
			if err != nil {
				return eris.Wrapf(err, "upload: records %d-%d", i, end-1)
			}
		}

		docs, err := snk.Count(ctx)
		if err != nil {
			zap.L().Warn("collection count unavailable", zap.Error(err))
		}

		zap.L().Info("upload complete",
			zap.String("file", args[0]),
			zap.String("collection", collection),
			zap.Int("records", len(records)),
			zap.Int("inserted", total.Inserted),
			zap.Int("updated", total.Updated),
			zap.Int("failed", total.Failed),
			zap.Int64("collection_docs", docs),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadCollection, "collection", "", "target collection (default from config)")
	uploadCmd.Flags().StringVar(&uploadMongoURI, "mongo-uri", "", "MongoDB URI (default from config)")
	uploadCmd.Flags().IntVar(&uploadChunk, "chunk", 500, "records per bulk write")
	rootCmd.AddCommand(uploadCmd)
}
