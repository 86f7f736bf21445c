// Package bootstrap wires a configuration.Configuration into a running
// process: it selects the blob store backend, opens the database, builds
// the HTTP surface, and starts the background TTL sweeper, the way
// cmd/coldbase's main loop used to do inline.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fulldump/box"
	"github.com/lmittmann/tint"

	"github.com/coldbase/coldbase/api"
	"github.com/coldbase/coldbase/blobstore"
	"github.com/coldbase/coldbase/blobstore/azureblob"
	"github.com/coldbase/coldbase/blobstore/localfs"
	"github.com/coldbase/coldbase/blobstore/s3store"
	"github.com/coldbase/coldbase/configuration"
	"github.com/coldbase/coldbase/database"
	"github.com/coldbase/coldbase/service"
	"github.com/coldbase/coldbase/streamutil"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var VERSION = "dev"

// NewLogger builds the tint-colored slog logger every subsystem shares.
func NewLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
}

// OpenStore selects a blobstore.Store backend from configuration. S3 and
// Azure clients are built eagerly so a misconfigured deployment fails at
// startup instead of on the first request.
func OpenStore(ctx context.Context, c *configuration.Configuration) (blobstore.Store, error) {
	switch c.StoreKind {
	case "", "local":
		return localfs.New(c.StoreDir)

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.S3Region))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if c.S3Endpoint != "" {
				o.BaseEndpoint = &c.S3Endpoint
				o.UsePathStyle = true
			}
		})
		return s3store.New(client, c.S3Bucket), nil

	case "azure":
		return azureblob.NewFromConnectionString(c.AzureConnectionString, c.AzureContainer)

	default:
		return nil, fmt.Errorf("bootstrap: unknown store kind %q", c.StoreKind)
	}
}

func Bootstrap(c *configuration.Configuration) (start, stop func()) {

	logger := NewLogger()
	slogLogger := streamutil.NewSlogLogger(logger)

	ctx := context.Background()

	store, err := OpenStore(ctx, c)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(-1)
	}

	db := database.NewDatabase(database.Config{
		Store:             store,
		CollectionOptions: c.CollectionOptions(),
		Logger:            slogLogger,
	})

	s := service.NewService(db)

	b := api.Build(db, s)
	b.WithInterceptors(
		api.AccessLog(slogLogger),
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		logger.Error("listen", "addr", c.HttpAddr, "error", err)
		os.Exit(-1)
	}
	logger.Info("listening", "addr", c.HttpAddr)

	sweepDone := make(chan struct{})

	stop = func() {
		close(sweepDone)
		db.Stop()
		server.Shutdown(context.Background())
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		logger.Info("signal received", "signal", sig.String())
		stop()
	}()

	start = func() {

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.Start(ctx); err != nil {
				logger.Error("database stopped", "error", err)
			}
		}()

		if c.TTLSweepInterval > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				runTTLSweeper(ctx, db, c.TTLSweepInterval, slogLogger, sweepDone)
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Error("server stopped", "error", err)
			}
		}()

		wg.Wait()
	}

	return
}

// runTTLSweeper periodically tombstones expired records in every open
// collection, the sole background maintenance not already triggered
// inline by writes.
func runTTLSweeper(ctx context.Context, db *database.Database, interval time.Duration, logger streamutil.Logger, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, name := range db.ListCollections() {
				col, exists := db.GetCollection(name)
				if !exists {
					continue
				}
				n, err := col.DeleteExpired(ctx)
				if err != nil {
					logger.Errorf("bootstrap: sweep %q: %v", name, err)
					continue
				}
				if n > 0 {
					logger.Infof("bootstrap: sweep %q expired %d records", name, n)
				}
			}
		}
	}
}
