package serverapp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ensembl-io/genoverse-backend/pkg/bootconfig"
	"github.com/ensembl-io/genoverse-backend/pkg/bundlehandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/bundles"
	"github.com/ensembl-io/genoverse-backend/pkg/cache"
	"github.com/ensembl-io/genoverse-backend/pkg/datahandlers"
	"github.com/ensembl-io/genoverse-backend/pkg/delegate"
	"github.com/ensembl-io/genoverse-backend/pkg/engine"
	"github.com/ensembl-io/genoverse-backend/pkg/expansion"
	"github.com/ensembl-io/genoverse-backend/pkg/genomicfile"
	"github.com/ensembl-io/genoverse-backend/pkg/cache/redisstore"
	"github.com/ensembl-io/genoverse-backend/pkg/jumpindex"
	"github.com/ensembl-io/genoverse-backend/pkg/metrics"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
	"github.com/ensembl-io/genoverse-backend/pkg/tracks"
)

const configKey = "server"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts the genoverse-backend HTTP endpoint",
	Long: `serve starts a genoverse-backend instance based on the config read by
the root command.

The following keys are read under "server" from the config file/env/flags:
  port, grace_period, default_channel, supported_versions, redis_addr,
  kafka_brokers, kafka_topic, cache_prefix, cache_bump_on_restart,
  bundles_config_path, bundles_program_dir, tracks_file, species_csv,
  jump_index_dir, peers, overrides, delegate_timeout_ms`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	logger := logrus.StandardLogger()

	var cfg bootconfig.Config
	if err := viper.UnmarshalKey(configKey, &cfg); err != nil {
		logger.WithError(err).Fatal("serverapp: error unmarshalling server config")
	}
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.GracePeriodSec == 0 {
		cfg.GracePeriodSec = 10
	}
	if len(cfg.SupportedVersions) == 0 {
		cfg.SupportedVersions = []uint32{14, 15, 16}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, closers := build(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.WithError(err).Warn("serverapp: error closing collaborator")
			}
		}
	}()

	app := fiber.New()
	app.Use(recover.New())

	app.Post("/api/data/:priority", func(c *fiber.Ctx) error {
		priority := c.Params("priority")
		if priority != "hi" && priority != "lo" {
			return fiber.NewError(fiber.StatusNotFound, "unknown priority "+priority)
		}

		requestLog := logger.WithField("request_id", uuid.NewString())

		out, err := eng.Process(c.Context(), c.Body())
		if err != nil {
			requestLog.WithError(err).Warn("serverapp: packet decode failure")
			return fiber.NewError(fiber.StatusBadRequest, "malformed packet")
		}

		c.Set(fiber.HeaderContentType, "application/cbor")
		return c.Send(out)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		logger.WithField("addr", addr).Info("serverapp: listening")
		if err := app.Listen(addr); err != nil {
			logger.WithError(err).Error("serverapp: listener stopped")
		}
	}()

	<-quit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracePeriodSec)*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		fmt.Printf("error shutting down server [%v]\n", err)
		os.Exit(1)
	}
}

// build assembles every boot-time collaborator and the PacketEngine
// itself, returning cleanup funcs for anything that holds a background
// goroutine or connection pool.
func build(ctx context.Context, cfg bootconfig.Config, logger *logrus.Logger) (*engine.Engine, []func() error) {
	var closers []func() error

	kv := redisstore.New(redisstore.NewPool(cfg.RedisAddr))
	dataCache := cache.New(ctx, kv, cfg.CachePrefix, cfg.CacheBumpOnBoot, logger)

	var metricSink metrics.Sink
	if len(cfg.KafkaBrokers) > 0 {
		ks := metrics.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		metricSink = ks
		closers = append(closers, ks.Close)
	} else {
		metricSink = metrics.NewLoggingSink(logger)
	}

	var sticks []species.Stick
	if cfg.SpeciesCSV != "" {
		loaded, err := bootconfig.LoadSpeciesCSV(cfg.SpeciesCSV)
		if err != nil {
			logger.WithError(err).Fatal("serverapp: loading species csv")
		}
		sticks = loaded
	}
	speciesResolver := species.NewInMemory(sticks)

	inv, err := bundles.Load(cfg.BundlesConfigPath, cfg.BundlesProgramDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("serverapp: loading bundle inventory")
	}
	closers = append(closers, inv.Close)

	trackRegistry := tracks.New()
	if cfg.TracksFile != "" {
		if err := trackRegistry.LoadFile(cfg.TracksFile); err != nil {
			logger.WithError(err).Fatal("serverapp: loading tracks")
		}
	}

	expansions := expansion.New()

	var jumpIdx bundlehandlers.JumpIndex
	if cfg.JumpIndexDir != "" {
		idx := jumpindex.New(cfg.JumpIndexDir, logger)
		jumpIdx = idx
		closers = append(closers, idx.Close)
	}

	features := genomicfile.NewStubStore()

	accessors := engine.NewAccessorCollection(speciesResolver, features, features, features, dataCache)

	dataHandlerEntries := []engine.DataHandlerEntry{
		{Name: "zoomed-seq", Handler: datahandlers.ZoomedSeqHandler{}},
		{Name: "gc", Handler: datahandlers.WiggleDataHandler{}},
		{Name: "contig", Handler: datahandlers.ContigDataHandler{}},
		{Name: "zoomed-contig", Handler: datahandlers.ContigDataHandler{Shimmer: true}},
		{Name: "gene", Handler: datahandlers.GeneDataHandler()},
		{Name: "gene-overview", Handler: datahandlers.GeneOverviewDataHandler()},
		{Name: "transcript", Handler: datahandlers.TranscriptDataHandler{}},
		{Name: "zoomed-transcript", Handler: datahandlers.TranscriptDataHandler{Zoomed: true}},
		{Name: "variant", Handler: datahandlers.VariantDataHandler()},
	}
	versionedData := engine.BuildVersionedDataHandlers(dataHandlerEntries)

	handlerMap := map[string]datahandlers.EndpointHandler{}
	for _, e := range dataHandlerEntries {
		handlerMap[e.Name] = e.Handler
	}
	dataRouter := datahandlers.NewRouter(handlerMap, cfg.CachePrefix)

	delegator := delegate.New(cfg.BuildPeers(), cfg.BuildOverrideTable(), logger)

	reg := engine.BuildRegistry()

	bundleProto := bundlehandlers.Context{
		SupportedVersions: cfg.SupportedVersions,
		Inventory:         inv,
		Species:           speciesResolver,
		Tracks:            trackRegistry,
		Cache:             dataCache,
		MetricSink:        metricSink,
		Expansions:        expansions,
		JumpIndex:         jumpIdx,
	}

	eng := engine.New(reg, accessors, dataRouter, versionedData, delegator, bundleProto, cfg.DefaultChannel, logger)
	return eng, closers
}
