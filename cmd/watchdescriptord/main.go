package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/config"
	"github.com/tdex-network/watchdescriptor/internal/core/application"
	"github.com/tdex-network/watchdescriptor/internal/core/application/pubsub"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	websocketpubsub "github.com/tdex-network/watchdescriptor/internal/infrastructure/pubsub/websocket"
	esplorawallet "github.com/tdex-network/watchdescriptor/internal/infrastructure/wallet/esplora"
	httpinterface "github.com/tdex-network/watchdescriptor/internal/interfaces/http"
	"github.com/tdex-network/watchdescriptor/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to init config")
	}

	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	var (
		network         = config.GetNetwork()
		datastoreType   = config.GetString(config.DatastoreTypeKey)
		listeningPort   = config.GetInt(config.ListeningPortKey)
		pollInterval    = config.GetSeconds(config.BlockPollIntervalKey)
		profilerEnabled = config.GetBool(config.EnableProfilerKey)
		statsInterval   = config.GetSeconds(config.StatsIntervalKey)
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if profilerEnabled {
		stats.EnableMemoryStatistics(
			ctx, statsInterval,
			filepath.Join(config.GetDatadir(), config.ProfilerLocation),
		)
	}

	engine, err := esplorawallet.NewService(ctx, esplorawallet.Opts{
		URL:               config.GetEsploraURL(),
		Network:           network,
		RequestsPerSecond: config.GetInt(config.EsploraRequestsPerSecondKey),
		DefaultGap:        config.GetUint32(config.DefaultGapKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to esplora")
	}

	hub := websocketpubsub.NewHub(
		websocketpubsub.DefaultBufferSize,
		websocketpubsub.DefaultPingInterval,
		websocketpubsub.DefaultPongWait,
	)

	var dbConfig interface{}
	switch datastoreType {
	case config.DatastoreBadger:
		dbConfig = config.GetDbDir()
	case config.DatastorePostgres:
		dbConfig = config.GetString(config.PgConnectAddrKey)
	}

	appConfig := &application.Config{
		DBType:            datastoreType,
		DBConfig:          dbConfig,
		Engine:            engine,
		Network:           network,
		CoinType:          config.GetCoinType(),
		RescanConcurrency: config.GetInt(config.RescanConcurrencyKey),
		WebhookTimeout:    config.GetSeconds(config.WebhookTimeoutKey),
		Publishers:        []ports.Publisher{hub},
	}
	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("invalid app config")
	}

	watchSvc := appConfig.WatchService()
	webhookSvc := pubsub.NewService(appConfig.WebhookPubSub())

	blockListener := application.NewBlockListener(engine, watchSvc, pollInterval)

	httpSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:       fmt.Sprintf(":%d", listeningPort),
		WatchSvc:      watchSvc,
		WebhookSvc:    webhookSvc,
		Notifications: hub,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init http interface")
	}

	log.WithFields(log.Fields{
		"network":   network,
		"datastore": datastoreType,
		"esplora":   config.GetEsploraURL(),
	}).Info("starting daemon")

	if err := httpSvc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}
	blockListener.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	<-sigChan

	log.Info("shutting down daemon")

	// Rescans must be over before the dispatcher is drained, and deliveries
	// must be over before the hub is closed.
	httpSvc.Stop()
	blockListener.Stop()
	appConfig.Close()
	hub.Close()
	cancel()

	log.Info("exiting")
}
