package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/domain"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	webhookpubsub "github.com/tdex-network/watchdescriptor/internal/infrastructure/pubsub/webhook"
	dbbadger "github.com/tdex-network/watchdescriptor/internal/infrastructure/storage/db/badger"
	dbinmemory "github.com/tdex-network/watchdescriptor/internal/infrastructure/storage/db/inmemory"
	dbpg "github.com/tdex-network/watchdescriptor/internal/infrastructure/storage/db/pg"
)

const (
	DBBadger   = "badger"
	DBInMemory = "inmemory"
	DBPostgres = "postgres"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
		DBPostgres: {},
	}
)

// Config lazily builds the app services and the infrastructure they depend
// on. DBConfig is the datastore directory for badger and the connection
// string for postgres.
type Config struct {
	DBType   string
	DBConfig interface{}

	Engine            ports.WalletEngine
	Network           domain.Network
	CoinType          string
	RescanConcurrency int
	WebhookTimeout    time.Duration
	// Publishers are notified of every coin movement along with webhooks.
	Publishers []ports.Publisher

	datastore  ports.Datastore
	webhooks   ports.WebhookPubSub
	dispatcher *Dispatcher
	watch      WatchService
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("unsupported db type %s", c.DBType)
	}
	if c.DBType != DBInMemory {
		if _, ok := c.DBConfig.(string); !ok {
			return fmt.Errorf("db config must be a string for db type %s", c.DBType)
		}
	}
	if c.Engine == nil {
		return fmt.Errorf("missing wallet engine")
	}
	if _, err := c.datastoreService(); err != nil {
		return err
	}
	if _, err := c.watchService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Datastore() ports.Datastore {
	svc, _ := c.datastoreService()
	return svc
}

func (c *Config) WebhookPubSub() ports.WebhookPubSub {
	svc, _ := c.webhookPubSub()
	return svc
}

func (c *Config) WatchService() WatchService {
	svc, _ := c.watchService()
	return svc
}

// Close stops the watch service and releases the datastore.
func (c *Config) Close() {
	if c.watch != nil {
		c.watch.Close()
	}
	if c.datastore != nil {
		c.datastore.Close()
	}
}

func (c *Config) datastoreService() (ports.Datastore, error) {
	if c.datastore == nil {
		var (
			datastore ports.Datastore
			err       error
		)
		switch c.DBType {
		case DBBadger:
			datastore, err = dbbadger.NewDatastore(c.DBConfig.(string), log.New())
		case DBPostgres:
			datastore, err = dbpg.NewDatastore(
				context.Background(), c.DBConfig.(string),
			)
		default:
			datastore = dbinmemory.NewDatastore()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s datastore: %w", c.DBType, err)
		}
		c.datastore = datastore
	}
	return c.datastore, nil
}

func (c *Config) webhookPubSub() (ports.WebhookPubSub, error) {
	if c.webhooks == nil {
		datastore, err := c.datastoreService()
		if err != nil {
			return nil, err
		}
		webhooks, err := webhookpubsub.NewService(datastore, c.WebhookTimeout)
		if err != nil {
			return nil, err
		}
		c.webhooks = webhooks
	}
	return c.webhooks, nil
}

func (c *Config) dispatcherService() (*Dispatcher, error) {
	if c.dispatcher == nil {
		webhooks, err := c.webhookPubSub()
		if err != nil {
			return nil, err
		}
		publishers := append([]ports.Publisher{webhooks}, c.Publishers...)
		c.dispatcher = NewDispatcher(publishers...)
	}
	return c.dispatcher, nil
}

func (c *Config) watchService() (WatchService, error) {
	if c.watch == nil {
		datastore, err := c.datastoreService()
		if err != nil {
			return nil, err
		}
		dispatcher, err := c.dispatcherService()
		if err != nil {
			return nil, err
		}
		watch, err := NewWatchService(context.Background(), WatchServiceOpts{
			Engine:            c.Engine,
			Datastore:         datastore,
			Dispatcher:        dispatcher,
			Network:           c.Network,
			CoinType:          c.CoinType,
			RescanConcurrency: c.RescanConcurrency,
		})
		if err != nil {
			return nil, err
		}
		c.watch = watch
	}
	return c.watch, nil
}
