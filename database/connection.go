package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ridoystarlord/mongrato/config"
)

var (
	gateway     *MongoGateway
	gatewayOnce sync.Once
	gatewayErr  error
)

// GetGateway returns a process-wide gateway for cfg. Only the first call's
// cfg is used.
func GetGateway(cfg *config.Config) (*MongoGateway, error) {
	gatewayOnce.Do(func() {
		if err := cfg.RequireDatabase(); err != nil {
			gatewayErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		gateway, gatewayErr = Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName, cfg.Timeout)
	})
	return gateway, gatewayErr
}

// Connect opens a client for uri, pings the primary and binds the gateway
// to database dbName.
func Connect(ctx context.Context, uri, dbName string, timeout time.Duration) (*MongoGateway, error) {
	clientOptions := options.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOptions.SetTimeout(timeout)
		clientOptions.SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &MongoGateway{client: client, db: client.Database(dbName)}, nil
}

// CloseGateway disconnects the shared gateway (should be called on shutdown).
func CloseGateway(ctx context.Context) error {
	if gateway != nil {
		return gateway.Close(ctx)
	}
	return nil
}
