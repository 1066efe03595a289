package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

var ErrNotInitialized = errors.New("mongodb client is not initialized")

var (
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
	initOnce       sync.Once
	initErr        error
)

// InitMongoDB connects the shared client and selects dbName.
// It should be called once at application startup.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	initOnce.Do(func() {
		log.Info().Str("database", dbName).Msg("Initializing MongoDB client")

		clientOptions := options.Client().
			ApplyURI(uri).
			SetAppName("airform").
			SetConnectTimeout(10 * time.Second).
			SetServerSelectionTimeout(10 * time.Second).
			SetMonitor(otelmongo.NewMonitor())

		client, err := mongo.Connect(clientOptions)
		if err != nil {
			initErr = fmt.Errorf("connect to mongodb: %w", err)
			return
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			initErr = fmt.Errorf("ping mongodb primary: %w", err)
			return
		}

		clientInstance = client
		dbInstance = client.Database(dbName)
		log.Info().Str("database", dbName).Msg("MongoDB connected")
	})

	return initErr
}

// GetDB returns the database selected by InitMongoDB, or nil before it.
func GetDB() *mongo.Database {
	return dbInstance
}

// Ping checks the primary within two seconds. It backs /healthz.
func Ping(ctx context.Context) error {
	if clientInstance == nil {
		return ErrNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return clientInstance.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the shared client on shutdown.
func CloseMongoDB(ctx context.Context) {
	if clientInstance != nil {
		log.Info().Msg("Disconnecting MongoDB")
		if err := clientInstance.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("MongoDB disconnect failed")
		}
	}
}
