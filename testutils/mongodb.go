// Package testutils provides helpers for tests that need external services.
package testutils

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// MongoDBURIEnv names the environment variable pointing tests at a MongoDB deployment.
const MongoDBURIEnv = "TEST_MONGODB_URI"

var (
	mongoOnce   sync.Once
	mongoClient *mongo.Client
	mongoErr    error
)

// backingMongoDBClient dials once per test binary; the outcome, good or bad, is reused.
func backingMongoDBClient() (*mongo.Client, error) {
	mongoOnce.Do(func() {
		mongoClient, mongoErr = dialMongoDB(os.Getenv(MongoDBURIEnv))
	})
	return mongoClient, mongoErr
}

func dialMongoDB(uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errNoMongoDB
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", MongoDBURIEnv)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot ping %s", MongoDBURIEnv), client.Disconnect(ctx))
	}
	return client, nil
}

var errNoMongoDB = errors.New(MongoDBURIEnv + " is not set")

// BackingMongoDBClient returns a shared client for the deployment named by TEST_MONGODB_URI.
// The test is skipped when the variable is unset and fails when the deployment is unreachable.
func BackingMongoDBClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, err := backingMongoDBClient()
	if err != nil {
		if errors.Is(err, errNoMongoDB) {
			t.Skip(err.Error())
			return nil
		}
		t.Fatal(err)
	}
	return client
}

// NewMongoDBNamespace returns a random database and collection name. The database is dropped
// when the test finishes.
func NewMongoDBNamespace(t *testing.T, client *mongo.Client) (string, string) {
	t.Helper()
	dbName := "test_" + strings.ToLower(utils.RandomAlphaString(8))
	collName := strings.ToLower(utils.RandomAlphaString(5))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Database(dbName).Drop(ctx); err != nil {
			t.Logf("error dropping test database %q: %v", dbName, err)
		}
	})
	return dbName, collName
}
