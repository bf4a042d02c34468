package database

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

var mongoURI string

func mustStartMongoContainer() (func(context.Context) error, error) {
	dbContainer, err := mongodb.Run(context.Background(), "mongo:7")
	if err != nil {
		return nil, err
	}

	uri, err := dbContainer.ConnectionString(context.Background())
	if err != nil {
		return func(ctx context.Context) error { return dbContainer.Terminate(ctx) }, err
	}
	mongoURI = uri

	return func(ctx context.Context) error { return dbContainer.Terminate(ctx) }, nil
}

func TestMain(m *testing.M) {
	flag.Parse()

	var teardown func(context.Context) error
	if !testing.Short() {
		var err error
		teardown, err = mustStartMongoContainer()
		if err != nil {
			log.Warn().Err(err).Msg("Could not start mongodb container, integration tests will be skipped")
		}
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Could not teardown mongodb container")
		}
	}
	os.Exit(code)
}

func requireMongo(t *testing.T) {
	t.Helper()
	if mongoURI == "" {
		t.Skip("mongodb container is not available")
	}
}

func TestNew(t *testing.T) {
	requireMongo(t)

	srv, err := New(mongoURI, "bkmrks_test")
	require.NoError(t, err)
	defer srv.Close()

	assert.Equal(t, "bkmrks_test", srv.Database().Name())
}

func TestNewWithoutURI(t *testing.T) {
	_, err := New("", "bkmrks_test")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	requireMongo(t)

	srv, err := New(mongoURI, "bkmrks_test")
	require.NoError(t, err)
	defer srv.Close()

	stats := srv.Health()
	assert.Equal(t, "It's healthy", stats["message"])
}

func TestEnsureIndexes(t *testing.T) {
	requireMongo(t)

	srv, err := New(mongoURI, "bkmrks_test")
	require.NoError(t, err)
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, srv.EnsureIndexes(ctx))
	// idempotent
	require.NoError(t, srv.EnsureIndexes(ctx))
}
