//go:build integration

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	storeSuite
	container *postgres.PostgresContainer
	dsn       string
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("postwatch"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	s.dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.open = func(su *suite.Suite) Store {
		store, err := OpenPostgres(context.Background(), s.dsn)
		su.Require().NoError(err)
		_, err = store.db.ExecContext(context.Background(), "DELETE FROM markers")
		su.Require().NoError(err)
		return store
	}
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresIntegrationSuite) TestReopenKeepsMarker() {
	s.Require().NoError(s.store.Put(s.ctx, "acct", "https://x.com/acct/status/7"))

	again, err := OpenPostgres(s.ctx, s.dsn)
	s.Require().NoError(err)
	defer again.Close()

	marker, found, err := again.Get(s.ctx, "acct")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("https://x.com/acct/status/7", marker)
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}
