// Package testutil starts disposable backing services for integration tests.
package testutil

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"tasktracker/internal/config"
	"tasktracker/internal/repository"
)

const maxWait = 2 * time.Minute

func newPool() (*dockertest.Pool, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("docker pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	pool.MaxWait = maxWait
	return pool, nil
}

func run(pool *dockertest.Pool, opts *dockertest.RunOptions) (*dockertest.Resource, error) {
	return pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
}

// StartPostgres runs PostgreSQL in a container, applies the schema and
// returns the pool plus a function that removes the container.
func StartPostgres() (*sql.DB, func(), error) {
	pool, err := newPool()
	if err != nil {
		return nil, nil, err
	}

	resource, err := run(pool, &dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=tasktracker",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=tasktracker_test",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres: %w", err)
	}
	_ = resource.Expire(uint(maxWait.Seconds()) * 5)
	purge := func() { _ = pool.Purge(resource) }

	dsn := fmt.Sprintf("postgres://tasktracker:secret@%s/tasktracker_test?sslmode=disable",
		resource.GetHostPort("5432/tcp"))

	var db *sql.DB
	err = pool.Retry(func() error {
		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		return db.PingContext(config.Ctx)
	})
	if err != nil {
		purge()
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := repository.CreateTableIfNotExists(db); err != nil {
		db.Close()
		purge()
		return nil, nil, err
	}
	return db, func() { db.Close(); purge() }, nil
}

// StartRedis runs Redis in a container.
func StartRedis() (*redis.Client, func(), error) {
	pool, err := newPool()
	if err != nil {
		return nil, nil, err
	}

	resource, err := run(pool, &dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"})
	if err != nil {
		return nil, nil, fmt.Errorf("start redis: %w", err)
	}
	_ = resource.Expire(uint(maxWait.Seconds()) * 5)
	purge := func() { _ = pool.Purge(resource) }

	client := redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
	if err := pool.Retry(func() error { return client.Ping(config.Ctx).Err() }); err != nil {
		purge()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, func() { client.Close(); purge() }, nil
}
