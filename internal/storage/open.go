package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"walknav/backend/internal/repository"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverBadger = "badger"
	DriverFile   = "file"
	DriverMemory = "memory"
)

type Options struct {
	Driver        string
	DB            *sql.DB
	RedisAddr     string
	RedisPassword string
	BadgerDir     string
	FileDir       string
}

// Open builds the KV named by opts.Driver. The returned close func releases
// whatever the driver opened and is never nil.
func Open(opts Options) (KV, func() error, error) {
	noop := func() error { return nil }

	switch opts.Driver {
	case "", DriverSQLite:
		if opts.DB == nil {
			return nil, noop, errors.New("sqlite kv requires a database handle")
		}
		return repository.NewKVRepository(opts.DB), noop, nil
	case DriverRedis:
		client := ConnectRedis(opts.RedisAddr, opts.RedisPassword)
		if client == nil {
			return nil, noop, errors.New("redis kv requires REDIS_ADDR")
		}
		return NewRedis(client), client.Close, nil
	case DriverBadger:
		db, err := OpenBadger(opts.BadgerDir)
		if err != nil {
			return nil, noop, err
		}
		return NewBadger(db), db.Close, nil
	case DriverFile:
		store, err := NewFile(opts.FileDir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case DriverMemory:
		return NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
