package bolt

import (
	"time"

	"github.com/asdine/storm/v3"
	bbolt "go.etcd.io/bbolt"

	"github.com/gracechurch/tidings"
)

const openTimeout = 2 * time.Second

// DB represents a database
type DB struct {
	path    string
	stormDB *storm.DB
}

// NewDB returns new database
func NewDB(path string) *DB {
	return &DB{
		path: path,
	}
}

// Open opens new database connection and declares the indexes
func (db *DB) Open() error {
	stormDB, err := storm.Open(db.path, storm.BoltOptions(0600, &bbolt.Options{Timeout: openTimeout}))
	if err != nil {
		return err
	}
	db.stormDB = stormDB

	if err := db.stormDB.Init(&tidings.Subscriber{}); err != nil {
		return err
	}

	return db.stormDB.Init(&tidings.Membership{})
}

// Close closes database connection
func (db *DB) Close() error {
	if db.stormDB == nil {
		return nil
	}

	err := db.stormDB.Close()
	db.stormDB = nil
	return err
}
