package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/bolt"
	"github.com/gracechurch/tidings/postgres"
	"github.com/gracechurch/tidings/sqlite"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		dbType string
		want   tidings.Database
	}{
		{"", &bolt.DB{}},
		{"bolt", &bolt.DB{}},
		{"sqlite", &sqlite.DB{}},
		{"postgres", &postgres.DB{}},
	}

	for _, tt := range tests {
		config := new(tidings.Config)
		config.DB.Type = tt.dbType
		config.DB.Path = "tidings.db"
		config.DB.DSN = "postgres://localhost/tidings"

		db, ss, err := newStore(config)
		require.NoError(t, err)
		assert.IsType(t, tt.want, db)
		assert.NotNil(t, ss)
	}

	config := new(tidings.Config)
	config.DB.Type = "mysql"
	_, _, err := newStore(config)
	assert.Error(t, err)
}
