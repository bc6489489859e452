package bolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/storetest"
)

func TestSubscriptionService(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tidings.SubscriptionService {
		db := NewDB(filepath.Join(t.TempDir(), "tidings.bolt"))
		require.NoError(t, db.Open())
		t.Cleanup(func() {
			_ = db.Close()
		})
		return NewSubscriptionService(db)
	})
}
