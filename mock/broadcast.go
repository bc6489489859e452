package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gracechurch/tidings"
)

type BroadcastService struct {
	mock.Mock
}

func (m *BroadcastService) Broadcast(ctx context.Context, admin *tidings.Admin, req *tidings.BroadcastRequest) (*tidings.BroadcastResult, error) {
	args := m.Called(ctx, admin, req)
	res, _ := args.Get(0).(*tidings.BroadcastResult)
	return res, args.Error(1)
}
