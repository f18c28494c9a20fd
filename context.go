package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/transport"
)

// WithoutRefresh marks ctx so a 401 on requests made with it is returned
// directly instead of triggering a refresh and replay.
func WithoutRefresh(ctx context.Context) context.Context {
	return transport.WithoutRefresh(ctx)
}
