// Package node assembles the bridge process: local bus, rosbridge client,
// bridge session, optional relay and optional HTTP surface.
package node

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Node is a long-running HTTP component served next to the bridge session.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
	Run(ctx context.Context) error
}
