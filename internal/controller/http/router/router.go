// Package router implements routing paths. Each services in own file.
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yunseong-dev/madang/internal/controller/http/resp"
	v1 "github.com/yunseong-dev/madang/internal/controller/http/v1"
	"github.com/yunseong-dev/madang/internal/controller/http/ws"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/version"
)

const (
	prefix = "/api/madang"
	wsPath = "/ws/madang"
)

// Router -.
type Router struct {
	rootHandler *gin.Engine
	v1WSGroup   *gin.RouterGroup
	v1Group     *gin.RouterGroup
}

// NewRouter -.
func NewRouter() *Router {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	root := g.Group(prefix)
	root.GET("/version", func(c *gin.Context) {
		resp.Success(c, http.StatusOK, version.GetCore())
	})

	v1Prefix := fmt.Sprintf("%s/v1", prefix)
	v1WSPrefix := fmt.Sprintf("%s/v1", wsPath)

	v1Group := g.Group(v1Prefix)
	v1WSGroup := g.Group(v1WSPrefix)
	v1WSGroup.GET("/health", func(c *gin.Context) {
		forwardChan := make(chan []byte)
		sock, wsErr := ws.New(c, forwardChan)
		if wsErr != nil {
			resp.Fail(c, http.StatusInternalServerError, wsErr)
			return
		}
		sock.ReadMessage()
	})

	return &Router{
		rootHandler: g,
		v1WSGroup:   v1WSGroup,
		v1Group:     v1Group,
	}
}

func (r *Router) AddV1SystemRoutes(feed usecases.Feed) *Router {
	v1.NewSystemRoutes(r.v1Group, feed)
	return r
}

func (r *Router) AddV1BasicRoutes(basic usecases.Basic) *Router {
	v1.NewBasicRoutes(r.v1Group, basic)
	return r
}

func (r *Router) AddV1MarketRoutes(market usecases.Market) *Router {
	v1.NewMarketRoutes(r.v1Group, market)
	return r
}

func (r *Router) AddV1StreamRoutes(stream usecases.Stream, feed usecases.Feed) *Router {
	v1.NewStreamRoutes(r.v1Group, r.v1WSGroup, stream, feed)
	return r
}

func (r *Router) GetHandler() *gin.Engine {
	return r.rootHandler
}
