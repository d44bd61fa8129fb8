package madang

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chindada/leopard/pkg/httpserver"
	"github.com/chindada/leopard/pkg/log"
	"github.com/yunseong-dev/madang/internal/config"
	"github.com/yunseong-dev/madang/internal/controller/http/router"
	"github.com/yunseong-dev/madang/internal/usecases"
)

func Start() {
	// Waiting signal
	exit := make(chan os.Signal, 1)

	logger := log.Get()
	cfg := config.Get()

	// Pre process, do not adjust the order, except for new feature
	ucStream := usecases.NewStream()
	ucBasic := usecases.NewBasic()
	ucMarket := usecases.NewMarket()
	ucFeed := usecases.NewFeed()
	if err := ucFeed.Start(); err != nil {
		logger.Fatalf("Feed start error: %s", err)
	}

	// HTTP Handler
	r := router.NewRouter().
		AddV1SystemRoutes(ucFeed).
		AddV1BasicRoutes(ucBasic).
		AddV1MarketRoutes(ucMarket).
		AddV1StreamRoutes(ucStream, ucFeed)

	// Start HTTP Server
	if e := httpserver.New(
		r.GetHandler(),
		httpserver.Port(cfg.Server.SRVPort),
		httpserver.AddLogger(logger),
	).Start(); e != nil {
		logger.Fatalf("API Server error: %s", e)
	}

	defer func() {
		ucFeed.Stop()
		ucBasic.Stop()
		cfg.CloseDB()
		logger.Info("Shut down")
	}()

	signal.Notify(exit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-exit
}
