package main

import (
	"github.com/chindada/leopard/pkg/log"
	"github.com/yunseong-dev/madang/internal/app/madang"
	"github.com/yunseong-dev/madang/internal/config"
)

func main() {
	// Init log
	log.Init()

	// Init config
	config.Init()

	// Start app
	madang.Start()
}
