package main

import (
	"github.com/signalnest/magpie/internal/server"
	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.New(console.Params{
		Debug:  debug,
		Prefix: "api",
	})
	logger.Init(consoleLogger)

	server.Init()
}
