// Package main runs the game backend HTTP server.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cerke-online/backend/internal/app/server"
	"github.com/cerke-online/backend/internal/game/bot"
	"github.com/cerke-online/backend/internal/game/match"
	"github.com/cerke-online/backend/internal/game/registry"
	"github.com/cerke-online/backend/internal/game/rules/openrules"
	"github.com/cerke-online/backend/internal/platform/config"
	"github.com/cerke-online/backend/internal/platform/logger"
	"github.com/cerke-online/backend/internal/platform/random"
	"github.com/cerke-online/backend/internal/transport/rest"
)

var port = flag.String("port", "", "overrides the PORT environment variable")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load configuration", "error", err)
	}
	if *port != "" {
		cfg.Port = *port
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New()
	engine := openrules.New(openrules.DefaultConfig())
	randomPool := match.New(reg, engine, rand.New(rand.NewSource(random.MustSeed())), random.MustSeed)
	stagingPool := match.New(reg, engine, rand.New(rand.NewSource(random.MustSeed())), random.MustSeed)
	b := bot.New(rand.New(rand.NewSource(random.MustSeed())))

	handler := rest.NewHandler(logger.Get(), reg, randomPool, stagingPool, b)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), cors(cfg.Origin))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(router)

	if err := server.Run(ctx, cfg.Addr(), router, cfg.ShutdownTimeout); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
	logger.Info("server stopped")
}

// cors allows browser clients from the configured origin.
func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
