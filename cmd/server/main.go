/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacobtread/local-aws-secret-manager/pkg/api/handlers"
	"github.com/jacobtread/local-aws-secret-manager/pkg/api/middleware"
	"github.com/jacobtread/local-aws-secret-manager/pkg/config"
	"github.com/jacobtread/local-aws-secret-manager/pkg/logger"
	"github.com/jacobtread/local-aws-secret-manager/pkg/metrics"
	"github.com/jacobtread/local-aws-secret-manager/pkg/reaper"
	"github.com/jacobtread/local-aws-secret-manager/pkg/service"
	"github.com/jacobtread/local-aws-secret-manager/pkg/sigv4"
	"github.com/jacobtread/local-aws-secret-manager/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to optional TOML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("address", cfg.Server.Address),
		zap.String("database_path", cfg.DatabasePath),
		zap.Bool("use_https", cfg.Server.UseHTTPS),
		zap.Bool("reaper_enabled", cfg.Reaper.Enabled),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)

	store, err := storage.Open(cfg.DatabasePath, cfg.EncryptionKey, log)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	svc := service.New(store, log)

	verifier := sigv4.NewVerifier(sigv4.Credential{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.AccessKeySecret,
	}, nil)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Correlation IDs must be first so every later middleware logs with one
	router.Use(middleware.CorrelationIDMiddleware(log))
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware())
	router.Use(gin.Recovery())

	// Development mode CORS access for local browser testing
	if cfg.Server.DevCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowHeaders = []string{"*"}
		router.Use(cors.New(corsConfig))
	}

	// Signature verification runs before dispatch; no state is touched for
	// unauthenticated requests
	router.Use(middleware.SigV4Middleware(verifier, log))

	dispatcher := handlers.NewDispatcher(svc, log)
	dispatcher.RegisterRoutes(router)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, log)
		if err := metricsServer.Start(); err != nil {
			log.Error("failed to start metrics server", zap.Error(err))
			os.Exit(1)
		}
	}

	var purger *reaper.Reaper
	if cfg.Reaper.Enabled {
		purger = reaper.New(store, cfg.Reaper.Interval, log, nil)
		purger.Start()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.UseHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.CertificatePath, cfg.Server.PrivateKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	case <-quit:
	}

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	if purger != nil {
		purger.Stop()
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			log.Error("metrics server forced to shutdown", zap.Error(err))
		}
	}

	log.Info("server stopped")
}
