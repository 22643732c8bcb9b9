// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command swite starts the development module server.
//
// # Environment Variables
//
//   - SWITE_PORT: preferred HTTP port (default: 3000; a busy port falls
//     back to an OS-assigned one)
//   - SWITE_APP_ROOT: application directory (default: working directory)
//   - SWITE_WORKSPACE_ROOT: pin the workspace root instead of walking up
//   - SWITE_LOG_LEVEL: debug|info|warn|error (default: info)
//   - SWITE_CACHE_CAPACITY: compilation cache entries (default: 1000)
//   - SWITE_DEBOUNCE_MS: watcher debounce window (default: 100)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: enable OpenTelemetry trace export
//
// # Usage
//
//	swite            # serve the app in the working directory
//	swite genmap     # pre-resolve the import map and exit
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/swissjs/swite/pkg/logging"
	"github.com/swissjs/swite/services/devserver"
	"github.com/swissjs/swite/services/devserver/config"
)

func initTracer(ctx context.Context, endpoint string) (func(context.Context), error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("swite-devserver")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "devserver",
	})
	if err != nil {
		log.Fatalf("FATAL: could not initialize logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	ctx := context.Background()
	if cfg.OTLPEndpoint != "" {
		cleanup, err := initTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled, OTLP setup failed", "endpoint", cfg.OTLPEndpoint, "error", err)
		} else {
			defer cleanup(ctx)
		}
	}

	server, err := devserver.New(cfg, devserver.Options{Logger: logger.Logger})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "genmap" {
		doc, err := server.GenerateImportMap()
		if err != nil {
			log.Fatalf("FATAL: import map generation failed: %v", err)
		}
		fmt.Printf("wrote %s (%d entries)\n", cfg.ImportMapPath(), len(doc.Imports))
		return
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ready := make(chan int, 1)
	go func() {
		port := <-ready
		fmt.Printf("swite dev server ready on http://localhost:%d/\n", port)
	}()
	if err := server.Run(runCtx, ready); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}
