// The demo wires the weaving engine to a real observability stack: spans and
// metrics go through the OpenTelemetry SDK to stdout, operational warnings go
// through the slog bridge, and the instrumented operations run against a
// Postgres-backed user store.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/otelweave/otel-instrument-go/example/demo/config"
	"github.com/otelweave/otel-instrument-go/example/demo/userstore"
	"github.com/otelweave/otel-instrument-go/instrument"
	"github.com/otelweave/otel-instrument-go/instrument/oteladapters"
)

func main() {
	config.Load()

	providers, err := config.NewObservabilityConfig()
	if err != nil {
		log.Fatal("Failed to set up observability providers: ", err)
	}
	defer func() {
		if shutdownErr := providers.Shutdown(); shutdownErr != nil {
			log.Print("Observability shutdown error: ", shutdownErr)
		}
	}()

	instrument.SetTracerName(config.ServiceName())

	ctx := context.Background()

	db, err := config.PostgresSQLXConfig(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Postgres: ", err)
	}
	defer func() { _ = db.Close() }()

	weaver, err := instrument.NewWeaver(
		instrument.WithTracing(oteladapters.NewGlobalTracingCollector()),
		instrument.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(config.ServiceName()))),
		instrument.WithContextualLogger(oteladapters.NewSlogBridgeLogger(config.ServiceName())),
		instrument.WithDurationAttribute(),
	)
	if err != nil {
		log.Fatal("Failed to build weaver: ", err)
	}

	store, err := userstore.NewUserStore(ctx, weaver, db)
	if err != nil {
		log.Fatal("Failed to build user store: ", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	user, err := store.CreateUser(ctx, "alice", "alice@example.com")
	if err != nil {
		log.Fatal("CreateUser failed: ", err)
	}
	logger.Info("created user", "id", user.ID, "username", user.Username)

	fetched, err := store.GetUser(ctx, user.ID)
	if err != nil {
		log.Fatal("GetUser failed: ", err)
	}
	logger.Info("fetched user", "id", fetched.ID, "email", fetched.Email)

	if err = store.DeleteUser(ctx, user.ID); err != nil {
		log.Fatal("DeleteUser failed: ", err)
	}
	logger.Info("deleted user", "id", user.ID)

	// A failing call, to show error recording on the span.
	_, err = store.GetUser(ctx, user.ID)
	if errors.Is(err, userstore.ErrUserNotFound) {
		logger.Info("lookup after delete failed as expected", "id", user.ID)
	}
}
