// Command bridge wires the arbitrator core to a stdio engine transport and
// serves the tool surface over HTTP, per spec §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redis/go-redis/v9"

	"github.com/GregorStocks/commander-bench-sub000/arbitrator"
	"github.com/GregorStocks/commander-bench-sub000/config"
	persistmongo "github.com/GregorStocks/commander-bench-sub000/persistence/mongo"
	persistredis "github.com/GregorStocks/commander-bench-sub000/persistence/redis"
	"github.com/GregorStocks/commander-bench-sub000/telemetry"
	"github.com/GregorStocks/commander-bench-sub000/toolserver"
	"github.com/GregorStocks/commander-bench-sub000/transport/stdioengine"
)

func main() {
	var (
		httpPortF = flag.String("http-port", "8080", "tool surface HTTP port")
		dbgF      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(ctx, err)
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	engineClient := stdioengine.New(ctx, os.Stdin, os.Stdout)

	mongoClient, err := connectMongo(ctx)
	if err != nil {
		log.Printf(ctx, "mongo persistence disabled: %v", err)
	}

	opts := []arbitrator.Option{arbitrator.WithTelemetry(logger, metrics, tracer)}
	if db, err := connectOracleDB(ctx); err != nil {
		log.Printf(ctx, "oracle text database disabled: %v", err)
	} else if db != nil {
		opts = append(opts, arbitrator.WithCardDatabase(db))
	}
	if mongoClient != nil {
		if types := loadDeckCreatureTypes(ctx, mongoClient, cfg); types != nil {
			opts = append(opts, arbitrator.WithDeckCreatureTypes(types))
		}
	}

	arb := arbitrator.New(cfg, engineClient, opts...)

	eventLog, err := connectEventLog(ctx, mongoClient)
	if err != nil {
		log.Printf(ctx, "bridge event log persistence disabled: %v", err)
	}
	logMirror := connectLogMirror(ctx, logger)

	go pumpCallbacks(ctx, arb, engineClient, eventLog, logMirror, logger)

	srv := toolserver.New(arb)
	httpSrv := &http.Server{Addr: ":" + *httpPortF, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Printf(ctx, "tool surface listening on :%s", *httpPortF)
		errc <- httpSrv.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		log.Printf(ctx, "tool surface server exited: %v", err)
	case sig := <-sigc:
		log.Printf(ctx, "received signal %v, shutting down", sig)
	}

	arb.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf(ctx, "tool surface shutdown error: %v", err)
	}
}

// pumpCallbacks feeds every callback the engine transport produces into the
// arbitrator, optionally mirroring it to the bridge event log and Redis log
// stream first.
func pumpCallbacks(ctx context.Context, arb *arbitrator.Arbitrator, client *stdioengine.Client, eventLog *persistmongo.EventLogStore, logMirror *persistredis.LogMirror, logger telemetry.Logger) {
	for cb := range client.Callbacks() {
		if eventLog != nil {
			_ = eventLog.Append(ctx, cb.GameID, persistmongo.EventEntry{
				Timestamp: time.Now(),
				Method:    string(cb.Kind),
				Data:      cb.Payload.LogLine,
			})
		}
		if logMirror != nil && cb.Payload.LogLine != "" {
			_ = logMirror.Append(ctx, cb.GameID, time.Now().UnixNano(), cb.Payload.LogLine)
		}
		if err := arb.HandleCallback(ctx, cb); err != nil {
			logger.Error(ctx, "failed to handle callback", "kind", string(cb.Kind), "error", err.Error())
		}
	}
}

// connectMongo dials the shared Mongo client used by the event log and deck
// cache, controlled by MONGO_URI. Absent MONGO_URI, both are disabled.
func connectMongo(ctx context.Context) (*mongodriver.Client, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return nil, nil
	}
	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

// connectEventLog wires the bridge event log's optional Mongo persistence.
// Absent a client, persistence is disabled and the in-process log buffer is
// the sole record.
func connectEventLog(ctx context.Context, client *mongodriver.Client) (*persistmongo.EventLogStore, error) {
	if client == nil {
		return nil, nil
	}
	return persistmongo.NewEventLogStore(ctx, persistmongo.EventLogStoreOptions{
		Client:   client,
		Database: envOr("MONGO_DATABASE", "commander_bridge"),
	})
}

// loadDeckCreatureTypes looks up a previously cached creature-type set for
// cfg's decklist. This module ships no card-oracle source capable of
// computing that set (connectOracleDB is a stub), so this only ever reads an
// entry another process already populated via persistmongo.DeckStore.Store;
// it never computes or stores one itself.
func loadDeckCreatureTypes(ctx context.Context, client *mongodriver.Client, cfg config.Config) map[string]bool {
	store, err := persistmongo.NewDeckStore(persistmongo.DeckStoreOptions{
		Client:   client,
		Database: envOr("MONGO_DATABASE", "commander_bridge"),
	})
	if err != nil {
		return nil
	}
	key := persistmongo.DeckKey(cfg.PlayerName, cfg.DeckList)
	types, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		return nil
	}
	out := make(map[string]bool, len(types))
	for _, t := range types {
		out[t] = true
	}
	return out
}

// connectLogMirror wires the optional Redis game-log mirror, controlled by
// REDIS_ADDR. Absent REDIS_ADDR, mirroring is disabled.
func connectLogMirror(ctx context.Context, logger telemetry.Logger) *persistredis.LogMirror {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(ctx, "redis log mirror disabled", "error", err.Error())
		return nil
	}
	return persistredis.NewLogMirror(client, "")
}

// connectOracleDB wires an optional card-oracle-text collaborator. No
// concrete implementation ships in this module; returning nil disables
// get_oracle_text's name-based lookup (object-id resolution through the
// live game view still works).
func connectOracleDB(ctx context.Context) (arbitrator.CardDatabase, error) {
	return nil, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
