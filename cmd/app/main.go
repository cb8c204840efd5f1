package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/matrix-org/policyrelay/config"
	"github.com/matrix-org/policyrelay/logging" // import this for side effects if this isn't needed directly anymore
	"github.com/matrix-org/policyrelay/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var err error
	var db storage.PersistentStorage // stays nil when persistence is disabled

	// A .env file is optional; real environment variables win over it.
	if err = godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	instanceConfig, err := config.NewInstanceConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Start pprof early if configured so startup can be debugged (if needed)
	if instanceConfig.PprofBind != "" {
		go func() {
			// pprof binds itself to the default HTTP server, so we just have to start that server.
			log.Println("Starting pprof server on", instanceConfig.PprofBind)
			log.Fatal(http.ListenAndServe(instanceConfig.PprofBind, nil))
		}()
	}

	if instanceConfig.Database != "" {
		if db, err = setupDataHandlers(instanceConfig); err != nil {
			log.Fatal(err)
		}
		defer db.Close()
	} else {
		log.Println("PR_DATABASE is not set: audit records will not be persisted")
	}

	catalog, err := setupCatalog(instanceConfig)
	if err != nil {
		log.Fatal(err)
	}

	pipeline, err := setupPipeline(instanceConfig, catalog)
	if err != nil {
		log.Fatal(err)
	}

	auditQueue, err := setupAuditQueue(instanceConfig, db)
	if err != nil {
		log.Fatal(err)
	}

	sessions, err := setupSessions(instanceConfig)
	if err != nil {
		log.Fatal(err)
	}

	pool, err := setupQueue(instanceConfig, pipeline, sessions, auditQueue)
	if err != nil {
		log.Fatal(err)
	}

	api, err := setupApi(instanceConfig, pool, sessions, catalog, db)
	if err != nil {
		log.Fatal(err) // "should never happen"
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	appMux := http.NewServeMux()
	if err = api.BindTo(appMux); err != nil {
		log.Fatal(err)
	}

	metricsServer := &http.Server{Addr: instanceConfig.MetricsBind, Handler: metricsMux}
	appServer := &http.Server{Addr: instanceConfig.HttpBind, Handler: appMux}

	var wg sync.WaitGroup
	stopping := false
	startServer := func(server *http.Server) {
		log.Println("Listening on", server.Addr)
		err := server.ListenAndServe()
		if err != nil && (!stopping && !errors.Is(err, http.ErrServerClosed)) {
			log.Fatal(err)
		}
	}
	stopServer := func(server *http.Server, ctx context.Context) {
		defer wg.Done()
		err := server.Shutdown(ctx)
		if err != nil {
			log.Printf("Failed to stop server on %s: %v", server.Addr, err)
		}
	}
	go startServer(metricsServer)
	go startServer(appServer)

	// Schedule tasks now that we're mostly started up
	scheduler, err := gocron.NewScheduler(gocron.WithLogger(&logging.CronLogger{}))
	if err != nil {
		log.Fatal(err)
	}
	scheduler.Start() // start immediately so we can force jobs to run immediately too
	err = setupScheduler(scheduler, db, instanceConfig)
	if err != nil {
		log.Fatal(err)
	}

	// Wait for a stop signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer close(stop)
	<-stop
	stopping = true

	log.Println("Stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	if err = scheduler.Shutdown(); err != nil {
		log.Printf("Failed to stop scheduler: %v", err)
	}
	wg.Add(2) // 1 for each server
	go stopServer(metricsServer, ctx)
	go stopServer(appServer, ctx)
	wg.Wait()

	// Let in-flight runs finish, then flush their audit records
	if err = pool.Close(5 * time.Second); err != nil {
		log.Printf("Failed to stop run queue: %v", err)
	}
	if err = auditQueue.Close(5 * time.Second); err != nil {
		log.Printf("Failed to stop audit queue: %v", err)
	}
}
