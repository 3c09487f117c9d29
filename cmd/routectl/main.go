package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"noy/seadb/pkg/seadb/config"
	"noy/seadb/pkg/seadb/logger"
	"noy/seadb/pkg/seadb/metrics"
	"noy/seadb/pkg/seadb/route"
	"noy/seadb/pkg/seadb/store"
)

var (
	configPath  = flag.String("configPath", "config.yaml", "config file path")
	database    = flag.String("database", "", "database name, empty to use the configured default")
	tables      = flag.String("tables", "", "comma separated table names")
	evict       = flag.Bool("evict", false, "evict the given tables instead of resolving them")
	metricsPort = flag.Int("metricsPort", 0, "metrics port, 0 to disable")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger.ReplaceDefault(logger.NewWithLogFile(logger.InfoLevel, ".logs/routectl.log"))
	defer func() {
		err := logger.Sync()
		if err != nil {
			fmt.Printf("sync logger error: %v", err)
		}
	}()

	if *metricsPort > 0 {
		go metrics.Init(*metricsPort, false)
	}

	var fetcher route.Fetcher
	switch {
	case cfg.Etcd != nil:
		fetcher, err = store.NewEtcdFetcher(cfg.Etcd)
	case cfg.Redis != nil:
		fetcher, err = store.NewRedisFetcher(cfg.Redis)
	default:
		logger.Fatalf("no route store configured")
	}
	if err != nil {
		panic(err)
	}

	defaultEndpoint, err := route.ParseEndpoint(cfg.Client.DefaultEndpoint)
	if err != nil {
		panic(err)
	}
	router := route.NewRouter(defaultEndpoint, fetcher)

	names := strings.Split(*tables, ",")
	if len(names) == 1 && names[0] == "" {
		logger.Fatalf("no tables given")
	}

	if *evict {
		router.Evict(names)
		fmt.Printf("evicted %d tables\n", len(names))
		return
	}

	db := *database
	if db == "" {
		db = cfg.Client.DefaultDatabase
	}

	endpoints, err := router.Route(context.Background(), names, &route.RouteContext{
		Database: db,
		Timeout:  cfg.Client.FetchTimeout,
	})
	if err != nil {
		logger.Fatalf("route failed: %v", err)
	}

	for i, name := range names {
		fmt.Printf("%s -> %s\n", name, endpoints[i])
	}
}
