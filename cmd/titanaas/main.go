/*******************************************************************************
* Copyright (C) 2026 the Eclipse BaSyx Authors and Fraunhofer IESE
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

// Package main implements the Titan-AAS server: AAS repository, registry,
// discovery and AASX file server plus the event-driven bridges (WebSocket,
// MQTT, federation, jobs, fieldbus).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/eclipse-basyx/titan-aas/internal/aasx"
	"github.com/eclipse-basyx/titan-aas/internal/api"
	"github.com/eclipse-basyx/titan-aas/internal/cache"
	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/eclipse-basyx/titan-aas/internal/federation"
	"github.com/eclipse-basyx/titan-aas/internal/fieldbus"
	"github.com/eclipse-basyx/titan-aas/internal/jobs"
	"github.com/eclipse-basyx/titan-aas/internal/mqttbridge"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
	"github.com/eclipse-basyx/titan-aas/internal/ws"
)

func runServer(ctx context.Context, configPath, schemaPath string) error {
	common.PrintSplash()
	log.Default().Println("Loading Titan-AAS...")
	log.Default().Println("Config Path:", configPath)

	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	common.PrintConfiguration(cfg)

	// === Database ===
	log.Printf("🗄️  Connecting to Postgres with DSN: postgres://%s:****@%s:%d/%s?sslmode=disable",
		cfg.Postgres.User, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName)
	db, err := common.InitializeDatabase(cfg.Postgres.DSN(), schemaPath)
	if err != nil {
		log.Printf("❌ DB connect failed: %v", err)
		return err
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConnections)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)
	log.Println("✅ Postgres connection established")

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis connect failed: %v", err)
		return err
	}
	log.Println("✅ Redis connection established")

	// === Event bus ===
	var bus events.EventBus
	switch cfg.Events.Bus {
	case "redisStreams":
		consumerID := cfg.Events.ConsumerID
		if consumerID == "" {
			consumerID = uuid.NewString()
		}
		bus = events.NewRedisStreamBus(rdb, cfg.Events.ConsumerGroup, consumerID)
		log.Printf("📨 Event bus: redisStreams (group=%s consumer=%s)", cfg.Events.ConsumerGroup, consumerID)
	default:
		bus = events.NewMemoryBus(0)
		log.Println("📨 Event bus: memory")
	}
	defer bus.Stop()

	// === Repositories and write path ===
	shells := repository.NewShellRepository(db)
	submodels := repository.NewSubmodelRepository(db)
	concepts := repository.NewConceptDescriptionRepository(db)
	links := repository.NewAssetLinkRepository(db)
	blobAssets := repository.NewBlobAssetRepository(db)
	packages := repository.NewPackageRepository(db)

	docCache := cache.New(rdb,
		time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.ElemTTLSeconds)*time.Second)

	svc := api.NewService(shells, submodels, concepts, links, blobAssets, docCache, bus, cfg.Server.ExternalURL)

	// === AASX package service ===
	var blobs aasx.BlobStore
	switch cfg.AASX.BlobBackend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AASX.S3Region))
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		blobs = aasx.NewS3BlobStore(s3.NewFromConfig(awsCfg), cfg.AASX.S3Bucket)
		log.Printf("🪣 Package blobs on S3 bucket %q", cfg.AASX.S3Bucket)
	default:
		local, err := aasx.NewLocalBlobStore(cfg.AASX.LocalDir)
		if err != nil {
			return fmt.Errorf("open local blob dir: %w", err)
		}
		blobs = local
		log.Printf("🪣 Package blobs under %q", cfg.AASX.LocalDir)
	}
	pkgSvc := aasx.NewPackageService(shells, submodels, concepts, packages, blobs, bus)

	// === WebSocket fan-out ===
	wsm := ws.NewSubscriptionManager(0)
	bus.Subscribe(wsm.HandleEvent)

	// === Jobs ===
	queue := jobs.NewQueue(rdb,
		time.Duration(cfg.Jobs.JobTTLSeconds)*time.Second,
		time.Duration(cfg.Jobs.ResultTTLSeconds)*time.Second)
	worker := jobs.NewWorker(queue, time.Duration(cfg.Jobs.ClaimTimeoutMs)*time.Millisecond)
	worker.Handle("package.rollback", func(ctx context.Context, job jobs.Job) (json.RawMessage, error) {
		var req struct {
			PackageID string `json:"packageId"`
		}
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return nil, fmt.Errorf("rollback payload does not parse: %w", err)
		}
		rec, err := pkgSvc.Rollback(ctx, req.PackageID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rec)
	})
	worker.Start()
	defer worker.Stop()
	log.Println("⚙️  Job worker started")

	// === MQTT bridge ===
	var publisher *mqttbridge.Publisher
	var dispatcher *mqttbridge.Dispatcher
	if cfg.MQTT.Enabled {
		scheme := "tcp"
		if cfg.MQTT.UseTLS {
			scheme = "ssl"
		}
		brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTT.Broker, cfg.MQTT.Port)
		opts := mqtt.NewClientOptions().
			AddBroker(brokerURL).
			SetClientID(cfg.MQTT.ClientIDPrefix + "-" + uuid.NewString()).
			SetUsername(cfg.MQTT.Username).
			SetPassword(cfg.MQTT.Password).
			SetAutoReconnect(false) // the publisher owns reconnects
		opts.SetOnConnectHandler(func(mqtt.Client) {
			// Re-subscribe on every (re)connect; paho drops subscriptions
			// with clean sessions.
			if dispatcher == nil {
				return
			}
			if err := dispatcher.Subscribe(); err != nil {
				log.Printf("❌ MQTT subscribe failed: %v", err)
			}
		})
		client := mqtt.NewClient(opts)

		if cfg.MQTT.SubscribeEnabled {
			dispatcher = mqttbridge.NewDispatcher(client, byte(cfg.MQTT.DefaultQoS))
			for _, topic := range cfg.MQTT.SubscribeTopics {
				dispatcher.Handle(topic, mqttbridge.ElementValueHandler(svc))
			}
		}

		policy := mqttbridge.ReconnectPolicy{
			Initial:     time.Duration(cfg.MQTT.Reconnect.InitialMs) * time.Millisecond,
			Max:         time.Duration(cfg.MQTT.Reconnect.MaxMs) * time.Millisecond,
			Multiplier:  cfg.MQTT.Reconnect.Multiplier,
			MaxAttempts: cfg.MQTT.Reconnect.MaxAttempts,
		}
		publisher = mqttbridge.NewPublisher(client, policy, mqttbridge.NewQoSRegistry(byte(cfg.MQTT.DefaultQoS), cfg.MQTT.RetainEvents))
		bus.Subscribe(publisher.HandleEvent)
		publisher.Start()
		defer publisher.Stop()
		log.Printf("📡 MQTT bridge connecting to %s", brokerURL)
	}

	// === Federation ===
	var peerRegistry *federation.PeerRegistry
	var syncMgr *federation.Manager
	var conflicts *federation.ConflictManager
	if cfg.Federation.Enabled {
		httpc := &http.Client{Timeout: 30 * time.Second}
		peerRegistry = federation.NewPeerRegistry(httpc)
		changeQueue := federation.NewChangeQueue(0)
		bus.Subscribe(changeQueue.HandleEvent)
		conflicts = federation.NewConflictManager(svc, bus)
		syncMgr = federation.NewManager(federation.Config{
			Mode:             cfg.Federation.Mode,
			Topology:         cfg.Federation.Topology,
			HubPeerID:        cfg.Federation.HubPeerID,
			DeltaSyncEnabled: cfg.Federation.DeltaSyncEnabled,
			Interval:         time.Duration(cfg.Federation.SyncIntervalSeconds) * time.Second,
		}, peerRegistry, changeQueue, svc, conflicts, bus, httpc)
		fedState := federation.NewPostgresStateStore(db)
		if err := peerRegistry.AttachState(ctx, fedState); err != nil {
			return fmt.Errorf("restore federation peers: %w", err)
		}
		if err := conflicts.AttachState(ctx, fedState); err != nil {
			return fmt.Errorf("restore federation conflicts: %w", err)
		}
		syncMgr.AttachState(fedState)
		syncMgr.Start()
		defer syncMgr.Stop()
		log.Printf("🔄 Federation sync every %ds (%s/%s)",
			cfg.Federation.SyncIntervalSeconds, cfg.Federation.Mode, cfg.Federation.Topology)
	}

	// === Fieldbus ===
	if cfg.Fieldbus.Enabled {
		poller := fieldbus.NewPoller(fieldbus.NewSimClient(), svc, cfg.Fieldbus.Mappings)
		bus.Subscribe(poller.HandleEvent)
		poller.Start()
		defer poller.Stop()
		log.Printf("🔌 Fieldbus poller started with %d mappings", len(cfg.Fieldbus.Mappings))
	}

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	// === Router ===
	r := chi.NewRouter()
	common.AddCors(r, cfg)
	base := common.NormalizeBasePath(cfg.Server.ContextPath)
	r.Mount(base, api.NewRouter(api.Deps{
		Service:   svc,
		Packages:  pkgSvc,
		Peers:     peerRegistry,
		Sync:      syncMgr,
		Conflicts: conflicts,
		Jobs:      queue,
		WS:        wsm,
	}))

	// === Start Server ===
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	log.Printf("▶️ Titan-AAS listening on %s (contextPath=%q)\n", addr, cfg.Server.ContextPath)

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := ""
	schemaPath := ""
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&schemaPath, "schema", "schema/titan_schema.sql", "Path to SQL schema file (empty skips schema loading)")
	flag.Parse()
	if err := runServer(ctx, configPath, schemaPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
