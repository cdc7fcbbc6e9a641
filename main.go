package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/comandaclub/comanda/internal/billing"
	"github.com/comandaclub/comanda/internal/inventory"
	"github.com/comandaclub/comanda/internal/kitchen"
	"github.com/comandaclub/comanda/internal/mongo"
	"github.com/comandaclub/comanda/internal/order"
	"github.com/comandaclub/comanda/internal/tables"
	"github.com/comandaclub/comanda/pkg"
	"github.com/comandaclub/comanda/pkg/event"

	"github.com/shopspring/decimal"
)

const (
	appNamespace = "COMANDA"
	appName      = "comanda"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	baseRepo := mongo.NewBaseRepo(config, logger)
	if err := baseRepo.Start(ctx); err != nil {
		log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
	}

	db := baseRepo.GetDatabase()
	if db == nil {
		log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
	}

	tableRepo := mongo.NewTableRepo(db)
	batchRepo := mongo.NewBatchRepo(db)
	reservationRepo := mongo.NewReservationRepo(db)
	entryRepo := mongo.NewEntryRepo(db)
	orderRepo := mongo.NewOrderRepo(db)
	orderItemRepo := mongo.NewOrderItemRepo(db)
	billRepo := mongo.NewBillRepo(db)

	indexed := []interface {
		Start(ctx context.Context) error
	}{tableRepo, batchRepo, reservationRepo, entryRepo, orderRepo, orderItemRepo, billRepo}
	for _, repo := range indexed {
		if err := repo.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot create indexes: %v", appName, appVersion, err)
		}
	}

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	sub, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	// Durable stream for the kitchen board: the cache replays it on startup
	// and follows it live afterwards.
	entryStream, err := pkg.NewNATSStream(pkg.NATSStreamConfig{
		URL:          natsURL,
		StreamName:   "KITCHEN_ENTRIES",
		Topic:        event.KitchenEntriesTopic,
		ConsumerName: "comanda-board",
		MaxAge:       24 * time.Hour,
	})
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS stream: %v", appName, appVersion, err)
	}

	registry := tables.NewRegistry(tableRepo, pub, logger)

	ledger := inventory.NewLedger(batchRepo, reservationRepo, pub, logger)
	if thresholdStr := config.GetStringOrDef("inventory.low_stock_threshold", ""); thresholdStr != "" {
		threshold, err := decimal.NewFromString(thresholdStr)
		if err != nil {
			log.Fatalf("%s(%s) invalid inventory.low_stock_threshold: %v", appName, appVersion, err)
		}
		ledger.SetLowStockThreshold(threshold)
	}

	queue := kitchen.NewQueue(entryRepo, nil, pub, logger)

	dishLookup, err := order.NewAPIDishLookup(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create menu service client: %v", appName, appVersion, err)
	}
	staffLookup, err := order.NewAPIStaffLookup(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create staff service client: %v", appName, appVersion, err)
	}

	workflow := order.NewWorkflow(order.Deps{
		Orders:    orderRepo,
		Items:     orderItemRepo,
		Tables:    registry,
		Ledger:    ledger,
		Queue:     queue,
		Dishes:    dishLookup,
		Staff:     staffLookup,
		Publisher: pub,
	}, logger)
	queue.SetAdvancer(workflow)

	finalizer, err := billing.NewFinalizer(billRepo, workflow, config, pub, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create bill finalizer: %v", appName, appVersion, err)
	}
	workflow.SetBillChecker(finalizer)

	// Kitchen entry events flow back into order items.
	entrySub := order.NewKitchenEntrySubscriber(sub, orderItemRepo, logger)

	boardCache := kitchen.NewBoardCache(entryStream, entryRepo, logger)

	tableHandler := tables.NewHandler(tableRepo, registry, config, logger)
	inventoryHandler := inventory.NewHandler(batchRepo, ledger, config, logger)
	kitchenHandler := kitchen.NewHandler(queue, config, logger)
	kitchenHandler.SetBoardCache(boardCache)
	orderHandler := order.NewHandler(workflow, config, logger)
	billingHandler := billing.NewHandler(finalizer, config, logger)

	boardLifecycle := apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := boardCache.Warm(ctx); err != nil {
				logger.Errorf("Board cache warm-up failed: %v", err)
			}
			return entryStream.SubscribeStream(ctx, func(ctx context.Context, msg []byte) error {
				boardCache.Apply(msg)
				return nil
			})
		},
		OnStop: func(context.Context) error {
			return entryStream.Close()
		},
	}

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	}

	subLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return sub.Close()
		},
	}

	demoEnabled, _ := config.GetString("seeding.demo")
	var seedHooks apt.LifecycleHooks
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled")
		seedHooks = apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error {
				if err := tables.DemoSeedingFunc(seedCtx, tableRepo, db, logger)(ctx); err != nil {
					return err
				}
				return inventory.DemoSeedingFunc(seedCtx, batchRepo, db, logger)(ctx)
			},
			OnStop: func(context.Context) error {
				cancelSeeds()
				return nil
			},
		}
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true, // Internal API service
	})
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{
		apt.LifecycleHooks{OnStop: baseRepo.Stop},
		entrySub,
		boardLifecycle,
		publisherLifecycle,
		subLifecycle,
	}
	if demoEnabled == "true" {
		lifecycles = append(lifecycles, seedHooks)
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port",
			tableHandler,
			inventoryHandler,
			kitchenHandler,
			orderHandler,
			billingHandler,
		),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		_ = baseRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
