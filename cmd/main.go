package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teapot/internal/config"
	"teapot/internal/database"
	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/menu"
	"teapot/internal/messaging"
	"teapot/internal/services/feed"
	"teapot/internal/services/notification"
	"teapot/internal/services/order"
	"teapot/internal/services/storefront"
	"teapot/internal/storage"
)

var (
	configPath string
	port       int
	prefetch   int
)

var rootCmd = &cobra.Command{
	Use:           "teapot",
	Short:         "Café storefront: menu, cart, checkout and staff order feed",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var storefrontCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Serve the storefront JSON API and poll the staff order feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "storefront", runStorefront)
	},
}

var notificationCmd = &cobra.Command{
	Use:   "notification-subscriber",
	Short: "Print placed orders from the broker and forward them to the staff chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "notification-subscriber", runNotificationSubscriber)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL migrations for the shared store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "migrate", runMigrate)
	},
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Print the menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		printMenu(cmd.OutOrStdout(), menu.Default())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (empty for defaults and env only)")
	storefrontCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	notificationCmd.Flags().IntVar(&prefetch, "prefetch", 1, "RabbitMQ prefetch count")

	rootCmd.AddCommand(storefrontCmd, notificationCmd, migrateCmd, menuCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serviceFunc func(ctx context.Context, cfg *config.Config, log *logger.Logger) error

// withService loads config, builds the logger and runs fn until SIGINT/SIGTERM
func withService(cmd *cobra.Command, name string, fn serviceFunc) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(name)
	defer log.Sync()
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("service_started", fmt.Sprintf("Starting %s", name), requestID, nil)

	if err := fn(ctx, cfg, log); err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", name), requestID, err, nil)
		return err
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
	return nil
}

type closableKV interface {
	storage.KV
	Close() error
}

// openStore opens the durable store selected by storage.driver
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (closableKV, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageSQLite:
		return storage.OpenSQLite(ctx, cfg.Storage.Path)
	case config.StoragePostgres:
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return storage.NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openOrderAPI(cfg *config.Config, kv storage.KV) order.API {
	if cfg.OrderAPI.Mode == config.OrderAPILocal {
		return order.NewLocalAPI(kv)
	}
	return order.NewHTTPClient(cfg.OrderAPI.BaseURL, &http.Client{})
}

func runStorefront(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	fee, err := cfg.DeliveryFee()
	if err != nil {
		return err
	}

	kv, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	defer kv.Close()

	api := openOrderAPI(cfg, kv)
	orderFeed := feed.New(api, cfg.Feed.PollInterval, log)

	subscribers := []events.Handler{orderFeed.HandleMessage}
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		publisher := messaging.NewPublisher(conn, log)
		defer publisher.Close()

		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)
		subscribers = append(subscribers, messaging.NewBridge(publisher, log).HandleMessage)
	}

	sessions := storefront.NewSessions(kv, api, fee, log, subscribers...)
	sessions.SetLimits(cfg.Server.SessionIdleTimeout, cfg.Server.MaxSessions)
	defer sessions.Close()

	handler := storefront.NewHandler(menu.Default(), sessions, orderFeed, log)

	listenPort := cfg.Server.Port
	if port != 0 {
		listenPort = port
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", listenPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := orderFeed.Start(ctx); err != nil {
		return err
	}
	defer orderFeed.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("service_started", fmt.Sprintf("Storefront started on port %d", listenPort), requestID, map[string]interface{}{
			"port":           listenPort,
			"storage_driver": cfg.Storage.Driver,
			"order_api_mode": cfg.OrderAPI.Mode,
			"delivery_fee":   fee.StringFixed(2),
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, time.Minute)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful_shutdown", "Shutting down HTTP server", requestID, nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-"+hostname, prefetch)

	var sender notification.Sender
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			// printing still works without the bot
			log.Error("telegram_init_failed", "Failed to initialize Telegram bot", requestID, err, nil)
		} else {
			sender = bot
			log.Info("telegram_connected", fmt.Sprintf("Forwarding orders as @%s", bot.Self.UserName), requestID, map[string]interface{}{
				"chat_id": cfg.Telegram.ChatID,
			})
		}
	}

	return notification.NewSubscriber(consumer, sender, cfg.Telegram.ChatID, os.Stdout, log).Start(ctx)
}

func runMigrate(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return db.RunMigrations(ctx)
}

func printMenu(w io.Writer, catalog *menu.Catalog) {
	for _, tab := range catalog.Tabs() {
		items, _ := catalog.Items(tab)
		fmt.Fprintf(w, "%s\n", tab)
		for _, item := range items {
			fmt.Fprintf(w, "  %-24s %7s  %s\n", item.Name, item.Price, item.Description)
		}
	}
}
