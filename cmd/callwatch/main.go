package main

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sjawhar/callwatch/internal/config"
	"github.com/sjawhar/callwatch/internal/gdrive"
	"github.com/sjawhar/callwatch/internal/logger"
	"github.com/sjawhar/callwatch/internal/metrics"
	"github.com/sjawhar/callwatch/internal/notify"
	"github.com/sjawhar/callwatch/internal/router"
	"github.com/sjawhar/callwatch/internal/server"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/storage"
	"github.com/sjawhar/callwatch/internal/telephony"
)

//go:embed static/*
var staticFiles embed.FS

// warnings collects startup and runtime problems shown on /api/status.
type warnings struct {
	mu    sync.RWMutex
	items []string
}

func (w *warnings) Add(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, msg)
}

func (w *warnings) List() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.items...)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, cfgWarnings, err := config.Load(config.Path())
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	log.Info("callwatch: starting")

	warn := &warnings{}
	for _, w := range cfgWarnings {
		log.Warn(w)
		warn.Add(w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}
	defer func() { _ = store.Close() }()

	journal := storage.NewWriter(cfg.ReportDir)
	archive := storage.NewArchive(store, journal)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.WithError(err).Fatal("static assets init failed")
	}

	hub := server.NewHub()
	hub.SetLogger(log.Entry)
	stats := metrics.New()

	var phone *telephony.Phone
	var device session.Device
	if cfg.DeviceEnabled() {
		phone = telephony.NewPhone(telephony.Config{
			TokenURL:   cfg.TokenURL,
			GatewayURL: cfg.DeviceURL,
			APIKey:     cfg.DeviceAPIKey,
			Identity:   cfg.Identity,
		}, log.Entry)
		device = phone
	}

	ctrl := session.NewController(session.MultiPresenter{hub, stats}, archive, device, log.Component("session"))
	events := router.New(ctrl, stats, log.Entry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		events.Run(ctx)
	}()

	if cfg.NotifyURL != "" {
		channel := notify.NewClient(cfg.NotifyURL, cfg.ParsedReconnectMaxInterval(), log.Entry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := channel.Run(ctx, events.NotificationHandler(ctx)); err != nil {
				log.WithError(err).Error("notification channel stopped")
				warn.Add("Notification channel stopped: " + err.Error())
			}
		}()
	}

	if phone != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := phone.Run(ctx, events.DeviceHandler(ctx)); err != nil {
				log.WithError(err).Error("telephony device unavailable")
				warn.Add("Telephony device unavailable: " + err.Error())
			}
		}()
	}

	if cfg.GDriveEnabled() {
		startDriveSync(ctx, &wg, cfg, journal, log, warn)
	}

	handler, err := server.Handler(assets, hub, store, server.ControlHooks{
		Snapshot: ctrl.Snapshot,
		Submit:   events.Do,
		Warnings: warn.List,
		Metrics:  stats.Handler(),
	})
	if err != nil {
		log.WithError(err).Fatal("build http handler failed")
	}

	if err := server.Serve(ctx, cfg.ListenAddr, handler, log); err != nil {
		log.WithError(err).Error("http server stopped")
		stop()
	}

	log.Info("callwatch: shutting down")
	wg.Wait()
}

func startDriveSync(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, journal gdrive.Journal, log *logger.Logger, warn *warnings) {
	entry := log.Component("gdrive")

	sched, err := gdrive.ParseSchedule(cfg.GDriveSyncSchedule)
	if err != nil {
		entry.WithError(err).Warn("gdrive sync disabled")
		warn.Add("Drive sync disabled: " + err.Error())
		return
	}
	syncer, err := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
	if err != nil {
		entry.WithError(err).Warn("gdrive sync disabled")
		warn.Add("Drive sync disabled: " + err.Error())
		return
	}

	scheduler := gdrive.NewScheduler(syncer, journal, sched, log.Entry)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	entry.WithFields(logrus.Fields{
		"folder":   cfg.GDriveFolderID,
		"schedule": cfg.GDriveSyncSchedule,
	}).Info("gdrive sync enabled")
}
