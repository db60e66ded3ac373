package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hedgelink/internal/ingest/local"
	"hedgelink/internal/ingest/remote"
	"hedgelink/internal/obs"
	"hedgelink/internal/ops"
	"hedgelink/internal/recorder"
	"hedgelink/internal/sched"
	"hedgelink/internal/service"
	"hedgelink/internal/store"
	"hedgelink/pkg/conn"
)

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	flag.Parse()

	if err := run(*configPath, *configReload); err != nil {
		log.Printf("reconciler: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, configReload time.Duration) error {
	loaded, err := ops.Load(configPath)
	if err != nil {
		return err
	}
	runtime := newRuntimeConfig(loaded)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loaded.PyroscopeURL != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hedgelink.reconciler",
			ServerAddress:   loaded.PyroscopeURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	var journal *recorder.Writer
	if loaded.Features.EnableJournal {
		journal, err = recorder.NewWriter(loaded.Journal)
		if err != nil {
			return err
		}
		if err := journal.Start(ctx); err != nil {
			return err
		}
	}

	var history *store.History
	if loaded.StoreEnabled {
		client, err := conn.New(loaded.Store)
		if err != nil {
			return err
		}
		history, err = store.NewHistory(client)
		if err != nil {
			return err
		}
	}

	platform := local.NewPlatform(ctx, loaded.LocalURL, loaded.Account)
	if err := platform.StartWebsocket(ctx); err != nil {
		return err
	}
	defer platform.Close()
	if err := platform.SubscribeExecutions(ctx); err != nil {
		return err
	}

	bridge := remote.NewBridge(ctx, loaded.RemoteURL, loaded.Account)
	if err := bridge.StartWebsocket(ctx); err != nil {
		return err
	}
	defer bridge.Close()
	if err := bridge.SubscribeEvents(ctx); err != nil {
		return err
	}

	svc, err := service.NewService(service.Config{
		Account:         loaded.Account,
		GraceWindow:     loaded.GraceWindow,
		QueueCap:        loaded.QueueCap,
		EnableMirroring: loaded.Features.EnableMirroring,
	}, service.Deps{
		Positions: platform,
		Submitter: platform,
		Transport: bridge,
		Scheduler: sched.NewTimerScheduler(),
		Journal:   journal,
		History:   history,
		Policy:    loaded.Policy,
		Families:  loaded.Families,
	})
	if err != nil {
		return err
	}

	if loaded.MetricsAddr != "" {
		registry := obs.NewRegistry(svc.State().Metrics, func() int {
			return len(svc.State().Ledger.Open())
		})
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: loaded.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer func() { _ = server.Close() }()
	}

	if configReload > 0 {
		go watchConfig(ctx, configPath, configReload, func(reloaded ops.Loaded) {
			runtime.Update(reloaded)
			svc.SetMirroringEnabled(reloaded.Features.EnableMirroring)
		})
	}

	cancelLocal := platform.ObserveExecutions(ctx, svc.PublishLocal)
	defer cancelLocal()
	cancelRemote := bridge.ObserveNotifications(ctx, svc.PublishRemote)
	defer cancelRemote()

	log.Printf("reconciler running: account=%s grace=%s", loaded.Account, loaded.GraceWindow)
	svc.Run(ctx)

	svc.Stop()
	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Printf("journal close: %v", err)
		}
	}
	if err := svc.WriteSnapshot(runtime.Load().SnapshotPath); err != nil {
		log.Printf("snapshot write: %v", err)
	}

	snapshot := svc.State().Metrics.Snapshot()
	log.Printf("metrics: events=%v entries=%d closures=%d mirrors=%d skips=%d dups=%d ambiguous=%d unknown=%d failures=%d drops=%d",
		snapshot.EventCounts, snapshot.EntriesRegistered, snapshot.ClosuresApplied,
		snapshot.MirrorSubmissions, snapshot.MirrorSkips, snapshot.DuplicateEvents,
		snapshot.AmbiguousAborts, snapshot.UnknownCorrelations, snapshot.SubmissionFailures,
		snapshot.QueueDrops)
	return nil
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.Printf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			log.Printf("config reloaded: %s", path)
		}
	}
}
