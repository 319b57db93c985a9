package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/banshee-data/airquality.report/internal/acquisition"
	"github.com/banshee-data/airquality.report/internal/api"
	"github.com/banshee-data/airquality.report/internal/config"
	"github.com/banshee-data/airquality.report/internal/db"
	"github.com/banshee-data/airquality.report/internal/device"
	"github.com/banshee-data/airquality.report/internal/fsutil"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/queue"
	"github.com/banshee-data/airquality.report/internal/recorder"
	"github.com/banshee-data/airquality.report/internal/serialbus"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/tasks"
	"github.com/banshee-data/airquality.report/internal/timeutil"
	"github.com/banshee-data/airquality.report/internal/uplink"
)

const (
	httpShutdownTimeout = time.Second
	pruneInterval       = time.Hour
)

// node is one wired-up sensor node.
type node struct {
	cfg   *config.NodeConfig
	clock timeutil.Clock

	logFile  *monitoring.LogFile
	store    *store.Store
	sched    *acquisition.Scheduler
	db       *db.DB
	spool    *queue.Spool
	resetter *device.Resetter
	mux      *http.ServeMux
}

func newNode(cfg *config.NodeConfig, factory serialbus.SerialPortFactory, clock timeutil.Clock) (*node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	mode, err := serialbus.PortOptions{
		BaudRate:    cfg.GetBaudRate(),
		ReadTimeout: cfg.GetReadTimeout(),
	}.Mode()
	if err != nil {
		return nil, err
	}

	n := &node{cfg: cfg, clock: clock}
	if n.logFile, err = monitoring.OpenLogFile(cfg.GetLogFile(), cfg.GetLogMaxSizeMB(), cfg.GetLogMaxBackups()); err != nil {
		return nil, err
	}
	if n.db, err = db.Open(cfg.GetDBPath()); err != nil {
		n.logFile.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	if n.spool, err = queue.New(fsutil.OSFileSystem{}, cfg.GetQueueDir(), cfg.GetQueueMaxFiles(), clock); err != nil {
		n.close()
		return nil, err
	}

	reg := monitoring.NewRegistry()
	n.store = store.New(clock)
	n.sched = acquisition.New(acquisition.Config{
		Mode:               mode,
		WarmUpReads:        cfg.GetWarmupReads(),
		WarmUpInterval:     cfg.GetWarmupInterval(),
		RetryDelay:         cfg.GetRetryDelay(),
		DutyCycle:          cfg.GetDutyCycle(),
		MaxReadsPerAttempt: acquisition.DefaultConfig().MaxReadsPerAttempt,
	}, serialbus.NewPortBus(factory, cfg.GetSerialPort()), clock, n.store, acquisition.NewMetrics(reg))

	n.resetter = device.NewResetter(cfg.GetResetDelay(), clock)
	n.resetter.BeforeExit(n.close)

	srv := api.NewServer(api.Options{
		Store:     n.store,
		Scheduler: n.sched,
		LogFile:   n.logFile,
		Queue:     n.spool,
		DB:        n.db,
		Resetter:  n.resetter,
		APIKey:    cfg.GetAPIKey(),
		Registry:  reg,
		Clock:     clock,
		Location:  cfg.Location(),
	})
	n.mux = srv.ServeMux()
	n.sched.AttachAdminRoutes(n.mux, n.store)
	if err := n.db.AttachAdminRoutes(n.mux, filepath.Join(filepath.Dir(cfg.GetDBPath()), "backups")); err != nil {
		n.close()
		return nil, err
	}
	if cfg.GetAPIKey() == "" {
		log.Printf("No api_key configured: /log, /queue and /reset admin actions are disabled")
	}
	return n, nil
}

func (n *node) handler() http.Handler {
	return api.LoggingMiddleware(n.mux)
}

// run starts every task and blocks until ctx is cancelled or a task
// fails.
func (n *node) run(ctx context.Context, ln net.Listener) error {
	rt := tasks.New(ctx)

	rt.Go("acquisition", n.sched.Run)
	rt.Go("http", tasks.Serve(&http.Server{Handler: n.handler()}, ln, httpShutdownTimeout))
	rt.Go("recorder", func(ctx context.Context) error {
		return recorder.Run(ctx, n.store, n.db, recorder.SinkFunc(func(s store.Snapshot) error {
			_, err := n.spool.Enqueue(s)
			return err
		}))
	})

	if retention := n.cfg.GetHistoryRetention(); retention > 0 {
		rt.Go("pruner", tasks.Every(n.clock, pruneInterval, "pruner", func(context.Context) error {
			removed, err := n.db.PruneBefore(n.clock.Now().Add(-retention))
			if removed > 0 {
				log.Printf("Pruned %d samples older than %s", removed, retention)
			}
			return err
		}))
	}

	if broker := n.cfg.GetMQTTBroker(); broker != "" {
		pub, err := uplink.DialMQTT(broker, n.cfg.GetMQTTClientID())
		if err != nil {
			log.Printf("MQTT uplink disabled: %v", err)
		} else {
			defer pub.Close()
			fwd := uplink.NewForwarder(pub, uplink.RawSpool{Spool: n.spool}, n.cfg.GetMQTTTopic())
			rt.Go("uplink", tasks.Every(n.clock, n.cfg.GetUplinkInterval(), "uplink", func(ctx context.Context) error {
				_, err := fwd.Drain(ctx)
				return err
			}))
		}
	}

	err := rt.Wait()
	n.store.Close()
	return err
}

func (n *node) close() {
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			log.Printf("Failed to close history: %v", err)
		}
	}
	if n.logFile != nil {
		n.logFile.Close()
	}
}
