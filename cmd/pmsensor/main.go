package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/airquality.report/internal/api"
	"github.com/banshee-data/airquality.report/internal/config"
	"github.com/banshee-data/airquality.report/internal/httputil"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/serialbus"
	"github.com/banshee-data/airquality.report/internal/tasks"
	"github.com/banshee-data/airquality.report/internal/timeutil"
	"github.com/banshee-data/airquality.report/internal/version"
)

var (
	configFile  = flag.String("config", config.DefaultConfigPath, "Path to the node configuration file")
	devMode     = flag.Bool("dev", false, "Read from a simulated sensor instead of the serial port")
	listen      = flag.String("listen", "", "Listen address (overrides listen in the config file)")
	port        = flag.String("port", "", "Serial port to use (overrides serial_port; ignored in dev mode)")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n       %s status [base-url]\n\nFlags:\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("pmsensor %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if flag.Arg(0) == "status" {
		baseURL := "http://localhost:8080"
		if flag.NArg() > 1 {
			baseURL = flag.Arg(1)
		}
		client := &http.Client{Timeout: 5 * time.Second}
		if err := runStatus(context.Background(), os.Stdout, client, baseURL); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *listen, *port)

	var factory serialbus.SerialPortFactory = serialbus.RealPortFactory{}
	if *devMode {
		log.Printf("dev mode: reading from a simulated sensor")
		factory = serialbus.SimulatedPortFactory{Sensor: serialbus.NewSimulatedSensor(uint64(time.Now().UnixNano()))}
	}

	n, err := newNode(cfg, factory, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	monitoring.TeeStandardLog(n.logFile)
	log.Printf("pmsensor %s (%s) starting, sensor on %s", version.Version, version.GitSHA, cfg.GetSerialPort())

	ln, err := tasks.Listen(cfg.GetListen(), cfg.GetMaxConnections())
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GetListen(), err)
	}
	log.Printf("Listening on %s", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.run(ctx, ln); err != nil {
		monitoring.TeeStandardLog(nil)
		n.close()
		log.Fatalf("Node stopped: %v", err)
	}
	log.Printf("Graceful shutdown complete")
	monitoring.TeeStandardLog(nil)
	n.close()
}

// loadConfig reads path. A missing default config file is not an error:
// every setting has a built-in default.
func loadConfig(path string) (*config.NodeConfig, error) {
	cfg, err := config.LoadNodeConfig(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == config.DefaultConfigPath {
			log.Printf("No config file at %s, using defaults", path)
			return config.EmptyNodeConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// applyFlags lets command-line values override the config file.
func applyFlags(cfg *config.NodeConfig, listen, port string) {
	if listen != "" {
		cfg.Listen = &listen
	}
	if port != "" {
		cfg.SerialPort = &port
	}
}

// runStatus prints a running node's status as indented JSON.
func runStatus(ctx context.Context, w io.Writer, client httputil.HTTPClient, baseURL string) error {
	status, err := api.FetchStatus(ctx, client, baseURL)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
