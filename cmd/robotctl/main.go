package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZYJ3898/robot-control-app/internal/link"
	"github.com/ZYJ3898/robot-control-app/internal/robot"
	"github.com/ZYJ3898/robot-control-app/internal/server"
	"github.com/ZYJ3898/robot-control-app/web"
)

func main() {
	configPath := flag.String("config", "/etc/robotctl/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run against a local simulated robot")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] robotctl starting")

	// Load config
	cfg := server.LoadConfig(*configPath)

	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Demo mode: point the controller at a local simulated robot
	if *demo {
		sim, err := robot.StartSim("127.0.0.1:0")
		if err != nil {
			log.Fatalf("[main] demo simulator failed to start: %v", err)
		}
		defer sim.Close()
		cfg.Robot.Transport = "tcp"
		cfg.Robot.Host = sim.Host()
		cfg.Robot.Port = sim.Port()
		cfg.Robot.AutoConnect = true
	}

	ctrl := robot.NewController(link.NewManager())

	// A failed connect here is not fatal; the dashboard starts regardless
	// and the user reconnects from it.
	if cfg.Robot.AutoConnect {
		if err := ctrl.Connect(cfg.Robot.Dialer("", 0)); err != nil {
			log.Printf("[main] initial connect failed: %v", err)
		}
	}

	srv := server.New(cfg, ctrl, web.FS)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
	ctrl.Disconnect()
}
