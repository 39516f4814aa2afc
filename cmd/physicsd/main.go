package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics/remote"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/replay"
)

// #region main
func main() {
	fixturePath := flag.String("fixture", "", "path to scene fixture JSON whose bodies are served")
	listen := flag.String("listen", envOr("SIMSTATE_PHYSICS_ADDR", "localhost:50061"), "gRPC listen address")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: physicsd --fixture scene.json [--listen addr]")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		log.Fatalf("load fixture: %v", err)
	}
	cfg := physics.DefaultWorldConfig()
	if f.TimeStep > 0 {
		cfg.TimeStep = f.TimeStep
	}
	w := physics.NewWorld(cfg)
	if err := replay.Populate(w, f); err != nil {
		log.Fatalf("populate world: %v", err)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("listen %s: %v", *listen, err)
	}
	g := grpc.NewServer()
	remote.NewServer(w).Register(g)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("physicsd: shutting down after %d steps", w.Steps())
		g.GracefulStop()
	}()

	log.Printf("physicsd: serving %d bodies on %s", len(f.Bodies), lis.Addr())
	if err := g.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
