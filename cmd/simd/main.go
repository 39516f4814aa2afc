package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/metrics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics/remote"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/replay"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/store"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/stream"
)

// #region main
func main() {
	os.Exit(run())
}

func run() int {
	fixturePath := flag.String("fixture", "", "path to scene fixture JSON")
	dbPath := flag.String("db", envOr("SIMSTATE_DB", "sim_state.db"), "path to the sqlite store")
	physicsAddr := flag.String("physics", envOr("SIMSTATE_PHYSICS_ADDR", ""), "remote physics backend (empty runs the in-memory world)")
	listen := flag.String("listen", envOr("SIMSTATE_LISTEN", ""), "serve the snapshot websocket on this address")
	scene := flag.String("scene", "", "scene name for runs and baked values (default: fixture file name)")
	ticks := flag.Int("ticks", 0, "override the fixture's tick count")
	interval := flag.Duration("interval", 0, "pause between ticks")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: simd --fixture scene.json [--db path] [--physics addr] [--listen addr] [--ticks N] [--interval 50ms]")
		return 2
	}
	if *scene == "" {
		*scene = strings.TrimSuffix(filepath.Base(*fixturePath), filepath.Ext(*fixturePath))
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		log.Printf("load fixture: %v", err)
		return 1
	}
	if *ticks > 0 {
		f.Ticks = *ticks
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		log.Printf("failed to open store: %v", err)
		return 1
	}
	defer st.Close()

	baked, err := st.LoadBaked(*scene, objstate.DefaultRegistry(objstate.DefaultOptions()))
	if err != nil {
		log.Printf("load baked values: %v", err)
		return 1
	}

	// Physics: in-memory world, or a physicsd serving the same fixture
	var (
		backend physics.Backend
		world   *physics.World
	)
	if *physicsAddr == "" {
		wcfg := physics.DefaultWorldConfig()
		if f.TimeStep > 0 {
			wcfg.TimeStep = f.TimeStep
		}
		world = physics.NewWorld(wcfg)
		if err := replay.Populate(world, f); err != nil {
			log.Printf("populate world: %v", err)
			return 1
		}
		backend = world
	} else {
		cfg := remote.DefaultConfig()
		cfg.Addr = *physicsAddr
		client, err := remote.NewClient(cfg)
		if err != nil {
			log.Printf("failed to connect to physics backend at %s: %v", *physicsAddr, err)
			return 1
		}
		defer client.Close()
		backend = client
	}

	s, bodies, err := replay.Attach(f, backend, baked)
	if err != nil {
		log.Printf("build scene: %v", err)
		return 1
	}
	defer s.Close()

	rec, err := sim.NewRecorder(st, *scene, f.Online())
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	soak, contact := metrics.NewSoakMetric(), metrics.NewContactMetric()
	observers := []sim.Observer{rec, soak, contact, &pacer{interval: *interval}}

	if *listen != "" {
		hub := stream.NewHub()
		defer hub.Close()
		srv := &http.Server{Addr: *listen, Handler: hub}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("stream server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		observers = append(observers, hub)
	}

	fmt.Println("Sim State engine ready.")
	fmt.Printf("  DB: %s | Physics: %s | Scene: %s | Run: %s\n", *dbPath, backendName(*physicsAddr), *scene, rec.RunID())

	results, err := replay.Play(s, world, bodies, f, observers...)
	if err != nil {
		log.Printf("run stopped after %d ticks: %v", len(results), err)
	}
	if rec.Err() != nil {
		log.Printf("recorder: %v", rec.Err())
	}

	sum := replay.Summarize(results)
	fmt.Printf("[%s] ticks=%d updates=%d soaked=%d dropped_edges=%d\n",
		rec.RunID(), sum.TotalTicks, sum.Updates, sum.Soaked, sum.DroppedEdges)
	out, _ := json.MarshalIndent(metrics.Gather(soak, contact), "", "  ")
	fmt.Println(string(out))

	if err != nil {
		return 1
	}
	return 0
}

// #endregion main

// #region helpers
// pacer slows the loop down for live viewers.
type pacer struct{ interval time.Duration }

func (p *pacer) Start(*sim.Simulator) {}
func (p *pacer) Step(*sim.Simulator) {
	if p.interval > 0 {
		time.Sleep(p.interval)
	}
}
func (p *pacer) End(*sim.Simulator) {}

func backendName(addr string) string {
	if addr == "" {
		return "in-memory"
	}
	return addr
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
