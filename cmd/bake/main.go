package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/replay"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to sim_state.db")
	fixturePath := flag.String("fixture", "", "path to scene fixture JSON")
	scene := flag.String("scene", "", "scene name to bake under (default: fixture file name)")
	ticks := flag.Int("ticks", 0, "ticks to settle before baking (default: the fixture's)")
	flag.Parse()

	if *dbPath == "" || *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: bake --db path/to/db --fixture path/to/fixture.json [--scene name] [--ticks N]")
		os.Exit(2)
	}
	if *scene == "" {
		*scene = strings.TrimSuffix(filepath.Base(*fixturePath), filepath.Ext(*fixturePath))
	}

	if err := run(*dbPath, *fixturePath, *scene, *ticks); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region bake

// run settles the fixture's scene online and stores its final values as the
// scene's baked values, which later seed offline objects.
func run(dbPath, fixturePath, scene string, ticks int) error {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	if ticks > 0 {
		f.Ticks = ticks
	}
	// Every object runs online while baking
	for i := range f.Objects {
		online := true
		f.Objects[i].Online = &online
	}

	results, err := replay.Run(f)
	if err != nil {
		return fmt.Errorf("settle scene: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("fixture %s runs no ticks", fixturePath)
	}
	final := results[len(results)-1].Snapshot

	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	var values []store.StateValue
	for _, v := range sim.StateValues(final) {
		if v.Value == nil || !bakeable(v.Kind) {
			continue
		}
		values = append(values, v)
	}
	if err := st.BakeScene(scene, values); err != nil {
		return fmt.Errorf("bake %s: %w", scene, err)
	}

	fmt.Printf("Baked %d values for scene %q at tick %d\n", len(values), scene, final.Tick)
	for _, v := range values {
		fmt.Printf("  %-12s %s\n", v.Object, v.Kind)
	}
	return nil
}

// bakeable excludes kinds whose values only make sense against a live backend.
func bakeable(kind objstate.Kind) bool {
	return kind != objstate.KindWaterSource
}

// #endregion bake
