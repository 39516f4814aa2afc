package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/replay"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/store"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	dbPath := flag.String("db", "", "path to sim_state.db (compare against a recorded run)")
	runID := flag.String("run", "", "recorded run id to compare with (requires --db)")
	flag.Parse()

	if *fixturePath == "" || (*dbPath == "") != (*runID == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json --db path/to/sim_state.db --run id")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}
	results, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	var exitCode int
	if *dbPath != "" {
		exitCode = runDBMode(*dbPath, *runID, results)
	} else {
		exitCode = printComparison(results, f.Expected)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

// printComparison outputs the expected/replayed table and returns the exit code.
func printComparison(results []replay.TickResult, expected []replay.FixtureExpected) int {
	fmt.Printf("%-6s| %-12s| %-16s| %-28s| %s\n", "Tick", "Object", "Kind", "Expected", "Match")
	fmt.Printf("%-6s+%-13s+%-17s+%-29s+%s\n", "------", "-------------", "-----------------", "-----------------------------", "------")

	mismatched := make(map[int]replay.Mismatch)
	for _, m := range replay.Check(results, expected) {
		for i, e := range expected {
			if e.Tick == m.Tick && e.Object == m.Object && objstate.Kind(e.Kind) == m.Kind {
				mismatched[i] = m
			}
		}
	}

	for i, e := range expected {
		match := "OK"
		if m, ok := mismatched[i]; ok {
			match = "DIFF got " + m.Got
		}
		fmt.Printf("%-6d| %-12s| %-16s| %-28s| %s\n", e.Tick, e.Object, e.Kind, truncate(string(e.Value), 28), match)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d expected, %d match, %d diverge (%d ticks, %d updates, %d soaked)\n",
		len(expected), len(expected)-len(mismatched), len(mismatched), s.TotalTicks, s.Updates, s.Soaked)

	if len(mismatched) > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region db-mode

// runDBMode compares every recorded tick of runID with the replayed snapshot.
func runDBMode(dbPath, runID string, results []replay.TickResult) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	last, err := st.LastTick(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "last tick: %v\n", err)
		return 2
	}
	if last < 1 {
		fmt.Fprintf(os.Stderr, "run %s has no recorded ticks\n", runID)
		return 2
	}

	fmt.Printf("%-6s| %8s| %8s| %s\n", "Tick", "Stored", "Diverge", "Match")
	fmt.Printf("%-6s+%9s+%9s+%s\n", "------", "---------", "---------", "------")

	diverged := 0
	for _, r := range results {
		if r.Tick > last {
			break
		}
		rows, err := st.LoadTick(runID, r.Tick)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load tick %d: %v\n", r.Tick, err)
			return 2
		}
		diff := 0
		for _, row := range rows {
			v, ok := r.Snapshot.Value(row.Object, row.Kind)
			if !ok || !sameValue(v, row.ValueJSON) {
				diff++
			}
		}
		match := "OK"
		if diff > 0 {
			match = "DIFF"
			diverged++
		}
		fmt.Printf("%-6d| %8d| %8d| %s\n", r.Tick, len(rows), diff, match)
	}

	fmt.Printf("\nSummary: run %s, %d ticks compared, %d diverge\n", runID, min(last, int64(len(results))), diverged)
	if diverged > 0 {
		return 1
	}
	return 0
}

func sameValue(v any, stored string) bool {
	got, err := objstate.EncodeValue(v)
	if err != nil {
		return false
	}
	var a, b any
	if json.Unmarshal(got, &a) != nil || json.Unmarshal([]byte(stored), &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// #endregion db-mode

// #region helpers

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion helpers
