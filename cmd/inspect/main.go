package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/logging"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to sim_state.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	tick := flag.Int64("tick", -1, "state values of one tick (default: last recorded)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/sim_state.db [--last N] [--run id] [--tick N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *tick, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string  `json:"run_id"`
	Scene     string  `json:"scene"`
	Online    bool    `json:"online"`
	Ticks     int     `json:"ticks"`
	Soaked    int     `json:"soaked"`
	MeanMs    float64 `json:"mean_ms"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns newest first; print chronologically
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		sum, err := logging.Summarize(st.DB(), r.RunID)
		if err != nil {
			return err
		}
		rows[len(runs)-1-i] = listRow{
			RunID:     r.RunID,
			Scene:     r.Scene,
			Online:    r.Online,
			Ticks:     sum.Ticks,
			Soaked:    sum.Soaked,
			MeanMs:    ms(sum.MeanDuration.Seconds()),
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-16s  %-6s  %6s  %6s  %8s  %s\n", "Run", "Scene", "Online", "Ticks", "Soaked", "Mean ms", "Time")
	fmt.Printf("%-10s+-%-16s+-%-6s+-%6s+-%6s+-%8s+-%s\n",
		"----------", "----------------", "------", "------", "------", "--------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-16s  %-6v  %6d  %6d  %8.3f  %s\n",
			shortID(r.RunID), r.Scene, r.Online, r.Ticks, r.Soaked, r.MeanMs, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID   string                     `json:"run_id"`
	Tick    int64                      `json:"tick"`
	Summary summaryOutput              `json:"summary"`
	Recent  []tickOutput               `json:"recent_ticks"`
	Values  map[string]json.RawMessage `json:"values"`
}

type summaryOutput struct {
	Ticks   int     `json:"ticks"`
	Updates int     `json:"updates"`
	Soaked  int     `json:"soaked"`
	MeanMs  float64 `json:"mean_ms"`
	MaxMs   float64 `json:"max_ms"`
}

type tickOutput struct {
	Tick    int64   `json:"tick"`
	Updates int     `json:"updates"`
	Soaked  int     `json:"soaked"`
	Dropped int     `json:"dropped_edges"`
	Ms      float64 `json:"ms"`
}

func runDetailMode(st *store.Store, runID string, tick int64, jsonOut bool) error {
	if tick < 0 {
		lastTick, err := st.LastTick(runID)
		if err != nil {
			return err
		}
		if lastTick < 0 {
			return fmt.Errorf("run %s has no recorded values", runID)
		}
		tick = lastTick
	}

	sum, err := logging.Summarize(st.DB(), runID)
	if err != nil {
		return err
	}
	recent, err := logging.RecentTicks(st.DB(), runID, 10)
	if err != nil {
		return err
	}
	values, err := st.LoadTick(runID, tick)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID: runID,
		Tick:  tick,
		Summary: summaryOutput{
			Ticks:   sum.Ticks,
			Updates: sum.Updates,
			Soaked:  sum.Soaked,
			MeanMs:  ms(sum.MeanDuration.Seconds()),
			MaxMs:   ms(sum.MaxDuration.Seconds()),
		},
		Values: make(map[string]json.RawMessage, len(values)),
	}
	for _, e := range recent {
		out.Recent = append(out.Recent, tickOutput{
			Tick: e.Tick, Updates: e.Updates, Soaked: e.Soaked, Dropped: e.DroppedEdges, Ms: ms(e.Duration.Seconds()),
		})
	}
	for _, v := range values {
		out.Values[v.Object+"/"+string(v.Kind)] = json.RawMessage(v.ValueJSON)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", out.RunID)
	fmt.Printf("Ticks:    %d\n", out.Summary.Ticks)
	fmt.Printf("Updates:  %d\n", out.Summary.Updates)
	fmt.Printf("Soaked:   %d\n", out.Summary.Soaked)
	fmt.Printf("Mean ms:  %.3f (max %.3f)\n", out.Summary.MeanMs, out.Summary.MaxMs)

	fmt.Printf("\nRecent ticks:\n")
	for _, t := range out.Recent {
		fmt.Printf("  %4d  updates=%d soaked=%d dropped=%d %.3fms\n", t.Tick, t.Updates, t.Soaked, t.Dropped, t.Ms)
	}

	fmt.Printf("\nValues at tick %d:\n", tick)
	for _, v := range values {
		fmt.Printf("  %-12s %-16s %s\n", v.Object, v.Kind, v.ValueJSON)
	}
	return nil
}

// #endregion detail-mode

// #region output

func ms(seconds float64) float64 { return seconds * 1000 }

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
