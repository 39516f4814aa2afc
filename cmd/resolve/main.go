package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/replay"
)

// #region main
func main() {
	kinds := flag.String("kinds", "", "comma-separated state kinds to resolve")
	fixturePath := flag.String("fixture", "", "resolve every object of a fixture instead")
	jsonOut := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	if (*kinds == "") == (*fixturePath == "") {
		fmt.Fprintln(os.Stderr, "usage: resolve --kinds pose,contact_bodies,...")
		fmt.Fprintln(os.Stderr, "       resolve --fixture path/to/fixture.json")
		os.Exit(2)
	}

	reg := objstate.DefaultRegistry(objstate.DefaultOptions())

	var plans []plan
	if *kinds != "" {
		plans = append(plans, resolve(reg, "", splitKinds(*kinds)))
	} else {
		f, err := replay.LoadFixture(*fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
			os.Exit(2)
		}
		for _, o := range f.Objects {
			plans = append(plans, resolve(reg, o.Name, splitKinds(strings.Join(o.Kinds, ","))))
		}
	}

	failed := false
	for _, p := range plans {
		failed = failed || p.Error != ""
	}
	if *jsonOut {
		data, _ := json.MarshalIndent(plans, "", "  ")
		fmt.Println(string(data))
	} else {
		printPlans(reg, plans)
	}
	if failed {
		os.Exit(1)
	}
}

// #endregion main

// #region resolve
type plan struct {
	Object     string              `json:"object,omitempty"`
	Kinds      []string            `json:"kinds"`
	Order      []string            `json:"order,omitempty"`
	Dropped    []string            `json:"dropped_edges,omitempty"`
	Dependents map[string][]string `json:"dependents,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func resolve(reg *objstate.Registry, object string, kinds []objstate.Kind) plan {
	p := plan{Object: object}
	for _, k := range kinds {
		p.Kinds = append(p.Kinds, string(k))
	}
	order, dropped, err := reg.Resolve(kinds)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	for _, k := range order {
		p.Order = append(p.Order, string(k))
	}
	for _, e := range dropped {
		p.Dropped = append(p.Dropped, e.From+" -> "+e.To)
	}
	// What a failing read of each kind would leave stale this tick
	for _, k := range order {
		deps := reg.Dependents(k, kinds)
		if len(deps) == 0 {
			continue
		}
		if p.Dependents == nil {
			p.Dependents = make(map[string][]string)
		}
		for _, d := range deps {
			p.Dependents[string(k)] = append(p.Dependents[string(k)], string(d))
		}
	}
	return p
}

func splitKinds(s string) []objstate.Kind {
	var out []objstate.Kind
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, objstate.Kind(part))
		}
	}
	return out
}

// #endregion resolve

// #region output
func printPlans(reg *objstate.Registry, plans []plan) {
	fmt.Println("=== Registered kinds ===")
	for _, k := range reg.Kinds() {
		fmt.Printf("  %-16s requires %v, optional %v\n", k, reg.Dependencies(k), reg.OptionalDependencies(k))
	}
	fmt.Println()
	for _, p := range plans {
		name := p.Object
		if name == "" {
			name = "(kinds)"
		}
		fmt.Printf("%s: %s\n", name, strings.Join(p.Kinds, ", "))
		if p.Error != "" {
			fmt.Printf("  error: %s\n", p.Error)
			continue
		}
		fmt.Printf("  order:   %s\n", strings.Join(p.Order, " -> "))
		if len(p.Dropped) > 0 {
			fmt.Printf("  dropped: %s\n", strings.Join(p.Dropped, ", "))
		}
		for _, k := range p.Order {
			if deps, ok := p.Dependents[k]; ok {
				fmt.Printf("  %-16s feeds %s\n", k, strings.Join(deps, ", "))
			}
		}
	}
}

// #endregion output
