package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// #region errors
var (
	// ErrMissingDependency means a requested node requires a node that was not requested.
	ErrMissingDependency = errors.New("missing required dependency")
	// ErrCycle means the required edges among the requested nodes form a cycle.
	ErrCycle = errors.New("required dependency cycle")
)

// CycleError lists the nodes that could not be ordered because of a required cycle.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// #endregion errors

// #region types
// Declarations supplies the static dependency declarations of each node.
type Declarations interface {
	Dependencies(node string) []string
	OptionalDependencies(node string) []string
}

// Edge is a dependency edge: From must be ordered before To.
type Edge struct {
	From     string
	To       string
	Optional bool
}

// Plan is a resolved update order.
type Plan struct {
	Order   []string // nodes in update order
	Dropped []Edge   // optional edges dropped to break cycles
}

// Resolver orders requested nodes so every dependency precedes its dependents.
// Plans are cached per requested list and depend only on the declarations.
type Resolver struct {
	decls Declarations

	mu    sync.Mutex
	cache map[string]Plan
}

// #endregion types

// #region constructor
// NewResolver creates a resolver over fixed declarations.
func NewResolver(decls Declarations) *Resolver {
	return &Resolver{decls: decls, cache: make(map[string]Plan)}
}

// #endregion constructor

// #region resolve
// Resolve returns the update order for the requested nodes. Ties are broken by
// position in requested (first occurrence wins for duplicates), so equal input
// always yields the same plan.
func (r *Resolver) Resolve(requested []string) (Plan, error) {
	key := strings.Join(requested, "\x00")

	r.mu.Lock()
	if p, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return p.clone(), nil
	}
	r.mu.Unlock()

	p, err := r.resolve(requested)
	if err != nil {
		return Plan{}, err
	}

	r.mu.Lock()
	r.cache[key] = p
	r.mu.Unlock()
	return p.clone(), nil
}

// CacheSize returns the number of distinct requested lists resolved so far.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Resolver) resolve(requested []string) (Plan, error) {
	// Index nodes by first occurrence.
	index := make(map[string]int, len(requested))
	var nodes []string
	for _, n := range requested {
		if _, ok := index[n]; ok {
			continue
		}
		index[n] = len(nodes)
		nodes = append(nodes, n)
	}

	var edges []Edge
	for _, n := range nodes {
		for _, d := range r.decls.Dependencies(n) {
			if _, ok := index[d]; !ok {
				return Plan{}, fmt.Errorf("%s requires %s: %w", n, d, ErrMissingDependency)
			}
			edges = append(edges, Edge{From: d, To: n})
		}
		for _, d := range r.decls.OptionalDependencies(n) {
			if _, ok := index[d]; ok {
				edges = append(edges, Edge{From: d, To: n, Optional: true})
			}
		}
	}

	return order(nodes, index, edges)
}

// #endregion resolve

// #region kahn
// order runs Kahn's algorithm, always emitting the lowest-index ready node.
// When nothing is ready, the pending edges are split into strongly connected
// components and the lowest-index node that sits on a cycle and has no pending
// required predecessor loses the optional in-edges coming from its own
// component. Edges from outside the cycle are never dropped.
func order(nodes []string, index map[string]int, edges []Edge) (Plan, error) {
	n := len(nodes)
	reqIn := make([]int, n)
	optIn := make([]int, n)
	out := make([][]int, n) // node -> indexes into edges
	for i, e := range edges {
		from, to := index[e.From], index[e.To]
		out[from] = append(out[from], i)
		if e.Optional {
			optIn[to]++
		} else {
			reqIn[to]++
		}
	}

	done := make([]bool, n)
	dropped := make([]bool, len(edges))
	var plan Plan
	for len(plan.Order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && reqIn[i] == 0 && optIn[i] == 0 {
				next = i
				break
			}
		}

		if next < 0 {
			cut := breakCycle(nodes, index, edges, out, reqIn, done, dropped)
			if len(cut) == 0 {
				return Plan{}, &CycleError{Nodes: pending(nodes, done)}
			}
			for _, i := range cut {
				dropped[i] = true
				optIn[index[edges[i].To]]--
				plan.Dropped = append(plan.Dropped, edges[i])
			}
			continue
		}

		done[next] = true
		plan.Order = append(plan.Order, nodes[next])
		for _, i := range out[next] {
			e := edges[i]
			to := index[e.To]
			if done[to] || dropped[i] {
				continue
			}
			if e.Optional {
				optIn[to]--
			} else {
				reqIn[to]--
			}
		}
	}
	return plan, nil
}

// breakCycle picks the lowest-index pending node on a cycle with no pending
// required predecessor and returns its optional in-edges from the same
// component, ordered by source index. Empty means only required cycles remain.
func breakCycle(nodes []string, index map[string]int, edges []Edge, out [][]int, reqIn []int, done, dropped []bool) []int {
	comp, cyclic := components(len(nodes), index, edges, out, done, dropped)
	for v := range nodes {
		if done[v] || reqIn[v] != 0 || !cyclic[comp[v]] {
			continue
		}
		var cut []int
		for from, es := range out {
			if done[from] || comp[from] != comp[v] {
				continue
			}
			for _, i := range es {
				if !dropped[i] && edges[i].Optional && index[edges[i].To] == v {
					cut = append(cut, i)
				}
			}
		}
		if len(cut) > 0 {
			sort.SliceStable(cut, func(a, b int) bool { return index[edges[cut[a]].From] < index[edges[cut[b]].From] })
			return cut
		}
	}
	return nil
}

// components labels the pending subgraph with Tarjan's algorithm. cyclic
// reports, per component, whether it holds a cycle (more than one node or a self edge).
func components(n int, index map[string]int, edges []Edge, out [][]int, done, dropped []bool) ([]int, []bool) {
	comp := make([]int, n)
	low := make([]int, n)
	num := make([]int, n)
	onStack := make([]bool, n)
	for i := range comp {
		comp[i], num[i] = -1, -1
	}
	var (
		stack   []int
		counter int
		cyclic  []bool
	)

	var visit func(v int)
	visit = func(v int) {
		num[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		selfEdge := false
		for _, i := range out[v] {
			if dropped[i] {
				continue
			}
			w := index[edges[i].To]
			if done[w] {
				continue
			}
			if w == v {
				selfEdge = true
			}
			if num[w] < 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], num[w])
			}
		}
		if low[v] != num[v] {
			return
		}
		id := len(cyclic)
		size := 0
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp[w] = id
			size++
			if w == v {
				break
			}
		}
		cyclic = append(cyclic, size > 1 || selfEdge)
	}

	for v := 0; v < n; v++ {
		if !done[v] && num[v] < 0 {
			visit(v)
		}
	}
	return comp, cyclic
}

func pending(nodes []string, done []bool) []string {
	var out []string
	for i, n := range nodes {
		if !done[i] {
			out = append(out, n)
		}
	}
	return out
}

func (p Plan) clone() Plan {
	c := Plan{Order: make([]string, len(p.Order))}
	copy(c.Order, p.Order)
	if len(p.Dropped) > 0 {
		c.Dropped = make([]Edge, len(p.Dropped))
		copy(c.Dropped, p.Dropped)
	}
	return c
}

// #endregion kahn

// #region walk
// Dependents returns every node reachable from start along dependency edges
// (nodes that must update after start), in BFS order, limited to requested nodes.
func (r *Resolver) Dependents(start string, requested []string) []string {
	in := make(map[string]bool, len(requested))
	for _, n := range requested {
		in[n] = true
	}
	// Reverse adjacency: dependency -> dependents.
	next := make(map[string][]string)
	for _, n := range requested {
		for _, d := range r.decls.Dependencies(n) {
			next[d] = append(next[d], n)
		}
		for _, d := range r.decls.OptionalDependencies(n) {
			if in[d] {
				next[d] = append(next[d], n)
			}
		}
	}

	var result []string
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, n := range next[current] {
			if visited[n] {
				continue
			}
			visited[n] = true
			result = append(result, n)
			queue = append(queue, n)
		}
	}
	return result
}

// #endregion walk
