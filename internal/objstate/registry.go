package objstate

import (
	"errors"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/graph"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region options
// Options parameterizes online state construction.
type Options struct {
	MaxParticles int // particle bound of each water source stream
}

// DefaultOptions returns the defaults used by the simulator.
func DefaultOptions() Options {
	return Options{MaxParticles: 10}
}

// #endregion options

// #region descriptor
// Descriptor is the static entry of one kind: its dependency declarations and
// constructors. The offline constructor is the shared Dummy.
type Descriptor struct {
	Kind                 Kind
	Dependencies         []Kind
	OptionalDependencies []Kind

	New     func(owner Owner, opts Options) State
	Accepts func(v any) bool               // value type check, used by Dummy
	Decode  func(data []byte) (any, error) // JSON decoding of a stored value
}

// #endregion descriptor

// #region registry
// Registry maps kind names to descriptors. Build it before use; it is read-only afterwards.
type Registry struct {
	opts     Options
	kinds    map[Kind]Descriptor
	order    []Kind
	resolver *graph.Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{opts: opts, kinds: make(map[Kind]Descriptor)}
	r.resolver = graph.NewResolver(declarations{r})
	return r
}

// DefaultRegistry returns a registry holding every built-in kind.
func DefaultRegistry(opts Options) *Registry {
	r := NewRegistry(opts)
	for _, d := range builtinDescriptors() {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinDescriptors() []Descriptor {
	isPose := func(v any) bool { _, ok := v.(physics.Pose); return ok }
	isAABB := func(v any) bool { _, ok := v.(physics.AABB); return ok }
	isContacts := func(v any) bool { _, ok := v.(ContactSet); return ok }
	isBool := func(v any) bool { _, ok := v.(bool); return ok }
	isFlow := func(v any) bool { _, ok := v.(WaterFlow); return ok }

	return []Descriptor{
		{Kind: KindPose, New: newPose, Accepts: isPose, Decode: decodePose},
		{Kind: KindAABB, OptionalDependencies: []Kind{KindPose}, New: newAABB, Accepts: isAABB, Decode: decodeAABB},
		{Kind: KindContactBodies, New: newContactBodies, Accepts: isContacts, Decode: decodeContactSet},
		{Kind: KindToggledOn, New: newToggledOn, Accepts: isBool, Decode: decodeBool},
		{Kind: KindSoaked, Dependencies: []Kind{KindContactBodies}, New: newSoaked, Accepts: isBool, Decode: decodeBool},
		{
			Kind:                 KindWaterSource,
			Dependencies:         []Kind{KindContactBodies},
			OptionalDependencies: []Kind{KindToggledOn},
			New:                  newWaterSource,
			Accepts:              isFlow,
			Decode:               decodeWaterFlow,
		},
	}
}

// Register adds a kind. Registering invalidates previously resolved orders.
func (r *Registry) Register(d Descriptor) error {
	if d.Kind == "" || d.New == nil {
		return &ConfigError{Kind: d.Kind, Reason: "descriptor needs a kind and a constructor"}
	}
	if _, ok := r.kinds[d.Kind]; ok {
		return &ConfigError{Kind: d.Kind, Reason: "kind registered twice"}
	}
	r.kinds[d.Kind] = d
	r.order = append(r.order, d.Kind)
	r.resolver = graph.NewResolver(declarations{r})
	return nil
}

// Descriptor returns the entry for a kind.
func (r *Registry) Descriptor(kind Kind) (Descriptor, bool) {
	d, ok := r.kinds[kind]
	return d, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Dependencies returns the required dependencies declared for kind.
func (r *Registry) Dependencies(kind Kind) []Kind { return r.kinds[kind].Dependencies }

// OptionalDependencies returns the optional dependencies declared for kind.
func (r *Registry) OptionalDependencies(kind Kind) []Kind {
	return r.kinds[kind].OptionalDependencies
}

// #endregion registry

// #region factory
// NewState instantiates the online variant of kind, or its dummy when online is false.
func (r *Registry) NewState(kind Kind, owner Owner, online bool) (State, error) {
	d, ok := r.kinds[kind]
	if !ok {
		return nil, &ConfigError{Object: owner.Name(), Kind: kind, Reason: "unknown state kind"}
	}
	if !online {
		return newDummy(d, owner), nil
	}
	return d.New(owner, r.opts), nil
}

// Resolve returns the update order for the requested kinds.
func (r *Registry) Resolve(kinds []Kind) ([]Kind, []graph.Edge, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		if _, ok := r.kinds[k]; !ok {
			return nil, nil, &ConfigError{Kind: k, Reason: "unknown state kind"}
		}
		names[i] = string(k)
	}
	plan, err := r.resolver.Resolve(names)
	if err != nil {
		reason := "unresolvable dependencies"
		if errors.Is(err, graph.ErrMissingDependency) {
			reason = "missing required dependency"
		}
		return nil, nil, &ConfigError{Reason: reason, Err: err}
	}
	order := make([]Kind, len(plan.Order))
	for i, n := range plan.Order {
		order[i] = Kind(n)
	}
	return order, plan.Dropped, nil
}

// Dependents lists the requested kinds that update after kind because they
// depend on it, directly or transitively, nearest first.
func (r *Registry) Dependents(kind Kind, requested []Kind) []Kind {
	var out []Kind
	for _, n := range r.resolver.Dependents(string(kind), kindNames(requested)) {
		out = append(out, Kind(n))
	}
	return out
}

// ObjectSpec describes an object to construct.
type ObjectSpec struct {
	Name   string
	Body   physics.BodyID
	Kinds  []Kind
	Online bool
	Baked  map[Kind]any // seed values for offline states
}

// NewObject validates the requested kinds, resolves their update order and
// instantiates every state. Any configuration error aborts construction.
func (r *Registry) NewObject(spec ObjectSpec) (*Object, error) {
	order, dropped, err := r.Resolve(spec.Kinds)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Object = spec.Name
		}
		return nil, err
	}

	obj := &Object{
		name:    spec.Name,
		body:    spec.Body,
		online:  spec.Online,
		states:  make(map[Kind]State, len(order)),
		order:   order,
		dropped: dropped,
	}
	for _, k := range order {
		s, err := r.NewState(k, obj, spec.Online)
		if err != nil {
			return nil, err
		}
		obj.states[k] = s
	}

	if !spec.Online {
		for _, k := range order {
			v, ok := spec.Baked[k]
			if !ok {
				continue
			}
			if err := obj.states[k].SetValue(v); err != nil {
				return nil, &ConfigError{Object: spec.Name, Kind: k, Reason: "bad baked value", Err: err}
			}
		}
	}
	return obj, nil
}

// #endregion factory

// #region declarations
type declarations struct{ r *Registry }

func (d declarations) Dependencies(node string) []string {
	return kindNames(d.r.kinds[Kind(node)].Dependencies)
}

func (d declarations) OptionalDependencies(node string) []string {
	return kindNames(d.r.kinds[Kind(node)].OptionalDependencies)
}

func kindNames(ks []Kind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}

// #endregion declarations
