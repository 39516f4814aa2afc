package objstate

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/graph"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region fakes
type fakeSim struct {
	backend   physics.Backend
	particles physics.ParticleSystem
	tick      int64
}

func (s *fakeSim) Backend() physics.Backend          { return s.backend }
func (s *fakeSim) Particles() physics.ParticleSystem { return s.particles }
func (s *fakeSim) Tick() int64                       { return s.tick }

// tickOnce advances the world and updates obj the way the stepper does.
func (s *fakeSim) tickOnce(t *testing.T, objs ...*Object) {
	t.Helper()
	require.NoError(t, s.backend.Step())
	s.tick++
	for _, o := range objs {
		o.Update(s)
	}
}

// failingBackend reports errors for every query and counts calls.
type failingBackend struct {
	calls int
}

var errDown = errors.New("backend down")

func (b *failingBackend) Step() error { return nil }
func (b *failingBackend) ContactPoints(physics.BodyID) ([]physics.ContactPoint, error) {
	b.calls++
	return nil, errDown
}
func (b *failingBackend) LinkWorldPose(physics.BodyID, string) (physics.Pose, bool, error) {
	b.calls++
	return physics.Pose{}, false, errDown
}
func (b *failingBackend) BodyPose(physics.BodyID) (physics.Pose, bool, error) {
	b.calls++
	return physics.Pose{}, false, errDown
}
func (b *failingBackend) BodyAABB(physics.BodyID) (physics.AABB, bool, error) {
	b.calls++
	return physics.AABB{}, false, errDown
}

func newWorldSim() (*physics.World, *fakeSim) {
	cfg := physics.DefaultWorldConfig()
	cfg.TimeStep = 0.1
	w := physics.NewWorld(cfg)
	return w, &fakeSim{backend: w, particles: w}
}

func mustObject(t *testing.T, r *Registry, spec ObjectSpec) *Object {
	t.Helper()
	obj, err := r.NewObject(spec)
	require.NoError(t, err)
	return obj
}

// #endregion fakes

// #region registry-tests
func TestNewState_UnknownKind(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "cup", Body: 1, Kinds: []Kind{KindPose}, Online: true})
	_, err := r.NewState("temperature", obj, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestNewState_OnlineAndOfflineVariants(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "cup", Body: 1, Kinds: []Kind{KindContactBodies}, Online: true})

	online, err := r.NewState(KindContactBodies, obj, true)
	require.NoError(t, err)
	assert.IsType(t, &ContactBodies{}, online)
	assert.True(t, online.Online())

	offline, err := r.NewState(KindContactBodies, obj, false)
	require.NoError(t, err)
	assert.IsType(t, &Dummy{}, offline)
	assert.False(t, offline.Online())
	assert.Equal(t, KindContactBodies, offline.Kind())
}

func TestNewObject_UnknownKind(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	_, err := r.NewObject(ObjectSpec{Name: "cup", Kinds: []Kind{KindPose, "sliced"}, Online: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), `"cup"`)
}

func TestNewObject_MissingRequiredDependency(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	_, err := r.NewObject(ObjectSpec{Name: "sponge", Kinds: []Kind{KindSoaked}, Online: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, graph.ErrMissingDependency))
}

func TestNewObject_RequiredCycle(t *testing.T) {
	r := NewRegistry(DefaultOptions())
	require.NoError(t, r.Register(Descriptor{Kind: "a", Dependencies: []Kind{"b"}, New: newToggledOn}))
	require.NoError(t, r.Register(Descriptor{Kind: "b", Dependencies: []Kind{"a"}, New: newToggledOn}))

	_, err := r.NewObject(ObjectSpec{Name: "loop", Kinds: []Kind{"a", "b"}, Online: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, graph.ErrCycle))
}

func TestRegister_Duplicate(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	err := r.Register(Descriptor{Kind: KindPose, New: newPose})
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestNewObject_ResolvedOrders(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	a := mustObject(t, r, ObjectSpec{Name: "A", Body: 1, Kinds: []Kind{KindContactBodies}, Online: true})
	b := mustObject(t, r, ObjectSpec{Name: "B", Body: 2, Kinds: []Kind{KindPose, KindAABB, KindContactBodies}, Online: true})
	c := mustObject(t, r, ObjectSpec{Name: "C", Body: 3, Kinds: []Kind{KindAABB, KindContactBodies, KindPose}, Online: true})

	assert.Equal(t, []Kind{KindContactBodies}, a.Order())
	assert.Equal(t, []Kind{KindPose, KindAABB, KindContactBodies}, b.Order())
	assert.Equal(t, []Kind{KindContactBodies, KindPose, KindAABB}, c.Order())
	assert.Empty(t, c.DroppedEdges())
}

func TestRegistry_Dependents(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	kinds := []Kind{KindWaterSource, KindSoaked, KindToggledOn, KindContactBodies}

	assert.Equal(t, []Kind{KindWaterSource, KindSoaked}, r.Dependents(KindContactBodies, kinds))
	assert.Equal(t, []Kind{KindWaterSource}, r.Dependents(KindToggledOn, kinds))
	assert.Empty(t, r.Dependents(KindSoaked, kinds))
	// toggled_on is optional, so water_source no longer follows it once it is not requested.
	assert.Empty(t, r.Dependents(KindToggledOn, []Kind{KindWaterSource, KindContactBodies}))
}

// #endregion registry-tests

// #region contact-tests
func TestContactBodies_SetValueUnsupported(t *testing.T) {
	w, sim := newWorldSim()
	cup := w.AddBody(physics.BodySpec{HalfExtents: mgl64.Vec3{1, 1, 1}})
	plate := w.AddBody(physics.BodySpec{Position: mgl64.Vec3{1.5, 0, 0}, HalfExtents: mgl64.Vec3{1, 1, 1}})
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "cup", Body: cup, Kinds: []Kind{KindContactBodies}, Online: true})

	sim.tickOnce(t, obj)
	s, _ := obj.State(KindContactBodies)
	before, ok := ValueAs[ContactSet](s)
	require.True(t, ok)
	assert.True(t, before.Has(ContactBody{Body: plate, Link: physics.BaseLink}))

	err := s.SetValue(NewContactSet())
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	after, _ := ValueAs[ContactSet](s)
	assert.Equal(t, before, after)
}

func TestContactBodies_TransientErrorKeepsValue(t *testing.T) {
	w, sim := newWorldSim()
	cup := w.AddBody(physics.BodySpec{HalfExtents: mgl64.Vec3{1, 1, 1}})
	w.AddBody(physics.BodySpec{Position: mgl64.Vec3{1.5, 0, 0}, HalfExtents: mgl64.Vec3{1, 1, 1}})
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "cup", Body: cup, Kinds: []Kind{KindContactBodies}, Online: true})
	sim.tickOnce(t, obj)
	before, _ := obj.Value(KindContactBodies)

	sim.backend = &failingBackend{}
	sim.tickOnce(t, obj)
	after, _ := obj.Value(KindContactBodies)
	assert.Equal(t, before, after)
	s, _ := obj.State(KindContactBodies)
	assert.Equal(t, int64(2), s.UpdatedAt())
}

// #endregion contact-tests

// #region pose-tests
func TestPose_AbsentBodyIsNoop(t *testing.T) {
	w, sim := newWorldSim()
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "ghost", Body: 7, Kinds: []Kind{KindPose, KindAABB}, Online: true})

	s, _ := obj.State(KindPose)
	assert.Equal(t, int64(-1), s.UpdatedAt())
	sim.tickOnce(t, obj)
	assert.Nil(t, s.Value())
	assert.Equal(t, int64(1), s.UpdatedAt())

	id := w.AddBody(physics.BodySpec{Position: mgl64.Vec3{1, 2, 3}, HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}})
	require.Equal(t, physics.BodyID(1), id)
	obj2 := mustObject(t, r, ObjectSpec{Name: "real", Body: id, Kinds: []Kind{KindPose, KindAABB}, Online: true})
	sim.tickOnce(t, obj2)
	pose, ok := ValueAs[physics.Pose](mustState(t, obj2, KindPose))
	require.True(t, ok)
	assert.True(t, pose.Position.ApproxEqual(mgl64.Vec3{1, 2, 3}))
	box, ok := ValueAs[physics.AABB](mustState(t, obj2, KindAABB))
	require.True(t, ok)
	assert.True(t, box.Min.ApproxEqual(mgl64.Vec3{0.5, 1.5, 2.5}))
}

func TestPose_SetValueTypeChecked(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "cup", Body: 1, Kinds: []Kind{KindPose}, Online: true})
	s := mustState(t, obj, KindPose)
	assert.True(t, errors.Is(s.SetValue(true), ErrValueType))
	require.NoError(t, s.SetValue(physics.IdentityPose()))
	assert.Equal(t, physics.IdentityPose(), s.Value())
}

func mustState(t *testing.T, obj *Object, k Kind) State {
	t.Helper()
	s, ok := obj.State(k)
	require.True(t, ok, "object %s has no %s", obj.Name(), k)
	return s
}

// #endregion pose-tests

// #region water-tests
func sinkSpec(links map[string]mgl64.Vec3) physics.BodySpec {
	return physics.BodySpec{
		Name:        "sink",
		HalfExtents: mgl64.Vec3{1, 1, 0.2},
		Links:       links,
	}
}

func TestWaterSource_NoLinkIsNoop(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(nil))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: sink, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})

	sim.tickOnce(t, obj)
	ws := mustState(t, obj, KindWaterSource).(*WaterSource)
	_, has := ws.Stream()
	assert.False(t, has)
	assert.Nil(t, ws.Value())
	assert.Equal(t, 0, w.StreamCount())
}

func TestWaterSource_LazyStreamCreatedOnce(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(nil))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: sink, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})
	ws := mustState(t, obj, KindWaterSource).(*WaterSource)

	sim.tickOnce(t, obj)
	require.NoError(t, w.AddLink(sink, WaterSourceLink, mgl64.Vec3{0, 0, 0.5}))
	sim.tickOnce(t, obj)
	first, has := ws.Stream()
	require.True(t, has)

	sim.tickOnce(t, obj)
	second, _ := ws.Stream()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, w.StreamCount())
}

func TestWaterSource_DefaultsToFlowing(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(map[string]mgl64.Vec3{WaterSourceLink: {0, 0, 0.5}}))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: sink, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})

	sim.tickOnce(t, obj)
	flow, ok := ValueAs[WaterFlow](mustState(t, obj, KindWaterSource))
	require.True(t, ok)
	assert.True(t, flow.Flowing)
	assert.Len(t, flow.Particles, 1)
}

func TestWaterSource_MirrorsToggledOn(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(map[string]mgl64.Vec3{WaterSourceLink: {0, 0, 0.5}}))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{
		Name:   "sink",
		Body:   sink,
		Kinds:  []Kind{KindWaterSource, KindContactBodies, KindToggledOn},
		Online: true,
	})
	assert.Equal(t, []Kind{KindContactBodies, KindToggledOn, KindWaterSource}, obj.Order())

	sim.tickOnce(t, obj)
	flow, _ := ValueAs[WaterFlow](mustState(t, obj, KindWaterSource))
	assert.False(t, flow.Flowing)
	assert.Empty(t, flow.Particles)

	require.NoError(t, mustState(t, obj, KindToggledOn).SetValue(true))
	sim.tickOnce(t, obj)
	flow, _ = ValueAs[WaterFlow](mustState(t, obj, KindWaterSource))
	assert.True(t, flow.Flowing)
	assert.Len(t, flow.Particles, 1)
}

func TestWaterSource_ParticleReuseExactlyOnce(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(map[string]mgl64.Vec3{WaterSourceLink: {0, 0, 0.5}}))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: sink, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})
	ws := mustState(t, obj, KindWaterSource).(*WaterSource)

	// Particle 1 is emitted on tick 1 and lands on the sink during tick 3.
	for i := 0; i < 3; i++ {
		sim.tickOnce(t, obj)
	}
	id, _ := ws.Stream()
	assert.Equal(t, []int{1}, w.Pool(id))
	flow, _ := ValueAs[WaterFlow](ws)
	for _, p := range flow.Particles {
		assert.NotEqual(t, 1, p.ID, "stashed particle must not stay active")
	}

	// Tick 4 reuses particle 1 and stashes particle 2; nothing is pooled twice.
	sim.tickOnce(t, obj)
	assert.Equal(t, []int{2}, w.Pool(id))

	for i := 0; i < 20; i++ {
		sim.tickOnce(t, obj)
		pool := w.Pool(id)
		seen := map[int]bool{}
		for _, pid := range pool {
			assert.False(t, seen[pid], "particle %d pooled twice", pid)
			seen[pid] = true
		}
		ps, _ := w.Particles(id)
		assert.LessOrEqual(t, len(ps)+len(pool), DefaultOptions().MaxParticles)
	}
}

func TestWaterSource_CloseDestroysStream(t *testing.T) {
	w, sim := newWorldSim()
	sink := w.AddBody(sinkSpec(map[string]mgl64.Vec3{WaterSourceLink: {0, 0, 0.5}}))
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: sink, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})
	sim.tickOnce(t, obj)
	require.Equal(t, 1, w.StreamCount())

	require.NoError(t, obj.Close())
	assert.Equal(t, 0, w.StreamCount())
	require.NoError(t, obj.Close())
}

func TestWaterSource_SetValueUnsupported(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	obj := mustObject(t, r, ObjectSpec{Name: "sink", Body: 1, Kinds: []Kind{KindWaterSource, KindContactBodies}, Online: true})
	err := mustState(t, obj, KindWaterSource).SetValue(WaterFlow{Flowing: true})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
}

// #endregion water-tests

// #region offline-tests
func TestOfflineObject_NeverQueriesBackend(t *testing.T) {
	backend := &failingBackend{}
	sim := &fakeSim{backend: backend}
	r := DefaultRegistry(DefaultOptions())
	baked := physics.Pose{Position: mgl64.Vec3{4, 5, 6}, Orientation: mgl64.QuatIdent()}
	obj := mustObject(t, r, ObjectSpec{
		Name:   "cached",
		Body:   3,
		Kinds:  []Kind{KindPose, KindAABB, KindContactBodies, KindSoaked},
		Online: false,
		Baked:  map[Kind]any{KindPose: baked, KindSoaked: true},
	})

	for i := 0; i < 3; i++ {
		sim.tickOnce(t, obj)
	}
	assert.Equal(t, 0, backend.calls)
	assert.Equal(t, baked, mustState(t, obj, KindPose).Value())
	assert.Equal(t, true, mustState(t, obj, KindSoaked).Value())
	assert.Nil(t, mustState(t, obj, KindAABB).Value())
	assert.Equal(t, []Kind{KindPose, KindAABB, KindContactBodies, KindSoaked}, obj.Order())
}

func TestOfflineObject_BadBakedValue(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	_, err := r.NewObject(ObjectSpec{
		Name:  "cached",
		Kinds: []Kind{KindPose},
		Baked: map[Kind]any{KindPose: "not a pose"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, ErrValueType))
}

// #endregion offline-tests

// #region codec-tests
func TestEncodeValue_ContactSetSorted(t *testing.T) {
	a := NewContactSet(ContactBody{Body: 9, Link: -1}, ContactBody{Body: 2, Link: 3}, ContactBody{Body: 2, Link: -1})
	data, err := EncodeValue(a)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"body":2,"link":-1},{"body":2,"link":3},{"body":9,"link":-1}]`, string(data))

	r := DefaultRegistry(DefaultOptions())
	back, err := r.DecodeValue(KindContactBodies, data)
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestEncodeValue_PoseAndNull(t *testing.T) {
	r := DefaultRegistry(DefaultOptions())
	p := physics.Pose{Position: mgl64.Vec3{1, 2, 3}, Orientation: mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1})}
	data, err := EncodeValue(p)
	require.NoError(t, err)
	back, err := r.DecodeValue(KindPose, data)
	require.NoError(t, err)
	assert.True(t, p.ApproxEqual(back.(physics.Pose)))

	null, err := EncodeValue(nil)
	require.NoError(t, err)
	v, err := r.DecodeValue(KindPose, null)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = EncodeValue(struct{}{})
	assert.True(t, errors.Is(err, ErrValueType))
}

// #endregion codec-tests
