package sim

import (
	"fmt"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
)

// #region scene
// Scene keeps live objects in creation order.
type Scene struct {
	objects []*objstate.Object
	byName  map[string]*objstate.Object
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{byName: make(map[string]*objstate.Object)}
}

// Add appends obj. Names are unique within a scene.
func (sc *Scene) Add(obj *objstate.Object) error {
	if _, ok := sc.byName[obj.Name()]; ok {
		return fmt.Errorf("add %q: %w", obj.Name(), ErrDuplicateObject)
	}
	sc.objects = append(sc.objects, obj)
	sc.byName[obj.Name()] = obj
	return nil
}

// Remove drops the named object and returns it. Order of the rest is kept.
func (sc *Scene) Remove(name string) (*objstate.Object, bool) {
	obj, ok := sc.byName[name]
	if !ok {
		return nil, false
	}
	delete(sc.byName, name)
	for i, o := range sc.objects {
		if o == obj {
			sc.objects = append(sc.objects[:i], sc.objects[i+1:]...)
			break
		}
	}
	return obj, true
}

// Object looks up an object by name.
func (sc *Scene) Object(name string) (*objstate.Object, bool) {
	obj, ok := sc.byName[name]
	return obj, ok
}

// Objects returns the live objects in creation order.
func (sc *Scene) Objects() []*objstate.Object {
	out := make([]*objstate.Object, len(sc.objects))
	copy(out, sc.objects)
	return out
}

// ObjectsWithState returns, in creation order, the objects owning every given kind.
func (sc *Scene) ObjectsWithState(kinds ...objstate.Kind) []*objstate.Object {
	var out []*objstate.Object
	for _, o := range sc.objects {
		if hasAll(o, kinds) {
			out = append(out, o)
		}
	}
	return out
}

func (sc *Scene) Len() int { return len(sc.objects) }

func hasAll(o *objstate.Object, kinds []objstate.Kind) bool {
	for _, k := range kinds {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// #endregion scene
