package sim

import (
	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
)

// #region soak
// propagateSoak marks soakable objects wet when their contacts include an
// active particle of any water source. Sources are visited in creation order,
// and soakables in creation order within each source. Soaked is sticky.
// Returns the number of objects that became soaked this tick.
func (s *Simulator) propagateSoak() int {
	sources := s.scene.ObjectsWithState(objstate.KindWaterSource)
	if len(sources) == 0 {
		return 0
	}
	soakables := s.scene.ObjectsWithState(objstate.KindSoaked, objstate.KindContactBodies)

	newly := 0
	for _, src := range sources {
		ws, _ := src.State(objstate.KindWaterSource)
		flow, ok := objstate.ValueAs[objstate.WaterFlow](ws)
		if !ok || len(flow.Particles) == 0 {
			continue
		}
		drops := flow.ParticleBodies()

		for _, obj := range soakables {
			soaked, _ := obj.State(objstate.KindSoaked)
			if wet, _ := soaked.Value().(bool); wet {
				continue
			}
			cb, _ := obj.State(objstate.KindContactBodies)
			contacts, ok := objstate.ValueAs[objstate.ContactSet](cb)
			if !ok {
				continue
			}
			for body := range contacts.Bodies() {
				if drops[body] {
					if err := soaked.SetValue(true); err == nil {
						newly++
					}
					break
				}
			}
		}
	}
	return newly
}

// #endregion soak
