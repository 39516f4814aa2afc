package objstate

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region wire-types
type poseJSON struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"` // w, x, y, z
}

type aabbJSON struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type contactJSON struct {
	Body int `json:"body"`
	Link int `json:"link"`
}

type particleJSON struct {
	ID       int        `json:"id"`
	Body     int        `json:"body"`
	Position [3]float64 `json:"position"`
}

type flowJSON struct {
	Flowing   bool           `json:"flowing"`
	Particles []particleJSON `json:"particles"`
}

// #endregion wire-types

// #region encode
// EncodeValue renders a state value as JSON. Absent values encode as null.
// Contact sets are sorted so equal values always encode identically.
func EncodeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		return json.Marshal(val)
	case physics.Pose:
		return json.Marshal(toPoseJSON(val))
	case physics.AABB:
		return json.Marshal(aabbJSON{Min: val.Min, Max: val.Max})
	case ContactSet:
		sorted := val.Sorted()
		out := make([]contactJSON, len(sorted))
		for i, c := range sorted {
			out[i] = contactJSON{Body: int(c.Body), Link: int(c.Link)}
		}
		return json.Marshal(out)
	case WaterFlow:
		f := flowJSON{Flowing: val.Flowing, Particles: make([]particleJSON, len(val.Particles))}
		for i, p := range val.Particles {
			f.Particles[i] = particleJSON{ID: p.ID, Body: int(p.Body), Position: p.Position}
		}
		return json.Marshal(f)
	default:
		return nil, fmt.Errorf("encode %T: %w", v, ErrValueType)
	}
}

func toPoseJSON(p physics.Pose) poseJSON {
	q := p.Orientation
	return poseJSON{Position: p.Position, Orientation: [4]float64{q.W, q.V[0], q.V[1], q.V[2]}}
}

// #endregion encode

// #region decode
// DecodeValue parses a stored value of kind.
func (r *Registry) DecodeValue(kind Kind, data []byte) (any, error) {
	d, ok := r.kinds[kind]
	if !ok {
		return nil, &ConfigError{Kind: kind, Reason: "unknown state kind"}
	}
	if string(data) == "null" || len(data) == 0 {
		return nil, nil
	}
	v, err := d.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return v, nil
}

func decodePose(data []byte) (any, error) {
	var p poseJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	o := p.Orientation
	return physics.Pose{
		Position:    mgl64.Vec3(p.Position),
		Orientation: mgl64.Quat{W: o[0], V: mgl64.Vec3{o[1], o[2], o[3]}},
	}, nil
}

func decodeAABB(data []byte) (any, error) {
	var b aabbJSON
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return physics.AABB{Min: b.Min, Max: b.Max}, nil
}

func decodeContactSet(data []byte) (any, error) {
	var cs []contactJSON
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, err
	}
	set := make(ContactSet, len(cs))
	for _, c := range cs {
		set[ContactBody{Body: physics.BodyID(c.Body), Link: physics.LinkID(c.Link)}] = struct{}{}
	}
	return set, nil
}

func decodeBool(data []byte) (any, error) {
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeWaterFlow(data []byte) (any, error) {
	var f flowJSON
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	flow := WaterFlow{Flowing: f.Flowing, Particles: make([]physics.Particle, len(f.Particles))}
	for i, p := range f.Particles {
		flow.Particles[i] = physics.Particle{ID: p.ID, Body: physics.BodyID(p.Body), Position: p.Position}
	}
	return flow, nil
}

// #endregion decode
