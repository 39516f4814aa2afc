package remote

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// Messages are google.protobuf.Struct values with these fields:
//
//	body request:     {body}
//	link request:     {body, link}
//	pose reply:       {found, position[3], orientation[w,x,y,z]}
//	aabb reply:       {found, min[3], max[3]}
//	contacts reply:   {contacts: [{body_a, body_b, link_a, link_b, position[3], distance}]}

// #region encode
func bodyRequest(id physics.BodyID) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"body": structpb.NewNumberValue(float64(id)),
	}}
}

func linkRequest(id physics.BodyID, link string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"body": structpb.NewNumberValue(float64(id)),
		"link": structpb.NewStringValue(link),
	}}
}

func vecValue(v mgl64.Vec3) *structpb.Value {
	return structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
		structpb.NewNumberValue(v[0]),
		structpb.NewNumberValue(v[1]),
		structpb.NewNumberValue(v[2]),
	}})
}

func poseReply(p physics.Pose, found bool) *structpb.Struct {
	q := p.Orientation
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"found":    structpb.NewBoolValue(found),
		"position": vecValue(p.Position),
		"orientation": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewNumberValue(q.W),
			structpb.NewNumberValue(q.V[0]),
			structpb.NewNumberValue(q.V[1]),
			structpb.NewNumberValue(q.V[2]),
		}}),
	}}
}

func aabbReply(b physics.AABB, found bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"found": structpb.NewBoolValue(found),
		"min":   vecValue(b.Min),
		"max":   vecValue(b.Max),
	}}
}

func contactsReply(points []physics.ContactPoint) *structpb.Struct {
	vals := make([]*structpb.Value, len(points))
	for i, p := range points {
		vals[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"body_a":   structpb.NewNumberValue(float64(p.BodyA)),
			"body_b":   structpb.NewNumberValue(float64(p.BodyB)),
			"link_a":   structpb.NewNumberValue(float64(p.LinkA)),
			"link_b":   structpb.NewNumberValue(float64(p.LinkB)),
			"position": vecValue(p.Position),
			"distance": structpb.NewNumberValue(p.Distance),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"contacts": structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}
}
// #endregion encode

// #region decode
func bodyField(s *structpb.Struct) (physics.BodyID, error) {
	v, ok := s.GetFields()["body"]
	if !ok {
		return 0, fmt.Errorf("missing body field")
	}
	return physics.BodyID(v.GetNumberValue()), nil
}

func numbers(v *structpb.Value, n int, field string) ([]float64, error) {
	list := v.GetListValue().GetValues()
	if len(list) != n {
		return nil, fmt.Errorf("%s: want %d numbers, got %d", field, n, len(list))
	}
	out := make([]float64, n)
	for i, x := range list {
		out[i] = x.GetNumberValue()
	}
	return out, nil
}

func vecField(s *structpb.Struct, field string) (mgl64.Vec3, error) {
	xs, err := numbers(s.GetFields()[field], 3, field)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{xs[0], xs[1], xs[2]}, nil
}

func decodePose(s *structpb.Struct) (physics.Pose, bool, error) {
	if !s.GetFields()["found"].GetBoolValue() {
		return physics.Pose{}, false, nil
	}
	pos, err := vecField(s, "position")
	if err != nil {
		return physics.Pose{}, false, err
	}
	q, err := numbers(s.GetFields()["orientation"], 4, "orientation")
	if err != nil {
		return physics.Pose{}, false, err
	}
	return physics.Pose{Position: pos, Orientation: mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}}, true, nil
}

func decodeAABB(s *structpb.Struct) (physics.AABB, bool, error) {
	if !s.GetFields()["found"].GetBoolValue() {
		return physics.AABB{}, false, nil
	}
	lo, err := vecField(s, "min")
	if err != nil {
		return physics.AABB{}, false, err
	}
	hi, err := vecField(s, "max")
	if err != nil {
		return physics.AABB{}, false, err
	}
	return physics.AABB{Min: lo, Max: hi}, true, nil
}

func decodeContacts(s *structpb.Struct) ([]physics.ContactPoint, error) {
	list := s.GetFields()["contacts"].GetListValue().GetValues()
	out := make([]physics.ContactPoint, 0, len(list))
	for i, v := range list {
		c := v.GetStructValue()
		if c == nil {
			return nil, fmt.Errorf("contact %d: not a struct", i)
		}
		f := c.GetFields()
		pos, err := vecField(c, "position")
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", i, err)
		}
		out = append(out, physics.ContactPoint{
			BodyA:    physics.BodyID(f["body_a"].GetNumberValue()),
			BodyB:    physics.BodyID(f["body_b"].GetNumberValue()),
			LinkA:    physics.LinkID(f["link_a"].GetNumberValue()),
			LinkB:    physics.LinkID(f["link_b"].GetNumberValue()),
			Position: pos,
			Distance: f["distance"].GetNumberValue(),
		})
	}
	return out, nil
}
// #endregion decode
