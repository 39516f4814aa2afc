package objstate

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region contact-set
// ContactBody is the other side of a contact: a body and the link that was touched.
type ContactBody struct {
	Body physics.BodyID
	Link physics.LinkID
}

// ContactSet is the set of bodies/links in contact with an object. Treat as read-only.
type ContactSet map[ContactBody]struct{}

// NewContactSet builds a set from its members.
func NewContactSet(members ...ContactBody) ContactSet {
	s := make(ContactSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s ContactSet) Has(c ContactBody) bool {
	_, ok := s[c]
	return ok
}

// Bodies returns the distinct body ids in the set.
func (s ContactSet) Bodies() map[physics.BodyID]bool {
	out := make(map[physics.BodyID]bool, len(s))
	for c := range s {
		out[c.Body] = true
	}
	return out
}

// Sorted returns the members ordered by body then link.
func (s ContactSet) Sorted() []ContactBody {
	out := make([]ContactBody, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Body != out[j].Body {
			return out[i].Body < out[j].Body
		}
		return out[i].Link < out[j].Link
	})
	return out
}

// #endregion contact-set

// #region contact-bodies
// ContactBodies is the set of bodies touching the owner. It is derived only;
// SetValue always fails.
type ContactBodies struct {
	base
	body  physics.BodyID
	value ContactSet
}

func newContactBodies(owner Owner, _ Options) State {
	return &ContactBodies{
		base: newBase(KindContactBodies, owner, true),
		body: owner.BodyID(),
	}
}

func (s *ContactBodies) Update(sim Simulator) {
	s.touch(sim)
	points, err := sim.Backend().ContactPoints(s.body)
	if err != nil {
		s.transient(err)
		return
	}
	set := make(ContactSet, len(points))
	for _, p := range points {
		set[ContactBody{Body: p.BodyB, Link: p.LinkB}] = struct{}{}
	}
	s.value = set
}

func (s *ContactBodies) Value() any {
	if s.value == nil {
		return nil
	}
	return s.value
}

func (s *ContactBodies) SetValue(v any) error {
	return fmt.Errorf("contact_bodies does not support setting: %w", ErrUnsupportedOperation)
}

// #endregion contact-bodies

// contactBodyIDs returns the body ids in owner's contact_bodies value, or nil.
func contactBodyIDs(owner Owner) map[physics.BodyID]bool {
	s, ok := owner.State(KindContactBodies)
	if !ok {
		return nil
	}
	set, ok := ValueAs[ContactSet](s)
	if !ok {
		return nil
	}
	return set.Bodies()
}
