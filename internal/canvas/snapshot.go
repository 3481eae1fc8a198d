package canvas

import "sort"

// Snapshot is the controller's running view of the shapes the client knows
// about. It mirrors what the client will apply: the controller feeds every
// finalized action through Apply so later tasks and the verification pass
// see the same canvas the user does.
//
// Snapshot is not safe for concurrent use; the session controller owns it
// and mutates it only on its own turn loop.
type Snapshot struct {
	order  []string
	shapes map[string]Shape
}

// NewSnapshot builds a snapshot seeded with already-known shapes.
func NewSnapshot(seed []Shape) *Snapshot {
	s := &Snapshot{shapes: make(map[string]Shape, len(seed))}
	for _, sh := range seed {
		s.put(sh)
	}
	return s
}

func (s *Snapshot) put(sh Shape) {
	if sh.ID == "" {
		return
	}
	if _, exists := s.shapes[sh.ID]; !exists {
		s.order = append(s.order, sh.ID)
	}
	s.shapes[sh.ID] = sh
}

// Apply folds one finalized action into the snapshot using the variant's
// mutation rule: create appends, update patches, move repositions, delete
// removes. Connect and message leave the shape set untouched (connectors are
// rendered client-side). Unknown actions are ignored.
func (s *Snapshot) Apply(a Action) {
	switch a.Kind {
	case KindCreate:
		if a.Shape != nil {
			s.put(*a.Shape)
		}
	case KindUpdate:
		sh, ok := s.shapes[a.ShapeID]
		if !ok {
			return
		}
		for k, v := range a.Patch {
			switch k {
			case "x":
				if x, ok := ExtractFloat64(v); ok {
					sh.X = x
				}
			case "y":
				if y, ok := ExtractFloat64(v); ok {
					sh.Y = y
				}
			case "type":
				sh.Type = ExtractString(v)
			default:
				if sh.Props == nil {
					sh.Props = make(map[string]interface{})
				}
				sh.Props[k] = v
			}
		}
		s.shapes[a.ShapeID] = sh
	case KindMove:
		sh, ok := s.shapes[a.ShapeID]
		if !ok {
			return
		}
		sh.X, sh.Y = a.X, a.Y
		s.shapes[a.ShapeID] = sh
	case KindDelete:
		if _, ok := s.shapes[a.ShapeID]; ok {
			delete(s.shapes, a.ShapeID)
			for i, id := range s.order {
				if id == a.ShapeID {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		}
	}
}

// Shapes returns the current shapes in insertion order. The returned slice
// is a copy; callers may hold it across further mutations.
func (s *Snapshot) Shapes() []Shape {
	out := make([]Shape, 0, len(s.order))
	for _, id := range s.order {
		if sh, ok := s.shapes[id]; ok {
			out = append(out, sh)
		}
	}
	return out
}

// Get looks up one shape by id.
func (s *Snapshot) Get(id string) (Shape, bool) {
	sh, ok := s.shapes[id]
	return sh, ok
}

// Len reports the number of shapes currently known.
func (s *Snapshot) Len() int {
	return len(s.shapes)
}

// IDs returns the known shape ids, sorted, for stable prompt rendering.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.shapes))
	for id := range s.shapes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
