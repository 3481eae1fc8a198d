package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAction(t *testing.T, m map[string]interface{}) Action {
	t.Helper()
	a, ok := FromPayload(m)
	require.True(t, ok)
	a.Complete = true
	return a
}

func TestSnapshotCreateUpdateMoveDelete(t *testing.T) {
	s := NewSnapshot(nil)

	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{"id": "a", "type": "rect", "x": 1.0, "y": 2.0},
	}))
	require.Equal(t, 1, s.Len())

	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "update", "id": "a",
		"patch": map[string]interface{}{"x": 9.0, "label": "box"},
	}))
	sh, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 9.0, sh.X)
	assert.Equal(t, 2.0, sh.Y)
	assert.Equal(t, "box", sh.Props["label"])

	s.Apply(mustAction(t, map[string]interface{}{"_type": "move", "id": "a", "x": 30.0, "y": 40.0}))
	sh, _ = s.Get("a")
	assert.Equal(t, 30.0, sh.X)
	assert.Equal(t, 40.0, sh.Y)

	s.Apply(mustAction(t, map[string]interface{}{"_type": "delete", "id": "a"}))
	assert.Equal(t, 0, s.Len())
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestSnapshotUnknownTargetsIgnored(t *testing.T) {
	s := NewSnapshot([]Shape{{ID: "a"}})

	s.Apply(mustAction(t, map[string]interface{}{"_type": "move", "id": "ghost", "x": 1.0}))
	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "update", "id": "ghost",
		"patch": map[string]interface{}{"x": 1.0},
	}))
	s.Apply(mustAction(t, map[string]interface{}{"_type": "delete", "id": "ghost"}))
	assert.Equal(t, 1, s.Len())
}

func TestSnapshotConnectAndMessageNoop(t *testing.T) {
	s := NewSnapshot([]Shape{{ID: "a"}, {ID: "b"}})
	s.Apply(mustAction(t, map[string]interface{}{"_type": "connect", "from": "a", "to": "b"}))
	s.Apply(NewMessage("hello"))
	assert.Equal(t, 2, s.Len())
}

func TestSnapshotInsertionOrder(t *testing.T) {
	s := NewSnapshot(nil)
	for _, id := range []string{"c", "a", "b"} {
		s.Apply(mustAction(t, map[string]interface{}{
			"_type": "create",
			"shape": map[string]interface{}{"id": id},
		}))
	}

	var got []string
	for _, sh := range s.Shapes() {
		got = append(got, sh.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, s.IDs())
}

func TestSnapshotCreateOverwritesInPlace(t *testing.T) {
	s := NewSnapshot(nil)
	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{"id": "a", "x": 1.0},
	}))
	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{"id": "b"},
	}))
	s.Apply(mustAction(t, map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{"id": "a", "x": 7.0},
	}))

	assert.Equal(t, 2, s.Len())
	sh, _ := s.Get("a")
	assert.Equal(t, 7.0, sh.X)
	var order []string
	for _, sh := range s.Shapes() {
		order = append(order, sh.ID)
	}
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestDedupeContextItems(t *testing.T) {
	items := []ContextItem{
		{"id": "a", "note": "first"},
		{"id": "b"},
		{"id": "a", "note": "dup by id"},
		{"kind": "area", "x": 1.0},
		{"kind": "area", "x": 1.0},
	}
	got := DedupeContextItems(items)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0]["id"])
	assert.Equal(t, "b", got[1]["id"])
	assert.Equal(t, "area", got[2]["kind"])
}

func TestShapePayloadRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"id": "a", "type": "ellipse", "x": 3.0, "y": 4.0, "fill": "red",
	}
	sh := ShapeFromPayload(in)
	out := sh.Payload()
	assert.Equal(t, in, out)
}
