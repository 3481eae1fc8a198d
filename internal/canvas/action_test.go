package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{"create", KindCreate},
		{"create_shape", KindCreate},
		{"update_shape", KindUpdate},
		{"move", KindMove},
		{"delete_shape", KindDelete},
		{"connect_shapes", KindConnect},
		{"info", KindMessage},
		{"message", KindMessage},
		{"sparkle", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKind(tt.raw), "raw=%q", tt.raw)
	}
}

func TestFromPayloadCreate(t *testing.T) {
	a, ok := FromPayload(map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{
			"id": "a", "type": "rect", "x": 10.0, "y": 20.0, "label": "box",
		},
	})
	require.True(t, ok)
	assert.Equal(t, KindCreate, a.Kind)
	require.NotNil(t, a.Shape)
	assert.Equal(t, "a", a.Shape.ID)
	assert.Equal(t, "rect", a.Shape.Type)
	assert.Equal(t, 10.0, a.Shape.X)
	assert.Equal(t, "box", a.Shape.Props["label"])
}

func TestFromPayloadShapeRefVariants(t *testing.T) {
	a, ok := FromPayload(map[string]interface{}{"_type": "delete", "shapeId": "b"})
	require.True(t, ok)
	assert.Equal(t, "b", a.ShapeID)

	a, ok = FromPayload(map[string]interface{}{"_type": "move", "id": "c", "x": "5", "y": 7.0})
	require.True(t, ok)
	assert.Equal(t, "c", a.ShapeID)
	assert.Equal(t, 5.0, a.X)
	assert.Equal(t, 7.0, a.Y)
}

func TestFromPayloadConnectAliases(t *testing.T) {
	a, ok := FromPayload(map[string]interface{}{"_type": "connect", "fromId": "a", "toId": "b"})
	require.True(t, ok)
	assert.Equal(t, "a", a.FromID)
	assert.Equal(t, "b", a.ToID)
}

func TestFromPayloadUnknownDiscriminatorKept(t *testing.T) {
	a, ok := FromPayload(map[string]interface{}{"_type": "teleport", "id": "a"})
	require.True(t, ok)
	assert.Equal(t, KindUnknown, a.Kind)
	assert.Equal(t, "teleport", a.Raw["_type"])
}

func TestFromPayloadMissingDiscriminator(t *testing.T) {
	_, ok := FromPayload(map[string]interface{}{"id": "a"})
	assert.False(t, ok)

	_, ok = FromPayload(map[string]interface{}{"_type": ""})
	assert.False(t, ok)
}

func TestActionPayloadPresentationFields(t *testing.T) {
	a, ok := FromPayload(map[string]interface{}{"_type": "message", "text": "hi"})
	require.True(t, ok)
	a.Complete = true
	a.ElapsedMs = 120

	p := a.Payload()
	assert.Equal(t, "message", p["_type"])
	assert.Equal(t, "hi", p["text"])
	assert.Equal(t, true, p["complete"])
	assert.Equal(t, int64(120), p["time"])
}

func TestNewMessage(t *testing.T) {
	a := NewMessage("working on it")
	assert.Equal(t, KindMessage, a.Kind)
	assert.True(t, a.Complete)
	assert.Equal(t, "working on it", a.Payload()["text"])
}

func TestActionRef(t *testing.T) {
	create, _ := FromPayload(map[string]interface{}{
		"_type": "create",
		"shape": map[string]interface{}{"id": "s1"},
	})
	assert.Equal(t, "s1", create.Ref())

	move, _ := FromPayload(map[string]interface{}{"_type": "move", "id": "s2"})
	assert.Equal(t, "s2", move.Ref())

	msg := NewMessage("hi")
	assert.Equal(t, "", msg.Ref())
}
