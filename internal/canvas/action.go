package canvas

// Action is the discriminated union of canvas mutations and informational
// events emitted by the pipeline. The wire discriminator is the "_type"
// field; unknown discriminators decode to KindUnknown rather than being
// dropped, so downstream consumers can see (and log) what the model invented.
//
// An Action is immutable once emitted. Complete is false while the action is
// still being streamed and true once finalized; the preview and final
// emission of one logical action are the same action for ordering purposes.

// Kind identifies one action variant.
type Kind string

const (
	KindCreate  Kind = "create"
	KindUpdate  Kind = "update"
	KindMove    Kind = "move"
	KindDelete  Kind = "delete"
	KindConnect Kind = "connect"
	KindMessage Kind = "message"
	KindUnknown Kind = "unknown"
)

// kindAliases maps every discriminator value the generation backend has been
// observed to emit onto the closed Kind set.
var kindAliases = map[string]Kind{
	"create":         KindCreate,
	"create_shape":   KindCreate,
	"update":         KindUpdate,
	"update_shape":   KindUpdate,
	"move":           KindMove,
	"move_shape":     KindMove,
	"delete":         KindDelete,
	"delete_shape":   KindDelete,
	"connect":        KindConnect,
	"connect_shapes": KindConnect,
	"message":        KindMessage,
	"info":           KindMessage,
}

// NormalizeKind maps a raw "_type" value to a Kind, KindUnknown when the
// value is not part of the closed set.
func NormalizeKind(raw string) Kind {
	if k, ok := kindAliases[raw]; ok {
		return k
	}
	return KindUnknown
}

// Action is one decoded action. Variant-specific fields are populated
// according to Kind; Raw always holds the original payload so unknown
// variants and extra fields survive the round trip to the client.
type Action struct {
	Kind Kind

	Shape   *Shape                 // create
	ShapeID string                 // update, move, delete
	Patch   map[string]interface{} // update
	X, Y    float64                // move
	FromID  string                 // connect
	ToID    string                 // connect
	Text    string                 // message

	Raw map[string]interface{}

	Complete  bool
	ElapsedMs int64
}

// FromPayload validates a decoded JSON object as an action. It returns
// ok=false only when the object carries no "_type" discriminator at all;
// an unrecognized discriminator still yields an action, with KindUnknown.
func FromPayload(m map[string]interface{}) (Action, bool) {
	rawKind, present := m["_type"]
	kindStr := ExtractString(rawKind)
	if !present || kindStr == "" {
		return Action{}, false
	}

	a := Action{Kind: NormalizeKind(kindStr), Raw: m}
	switch a.Kind {
	case KindCreate:
		if sm, ok := ExtractMap(m["shape"]); ok {
			s := ShapeFromPayload(sm)
			a.Shape = &s
		}
	case KindUpdate:
		a.ShapeID = shapeRef(m)
		if pm, ok := ExtractMap(m["patch"]); ok {
			a.Patch = pm
		} else if pm, ok := ExtractMap(m["props"]); ok {
			a.Patch = pm
		}
	case KindMove:
		a.ShapeID = shapeRef(m)
		a.X, _ = ExtractFloat64(m["x"])
		a.Y, _ = ExtractFloat64(m["y"])
	case KindDelete:
		a.ShapeID = shapeRef(m)
	case KindConnect:
		a.FromID = ExtractString(m["from"])
		if a.FromID == "" {
			a.FromID = ExtractString(m["fromId"])
		}
		a.ToID = ExtractString(m["to"])
		if a.ToID == "" {
			a.ToID = ExtractString(m["toId"])
		}
	case KindMessage:
		a.Text = ExtractString(m["text"])
		if a.Text == "" {
			a.Text = ExtractString(m["message"])
		}
	}
	return a, true
}

// shapeRef resolves the target shape reference of update/move/delete
// payloads, which the backend emits as either "id" or "shapeId".
func shapeRef(m map[string]interface{}) string {
	if id := ExtractString(m["id"]); id != "" {
		return id
	}
	return ExtractString(m["shapeId"])
}

// NewMessage builds an informational message action synthesized by the
// engine itself (plan notices, empty-task notes, error surfacing).
func NewMessage(text string) Action {
	return Action{
		Kind:     KindMessage,
		Text:     text,
		Raw:      map[string]interface{}{"_type": string(KindMessage), "text": text},
		Complete: true,
	}
}

// Payload renders the action for the client channel: the original payload
// plus the presentation fields complete and time.
func (a Action) Payload() map[string]interface{} {
	out := make(map[string]interface{}, len(a.Raw)+2)
	for k, v := range a.Raw {
		out[k] = v
	}
	if _, ok := out["_type"]; !ok {
		out["_type"] = string(a.Kind)
	}
	out["complete"] = a.Complete
	out["time"] = a.ElapsedMs
	return out
}

// Ref returns the shape id this action targets, empty for variants that do
// not reference one.
func (a Action) Ref() string {
	switch a.Kind {
	case KindCreate:
		if a.Shape != nil {
			return a.Shape.ID
		}
	case KindUpdate, KindMove, KindDelete:
		return a.ShapeID
	}
	return ""
}
