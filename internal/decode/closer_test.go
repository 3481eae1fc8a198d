package decode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseAndParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]interface{}
		ok   bool
	}{
		{
			name: "already closed",
			in:   `{"a":1}`,
			want: map[string]interface{}{"a": 1.0},
			ok:   true,
		},
		{
			name: "open object",
			in:   `{"a":1`,
			want: map[string]interface{}{"a": 1.0},
			ok:   true,
		},
		{
			name: "open string value",
			in:   `{"a":"hel`,
			want: map[string]interface{}{"a": "hel"},
			ok:   true,
		},
		{
			name: "dangling colon gets placeholder",
			in:   `{"x":1,"y":`,
			want: map[string]interface{}{"x": 1.0, "y": 0.0},
			ok:   true,
		},
		{
			name: "dangling key gets placeholder",
			in:   `{"x":1,"y`,
			want: map[string]interface{}{"x": 1.0, "y": 0.0},
			ok:   true,
		},
		{
			name: "trailing comma elided",
			in:   `{"x":1,`,
			want: map[string]interface{}{"x": 1.0},
			ok:   true,
		},
		{
			name: "nested open structures",
			in:   `{"shape":{"id":"a","pts":[1,2`,
			want: map[string]interface{}{
				"shape": map[string]interface{}{"id": "a", "pts": []interface{}{1.0, 2.0}},
			},
			ok: true,
		},
		{
			name: "string ending in escape",
			in:   `{"a":"x\`,
			want: map[string]interface{}{"a": "x\\"},
			ok:   true,
		},
		{
			name: "value cut mid token",
			in:   `{"a":tru`,
			ok:   false,
		},
		{
			name: "empty buffer",
			in:   ``,
			ok:   false,
		},
		{
			name: "prose only",
			in:   `not json`,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CloseAndParse(tt.in)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCloseAndParseIdempotent(t *testing.T) {
	in := `{"_type":"move","id":"a","x":5`
	first, ok1 := CloseAndParse(in)
	second, ok2 := CloseAndParse(in)
	assert.Equal(t, ok1, ok2)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated calls diverged (-first +second):\n%s", diff)
	}
	// The input string itself is immutable in Go, but the repair must also
	// not depend on hidden state.
	third, _ := CloseAndParse(in)
	assert.Equal(t, first, third)
}

func TestCloseJSONClosedBufferUnchanged(t *testing.T) {
	in := `{"a":{"b":[1,2]},"c":"x"}`
	out, ok := closeJSON(in)
	require.True(t, ok)
	assert.Equal(t, in, out)
}
