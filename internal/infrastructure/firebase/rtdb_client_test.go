package firebase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChildIDFormat(t *testing.T) {
	c := &RTDBClient{}
	ctx := context.Background()

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := c.NewChildID(ctx, "messages/c1")
		require.NoError(t, err)
		assert.Len(t, id, 20)
		assert.False(t, seen[id], id)
		seen[id] = true
		// Ids generated by one client sort in generation order.
		assert.Greater(t, id, prev)
		prev = id
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestApplyStreamEventPut(t *testing.T) {
	var mirror interface{}

	// The initial put carries the whole subtree at "/".
	mirror = applyStreamEvent(mirror, streamEvent{
		Path: "/",
		Data: mustJSON(t, map[string]interface{}{"i1": map[string]interface{}{"title": "Bike"}}),
	}, false)

	// A deeper put replaces only its node.
	mirror = applyStreamEvent(mirror, streamEvent{
		Path: "/i1/title",
		Data: mustJSON(t, "Sofa"),
	}, false)

	tree := mirror.(map[string]interface{})
	assert.Equal(t, "Sofa", tree["i1"].(map[string]interface{})["title"])
}

func TestApplyStreamEventNullDeletes(t *testing.T) {
	var mirror interface{}
	mirror = applyStreamEvent(mirror, streamEvent{
		Path: "/",
		Data: mustJSON(t, map[string]interface{}{"i1": "x", "i2": "y"}),
	}, false)

	mirror = applyStreamEvent(mirror, streamEvent{Path: "/i1", Data: json.RawMessage("null")}, false)
	tree := mirror.(map[string]interface{})
	assert.NotContains(t, tree, "i1")
	assert.Contains(t, tree, "i2")

	// Deleting the last child empties the mirror entirely.
	mirror = applyStreamEvent(mirror, streamEvent{Path: "/i2", Data: json.RawMessage("null")}, false)
	assert.Nil(t, mirror)
}

func TestApplyStreamEventPatchMergesChildren(t *testing.T) {
	var mirror interface{}
	mirror = applyStreamEvent(mirror, streamEvent{
		Path: "/",
		Data: mustJSON(t, map[string]interface{}{"a": "1", "b": "2"}),
	}, false)

	mirror = applyStreamEvent(mirror, streamEvent{
		Path: "/",
		Data: mustJSON(t, map[string]interface{}{"b": "20", "c": "3"}),
	}, true)

	tree := mirror.(map[string]interface{})
	assert.Equal(t, "1", tree["a"])
	assert.Equal(t, "20", tree["b"])
	assert.Equal(t, "3", tree["c"])
}
