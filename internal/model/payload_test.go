package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_MarshalKeepsColumnOrder(t *testing.T) {
	p := NewPayload([]string{"Zip", "Address", "Price"}, []string{"60607", "1 <W> Loop & Co", "450000"})

	b, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"Zip":"60607","Address":"1 <W> Loop & Co","Price":"450000"}`, string(b))

	var back Payload
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, p, back)
}

func TestPayload_UnmarshalNonStringValues(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"beds":3,"garage":true,"note":null}`), &p))
	assert.Equal(t, Payload{{"beds", "3"}, {"garage", "true"}, {"note", ""}}, p)
}

func TestPayload_UnmarshalRejectsArray(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`["a"]`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload: expected object")
}

func TestPayload_SetGetBlank(t *testing.T) {
	p := NewPayload([]string{"a", "b"}, []string{" ", ""})
	assert.True(t, p.Blank())

	p.Set("b", "West Loop")
	p.Set("c", "Exposed Brick")
	v, ok := p.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "Exposed Brick", v)
	assert.False(t, p.Blank())
	assert.Equal(t, "  west loop exposed brick", p.SearchText())
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())
}

func TestNewPayload_PadsShortRecords(t *testing.T) {
	p := NewPayload([]string{"a", "b", "c"}, []string{"1"})
	assert.Equal(t, []string{"1", "", ""}, p.Values())
}
