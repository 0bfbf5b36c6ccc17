package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("gob")
	assert.False(t, ok)
}

func TestCodecsAreWireCompatible(t *testing.T) {
	type payload struct {
		ID        string    `json:"id"`
		Embedding []float32 `json:"embedding"`
	}

	in := payload{ID: "a", Embedding: []float32{1, 0, 0.001}}

	data, err := (JSON{}).Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, (GoJSON{}).Unmarshal(data, &out))
	assert.Equal(t, in, out)

	data, err = (GoJSON{}).Marshal(in)
	require.NoError(t, err)

	out = payload{}
	require.NoError(t, (JSON{}).Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
