package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelay(t *testing.T) {
	r := NewRelay()
	_, ok := r.Pull()
	assert.False(t, ok)

	var signals int
	r.SetNotify(func() { signals++ })
	r.Push([]byte{1})
	r.Push([]byte{2})

	f, ok := r.Pull()
	assert.True(t, ok)
	assert.Equal(t, []byte{2}, f.Data)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, 2, signals)

	r.Clear()
	_, ok = r.Pull()
	assert.False(t, ok)
	r.Push([]byte{3})
	assert.Equal(t, 2, signals)
}
