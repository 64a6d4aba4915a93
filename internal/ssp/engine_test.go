package ssp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestMemoryEngine_Lifecycle(t *testing.T) {
	e := NewMemoryEngine()

	h, err := e.Create(ir.TernaryU, 4, 100)
	require.NoError(t, err)

	p, err := e.Attach(h)
	require.NoError(t, err)
	fill(p, 3)

	require.NoError(t, e.Step(h))
	assert.Equal(t, uint64(1), p.Step())

	snap, err := e.FieldRO(h)
	require.NoError(t, err)
	snap[0] = 99
	assert.Equal(t, 3.0, p.Field()[0], "FieldRO returns a snapshot, not the backing field")

	require.NoError(t, e.Destroy(h))
	_, err = e.Attach(h)
	assert.Error(t, err)
	assert.Error(t, e.Destroy(h))
}

func TestMemoryEngine_SetOutputBuffer(t *testing.T) {
	e := NewMemoryEngine()
	h, err := e.Create(ir.TernaryU, 2, 100)
	require.NoError(t, err)

	buf := []float64{7, 7}
	require.NoError(t, e.SetOutputBuffer(h, buf))

	p, err := e.Attach(h)
	require.NoError(t, err)
	p.Field()[0] = 1
	assert.Equal(t, 1.0, buf[0], "host buffer is the backing storage")

	assert.Error(t, e.SetOutputBuffer(h, []float64{1}), "length mismatch")
}

func TestMemoryEngine_CreateValidation(t *testing.T) {
	e := NewMemoryEngine()
	_, err := e.Create(ir.TernaryU, 0, 100)
	assert.Error(t, err)
}
