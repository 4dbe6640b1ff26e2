package usftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocIsFirstFitAboveOffset(t *testing.T) {
	var r requestRegistry
	req1 := r.allocAndInsert(nil)
	req2 := r.allocAndInsert(nil)
	req3 := r.allocAndInsert(nil)

	assert.EqualValues(t, requestIDOffset, req1.id)
	assert.EqualValues(t, requestIDOffset+1, req2.id)
	assert.EqualValues(t, requestIDOffset+2, req3.id)
	assert.Equal(t, 3, r.count())

	// freeing the middle id makes it the next one allocated
	removed, ok := r.remove(req2.id)
	require.True(t, ok)
	assert.Same(t, req2, removed)

	req4 := r.allocAndInsert(nil)
	assert.Equal(t, req2.id, req4.id)
}

func TestRegistryFindByID(t *testing.T) {
	var r requestRegistry
	req := r.allocAndInsert("payload")
	found, ok := r.findByID(req.id)
	require.True(t, ok)
	assert.Equal(t, "payload", found.userdata)

	_, ok = r.findByID(req.id + 1)
	assert.False(t, ok)
}

func TestRegistryRemoveUnknown(t *testing.T) {
	var r requestRegistry
	r.allocAndInsert(nil)
	_, ok := r.remove(999999)
	assert.False(t, ok)
}

func TestRegistryIndexOrdering(t *testing.T) {
	var r requestRegistry
	ids := []uint32{}
	for i := 0; i < 5; i++ {
		ids = append(ids, r.allocAndInsert(nil).id)
	}
	for i := 0; i < r.count(); i++ {
		assert.Equal(t, ids[i], r.index(i).id)
	}
}
