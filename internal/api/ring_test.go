package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingSnapshotBeforeWrap(t *testing.T) {
	r := newRing(3)
	r.push(1)
	r.push(2)
	assert.Equal(t, []interface{}{1, 2}, r.snapshot())
}

func TestRingSnapshotAfterWrapIsOldestFirst(t *testing.T) {
	r := newRing(3)
	r.push(1)
	r.push(2)
	r.push(3)
	r.push(4)
	assert.Equal(t, []interface{}{2, 3, 4}, r.snapshot())
}

func TestRingEmptySnapshot(t *testing.T) {
	r := newRing(3)
	assert.Empty(t, r.snapshot())
}
