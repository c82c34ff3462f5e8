package common

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRand(t *testing.T) {
	r := NewRand(rand.New(rand.NewPCG(1, 1)))
	for range 1000 {
		v := r.Uniform(-2, 3)
		assert.GreaterOrEqual(t, v, -2.0)
		assert.Less(t, v, 3.0)

		i := r.IntRange(5, 7)
		assert.GreaterOrEqual(t, i, 5)
		assert.LessOrEqual(t, i, 7)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, r.Perm(4))
	assert.NotNil(t, NewRand(nil))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.2351, 2))
	assert.Equal(t, -0.3, Round(-0.26, 1))
	assert.Equal(t, 100.0, Round(99.96, 1))
}
