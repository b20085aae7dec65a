package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHours(t *testing.T) {
	assert.Equal(t, 48.0, RoundHours(48))
	assert.Equal(t, 1.5, RoundHours(1.5))
	assert.Equal(t, 2.34, RoundHours(2.344))
	assert.Equal(t, 2.35, RoundHours(2.346))
	assert.Equal(t, 0.33, RoundHours(1.0/3.0))
	assert.Equal(t, 0.0, RoundHours(0.004))
}
