package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{ProductID: "p1", Required: 3, Available: 2}
	assert.EqualError(t, err, "insufficient stock for product p1: need 3, have 2")
}
