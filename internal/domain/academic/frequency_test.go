package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFrequency(t *testing.T) {
	f := NewFrequency(6, 2, 1, 1)
	assert.Equal(t, 10, f.Total())
	assert.Equal(t, 2, f.Absences())
	assert.Equal(t, 80.0, f.Percentage)

	assert.Equal(t, 100.0, NewFrequency(0, 0, 0, 0).Percentage)
	assert.Equal(t, 66.67, NewFrequency(2, 1, 0, 0).Percentage)
}
