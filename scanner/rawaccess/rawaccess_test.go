package rawaccess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	devices, err := Check()
	if err != nil {
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Empty(t, devices)
		return
	}
	assert.NotEmpty(t, devices)
}
