package reporting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWithoutDSN(t *testing.T) {
	Init("", "test")
	assert.False(t, Enabled())
	assert.NotPanics(t, func() {
		CaptureError(errors.New("not reported"))
		PanicListener("not reported")
	})
}
