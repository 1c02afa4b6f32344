package humanize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "0B", Format(0))
	assert.Equal(t, "1023B", Format(1023))
	assert.Equal(t, "1.00KB", Format(1024))
	assert.Equal(t, "1.50MB", Format(1024*1024*3/2))
	assert.Equal(t, "2.00GB", Format(2*1024*1024*1024))
}
