package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseType(t *testing.T) {
	for _, typ := range allTypes {
		got, ok := ParseType(typ.String())
		assert.True(t, ok, typ.String())
		assert.Equal(t, typ, got)
	}

	got, ok := ParseType("15")
	assert.True(t, ok)
	assert.Equal(t, TypeGameRotationVector, got)

	for _, s := range []string{"", "barometer", "3", "Gyroscope"} {
		_, ok := ParseType(s)
		assert.False(t, ok, s)
	}
	assert.Equal(t, "type(42)", Type(42).String())
}
