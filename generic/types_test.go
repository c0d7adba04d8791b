package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/b2b-engine/generic"
)

func TestMustParseDecimal(t *testing.T) {
	// GIVEN: A valid literal and a typo
	// WHEN: Parsing both
	// THEN: The literal parses exactly and the typo panics instead of becoming zero

	assert.Equal(t, "19.99", generic.MustParseDecimal("19.99").String())
	assert.True(t, generic.MustParseDecimal("-0.5").IsNegative())

	assert.Panics(t, func() { generic.MustParseDecimal("19,99") })
	assert.Panics(t, func() { generic.MustParseDecimal("") })
}
