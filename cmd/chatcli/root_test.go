package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3,4", " 5", "6,"})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 4, 5, 6}, ids)

	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)

	_, err = parseIDs([]string{"abc"})
	assert.Error(t, err)

	_, err = parseIDs(nil)
	assert.Error(t, err)
}
