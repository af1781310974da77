package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitNonEmpty(t *testing.T) {
	assert.Nil(t, splitNonEmpty(""))
	assert.Equal(t, []string{"a", "b"}, splitNonEmpty("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitNonEmpty(" a ,, b ,"), "parts are trimmed and empties skipped")
}
