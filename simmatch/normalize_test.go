package simmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ABC 123", NormalizeText("  ＡＢＣ　１２３\r "))
	assert.Equal(t, "line1\nline2", NormalizeText("line1\nline2\x07"))
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, headerKey("D\u00e9crire votre id\u00e9e"), headerKey("\ufeffDe\u0301crire  votre\nid\u00e9e\n"))
	assert.Equal(t, "issue key", headerKey(" Issue   KEY "))
}
