package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumStable(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	assert.Equal(t, a, b)

	// Known SHA-256 of "hello".
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", a)
}

func TestSumDistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Sum([]byte("hello")), Sum([]byte("hello ")))
}

func TestSumStringMatchesBytes(t *testing.T) {
	assert.Equal(t, Sum([]byte("héllo")), SumString("héllo"))
}

func TestSumEmpty(t *testing.T) {
	assert.Len(t, Sum(nil), 64)
	assert.Equal(t, Sum(nil), Sum([]byte{}))
}
