package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", SHA256([]byte("abc")))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01", Short(SHA256([]byte("abc"))))
	assert.Equal(t, "abc", Short("abc"))
}
