package wakehash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSipHash13_DeterministicForSameKeyAndInput(t *testing.T) {
	key := SipKey{K0: 1, K1: 2}
	data := []byte("term:RApp(0,1)")

	assert.Equal(t, SipHash13(key, data), SipHash13(key, data))
}

func TestSipHash13_DifferentKeysDiverge(t *testing.T) {
	data := []byte("same payload")
	h1 := SipHash13(SipKey{K0: 1, K1: 2}, data)
	h2 := SipHash13(SipKey{K0: 3, K1: 4}, data)
	assert.NotEqual(t, h1, h2)
}

func TestSipHash13_HandlesNonMultipleOf8Length(t *testing.T) {
	key := SipKey{K0: 7, K1: 9}
	for n := 0; n < 20; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		// must not panic on any tail length, and must stay deterministic
		assert.Equal(t, SipHash13(key, data), SipHash13(key, data))
	}
}

func TestSipHash13_DifferentLengthsDiverge(t *testing.T) {
	key := SipKey{K0: 1, K1: 1}
	a := SipHash13(key, []byte("a"))
	b := SipHash13(key, []byte("aa"))
	assert.NotEqual(t, a, b)
}
