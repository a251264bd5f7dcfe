package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	assert.Equal(t, Fingerprint("some content"), Fingerprint("some content"))
	assert.NotEqual(t, Fingerprint("some content"), Fingerprint("other content"))
}

func TestFingerprintKnownVector(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Fingerprint("hello"),
	)
}

func TestFingerprintShape(t *testing.T) {
	digest := Fingerprint("")
	assert.Len(t, digest, 64)
	for _, r := range digest {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "digest must be lowercase hex")
	}
}
