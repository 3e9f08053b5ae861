package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashDeterminism(t *testing.T) {
	a := Object{"uid": Object{"value": String("c1")}, "magnitude": MustNumber("37.50")}
	b := Object{"magnitude": MustNumber("37.5"), "uid": Object{"value": String("c1")}}

	ha, err := ContentHash(DomainComposition, a)
	require.NoError(t, err)
	hb, err := ContentHash(DomainComposition, b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "key order and decimal scale must not change the hash")
	assert.Len(t, ha, 64, "SHA-256 hex is 64 characters")
}

func TestContentHashDomainSeparation(t *testing.T) {
	v := Object{"x": Int(1)}

	hc, err := ContentHash(DomainComposition, v)
	require.NoError(t, err)
	he, err := ContentHash(DomainEHR, v)
	require.NoError(t, err)

	assert.NotEqual(t, hc, he)
}

func TestQueryFingerprintIgnoresLayout(t *testing.T) {
	a := QueryFingerprint("SELECT e/ehr_id/value as uid FROM EHR e")
	b := QueryFingerprint("SELECT e/ehr_id/value as uid\n  FROM EHR e  ")
	c := QueryFingerprint("SELECT e/ehr_id/value FROM EHR e")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
