package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPAN(t *testing.T) {
	assert.True(t, ValidPAN("ABCDE1234F"))
	assert.False(t, ValidPAN("ABCD51234F"), "digit in name block")
	assert.False(t, ValidPAN("ABCDE12345"), "digit in check position")
	assert.False(t, ValidPAN("ABCDE1234FX"), "too long")
	assert.False(t, ValidPAN("abcde1234f"), "lowercase")
}

func TestValidAadhaar(t *testing.T) {
	assert.True(t, ValidAadhaar("234567890124"))

	assert.False(t, ValidAadhaar("234567890123"), "wrong check digit")
	assert.False(t, ValidAadhaar("134567890124"), "leading digit below 2")
	assert.False(t, ValidAadhaar("23456789012"), "eleven digits")
	assert.False(t, ValidAadhaar("2345678901244"), "thirteen digits")
	assert.False(t, ValidAadhaar("23456789012x"), "non-digit")
}

func TestValidGSTIN(t *testing.T) {
	assert.True(t, ValidGSTIN("27ABCDE1234F1Z0"))

	assert.False(t, ValidGSTIN("27ABCDE1234F1Z1"), "wrong check digit")
	assert.False(t, ValidGSTIN("27ABCDE1234F1Y0"), "fourteenth char must be Z")
	assert.False(t, ValidGSTIN("7ABCDE1234F1Z0"), "too short")
	assert.False(t, ValidGSTIN("27ABCDE1234F0Z0"), "entity code zero")
}

func TestValidIFSC(t *testing.T) {
	assert.True(t, ValidIFSC("HDFC0001234"))
	assert.True(t, ValidIFSC("SBIN0ABC123"))
	assert.False(t, ValidIFSC("HDFC1001234"), "fifth char must be zero")
	assert.False(t, ValidIFSC("HDF00001234"), "bank code too short")
	assert.False(t, ValidIFSC("HDFC000123"), "too short")
}
