package extract

import "regexp"

var (
	panRe     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarRe = regexp.MustCompile(`^[2-9][0-9]{11}$`)
	gstinRe   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	ifscRe    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

// ValidPAN checks the 10-character permanent account number format.
func ValidPAN(s string) bool { return panRe.MatchString(s) }

// ValidIFSC checks the 11-character bank branch code format. The fifth
// character is always zero.
func ValidIFSC(s string) bool { return ifscRe.MatchString(s) }

// Verhoeff checksum tables. Aadhaar's final digit is a Verhoeff check over
// the first eleven.
var (
	verhoeffD = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
)

// ValidAadhaar checks the 12-digit Aadhaar number: correct shape (first
// digit 2-9) and a passing Verhoeff checksum.
func ValidAadhaar(s string) bool {
	if !aadhaarRe.MatchString(s) {
		return false
	}
	c := 0
	for i := 0; i < len(s); i++ {
		// Digits are processed right to left.
		d := int(s[len(s)-1-i] - '0')
		c = verhoeffD[c][verhoeffP[i%8][d]]
	}
	return c == 0
}

const gstinCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ValidGSTIN checks the 15-character GST identification number: structural
// format plus the base-36 check digit over the first fourteen characters.
func ValidGSTIN(s string) bool {
	if !gstinRe.MatchString(s) {
		return false
	}
	hash := 0
	factor := 1
	for i := 0; i < 14; i++ {
		code := gstinValue(s[i])
		if code < 0 {
			return false
		}
		prod := code * factor
		hash += prod/36 + prod%36
		if factor == 1 {
			factor = 2
		} else {
			factor = 1
		}
	}
	check := (36 - hash%36) % 36
	return s[14] == gstinCharset[check]
}

func gstinValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return -1
	}
}
