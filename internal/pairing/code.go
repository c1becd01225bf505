package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// CodePrefix starts every invite code.
	CodePrefix = "COUPLE-"
	// CodeAlphabet is the 36-symbol set the random part is drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

var codePattern = regexp.MustCompile(`^COUPLE-[A-Z0-9]{6}$`)

// GenerateCode returns a fresh invite code such as COUPLE-7KQ2ZD.
func GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(len(CodePrefix) + codeLength)
	b.WriteString(CodePrefix)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random invite code: %w", err)
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode trims and uppercases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is well formed after normalization.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
