// Package identity computes the duplicate-detection key for contacts and a
// pairwise similarity score for manual dedup review.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"twym/internal/contacts/models"
)

// hashSeparator joins the normalized identity parts. Fixed so hashes stay
// stable across releases.
const hashSeparator = "|"

// NormalizeName lowercases and strips every non-alphanumeric rune, so
// "Dr. Jane O'Neil " and "jane oneil" normalize identically.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail lowercases and trims surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything that is not a digit, including interior
// spaces and formatting characters.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hash derives the contact identity hash from a (name, email, phone)
// triple. Formatting noise never changes the result: the inputs are
// normalized first and the non-empty parts joined with a fixed separator
// before digesting.
//
// When all three normalized parts are empty the function returns a random
// 16-byte hex token instead of the digest of an empty string, so contacts
// with zero identifying information never collide into a false duplicate.
func Hash(name, email, phone string) string {
	parts := make([]string, 0, 3)
	if n := NormalizeName(name); n != "" {
		parts = append(parts, n)
	}
	if e := NormalizeEmail(email); e != "" {
		parts = append(parts, e)
	}
	if p := NormalizePhone(phone); p != "" {
		parts = append(parts, p)
	}

	if len(parts) == 0 {
		token := make([]byte, 16)
		_, _ = rand.Read(token)
		return hex.EncodeToString(token)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, hashSeparator)))
	return hex.EncodeToString(sum[:])
}

// HashContact computes the identity hash from a contact's name, first
// email, and first phone.
func HashContact(c *models.Contact) string {
	return Hash(c.Name, c.PrimaryEmail(), c.PrimaryPhone())
}

// Similarity scores how alike two contacts look, comparing only the fields
// present on both sides after normalization:
//
//   - email: exact match counts 1
//   - phone: exact match counts 1
//   - name: exact match counts 1, substring match counts 0.5
//
// The result is matches/comparisons in [0,1]. Zero comparable fields yields
// 0, not an error. The creation path never calls this; it exists for
// manual duplicate review.
func Similarity(a, b *models.Contact) float64 {
	var matches, comparisons float64

	if ae, be := NormalizeEmail(a.PrimaryEmail()), NormalizeEmail(b.PrimaryEmail()); ae != "" && be != "" {
		comparisons++
		if ae == be {
			matches++
		}
	}

	if ap, bp := NormalizePhone(a.PrimaryPhone()), NormalizePhone(b.PrimaryPhone()); ap != "" && bp != "" {
		comparisons++
		if ap == bp {
			matches++
		}
	}

	if an, bn := NormalizeName(a.Name), NormalizeName(b.Name); an != "" && bn != "" {
		comparisons++
		switch {
		case an == bn:
			matches++
		case strings.Contains(an, bn) || strings.Contains(bn, an):
			matches += 0.5
		}
	}

	if comparisons == 0 {
		return 0
	}
	return matches / comparisons
}
