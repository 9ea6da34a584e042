package epdq

import (
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign computes the SHASIGN over the given parameters: keys are uppercased,
// sorted alphabetically, and each non-empty KEY=value pair is suffixed with
// the shared passphrase before hashing. The digest is uppercase hex.
func Sign(params url.Values, passphrase string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.EqualFold(k, shaSignField) {
			continue
		}
		if params.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToUpper(keys[i]) < strings.ToUpper(keys[j])
	})

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(strings.ToUpper(k))
		b.WriteString("=")
		b.WriteString(params.Get(k))
		b.WriteString(passphrase)
	}

	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifySignature recomputes the SHASIGN over the received fields, excluding
// the signature field itself, and compares case-insensitively.
func VerifySignature(params url.Values, passphrase string) bool {
	received := params.Get(shaSignField)
	if received == "" {
		return false
	}
	return strings.EqualFold(Sign(params, passphrase), received)
}
