// Package idgen generates operation IDs and bearer tokens backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// OpPrefix is prepended to operation IDs. Every event written by one ledger
// operation carries the same operation ID.
const OpPrefix = "op-"

// TokenPrefix is prepended to generated bearer tokens.
const TokenPrefix = "vtk_"

// Alphabet defines the character set used for the random portion of an ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	opLength    = 12
	tokenLength = 40
)

// OpID returns a new operation ID such as "op-3kTMd92jfaLq".
func OpID() (string, error) {
	return generate(OpPrefix, opLength)
}

// Token returns a new random bearer token for a keyring entry.
func Token() (string, error) {
	return generate(TokenPrefix, tokenLength)
}

func generate(prefix string, n int) (string, error) {
	id, err := nanoid.Generate(Alphabet, n)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
