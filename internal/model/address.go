package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account on the ledger: a beneficiary, the
// administrator, the custody account, or any token holder.
// Addresses are stored normalized: "0x" followed by 40 lowercase hex digits.
type Address string

// ZeroAddress is the null identity. It never owns a schedule, never receives
// tokens, and cannot become the administrator.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes s. The "0x" prefix is optional on
// input; hex digits may be in any case.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != 40 {
		return "", fmt.Errorf("invalid address %q: want 40 hex digits, got %d", s, len(raw))
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address("0x" + strings.ToLower(raw)), nil
}

// MustParseAddress is ParseAddress for constants and tests. It panics on
// malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the string representation of the address.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether a is the null identity. The empty string counts as
// null so zero-value records behave like on-chain defaults.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// IsValid reports whether a is in normalized form.
func (a Address) IsValid() bool {
	n, err := ParseAddress(string(a))
	return err == nil && n == a
}

// Short abbreviates the address for table output, e.g. "0x70997970…79c8".
func (a Address) Short() string {
	s := string(a)
	if len(s) < 14 {
		return s
	}
	return s[:10] + "…" + s[len(s)-4:]
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Input is normalized;
// an empty string decodes to the empty (unset) address.
func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = ""
		return nil
	}
	n, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = n
	return nil
}
