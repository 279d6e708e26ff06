package enums

import "fmt"

// TokenPurpose distinguishes the single-use login token flavors.
type TokenPurpose string

const (
	TokenPurposeMagicLink    TokenPurpose = "magic_link"
	TokenPurposeVerification TokenPurpose = "verification"
)

var validTokenPurposes = []TokenPurpose{
	TokenPurposeMagicLink,
	TokenPurposeVerification,
}

// String implements fmt.Stringer.
func (p TokenPurpose) String() string {
	return string(p)
}

// IsValid reports whether the value is a known TokenPurpose.
func (p TokenPurpose) IsValid() bool {
	for _, candidate := range validTokenPurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseTokenPurpose converts raw input into a TokenPurpose.
func ParseTokenPurpose(value string) (TokenPurpose, error) {
	for _, candidate := range validTokenPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid token purpose %q", value)
}
