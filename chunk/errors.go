package chunk

import "errors"

var (
	// ErrInvalidPolicy indicates a policy with a non-positive size or an
	// overlap that is not smaller than the size.
	ErrInvalidPolicy = errors.New("invalid chunk policy")

	// ErrPolicyExceedsTokenCeiling indicates a policy whose chunks could
	// overflow the embedding model's input limit.
	ErrPolicyExceedsTokenCeiling = errors.New("chunk policy exceeds embedding token ceiling")
)
