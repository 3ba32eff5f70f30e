package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MaxKeyLength is the longest key Signature.Key returns verbatim.
const MaxKeyLength = 250

// hashedKeyMarker prefixes the digest of a folded key or operation.
const hashedKeyMarker = "xxh:"

// maxOperationLength leaves room for the separator and a digest after the
// operation, so a folded key always starts with Prefix.
const maxOperationLength = MaxKeyLength - len(KeySeparator) - len(hashedKeyMarker) - 16

var signatureSerializer = NewDefaultKeySerializer()

// Signature identifies a cacheable operation: an operation string, its
// positional arguments and its named parameters.
type Signature struct {
	Operation string
	Args      []any
	Params    map[string]any
}

// NewSignature builds a signature without named parameters.
func NewSignature(operation string, args ...any) Signature {
	return Signature{Operation: operation, Args: args}
}

// WithParams returns a copy of s carrying params.
func (s Signature) WithParams(params map[string]any) Signature {
	s.Params = params
	return s
}

// Key renders the canonical cache key. Named parameters are serialized with
// sorted names, so their order never changes the key. Keys longer than
// MaxKeyLength keep the operation prefix and replace the rest with an xxhash
// digest, which keeps DeleteByPrefix(s.Prefix()) working.
func (s Signature) Key() string {
	return s.KeyWith(signatureSerializer)
}

// KeyWith renders the key with a custom serializer. Folding and prefix
// deletion assume ks starts keys with the operation and KeySeparator, like
// the default serializer does. A nil ks uses the default.
func (s Signature) KeyWith(ks KeySerializer) string {
	if ks == nil {
		ks = signatureSerializer
	}
	args := s.Args
	if len(s.Params) > 0 {
		args = append(append(make([]any, 0, len(s.Args)+1), s.Args...), s.Params)
	}
	key := ks.SerializeKey(s.operation(), args...)
	if len(key) <= MaxKeyLength {
		return key
	}
	return s.Prefix() + digest(key)
}

// Prefix is the key prefix shared by every signature of the same operation
// that has arguments. Operations too long to leave room for arguments are
// replaced by their digest, in keys and prefix alike.
func (s Signature) Prefix() string {
	return operationSegment(s.operation()) + KeySeparator
}

func (s Signature) operation() string {
	if len(operationSegment(s.Operation)) <= maxOperationLength {
		return s.Operation
	}
	return digest(s.Operation)
}

func digest(v string) string {
	return hashedKeyMarker + strconv.FormatUint(xxhash.Sum64String(v), 16)
}

// String implements fmt.Stringer.
func (s Signature) String() string {
	return s.Key()
}
