// Package secretcodec obfuscates short claim payloads before they are
// embedded in signed tokens. It is reversible without a key: integrity
// and authenticity come from the token signature, not from this codec.
package secretcodec

import (
	"encoding/ascii85"
	"fmt"
)

// DecodeError reports malformed input passed to Decode. Callers must
// treat it as an invalid token, not as a server fault.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("secretcodec: decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode obfuscates s. Encode and Decode are mutual inverses over the
// ASCII strings used as claim values.
func Encode(s string) string {
	src := []byte(s)
	dst := make([]byte, ascii85.MaxEncodedLen(len(src)))
	n := ascii85.Encode(dst, src)
	return string(dst[:n])
}

// Decode reverses Encode.
func Decode(s string) (string, error) {
	src := []byte(s)
	dst := make([]byte, 4*len(src)+4)
	ndst, nsrc, err := ascii85.Decode(dst, src, true)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	if nsrc != len(src) {
		return "", &DecodeError{Err: fmt.Errorf("trailing input at byte %d", nsrc)}
	}
	return string(dst[:ndst]), nil
}
