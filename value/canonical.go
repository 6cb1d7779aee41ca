package value

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "quarry/value/v1"
	DomainPlan  = "quarry/plan/v1"
)

// MarshalCanonical produces a canonical JSON encoding of a value, suitable
// for identity comparison and hashing.
//
// Key differences from standard json.Marshal:
//  1. No HTML escaping (< > & are NOT escaped)
//  2. Strings are NFC normalized
//  3. Floats use the shortest round-trippable representation
//
// Two values are identical if and only if their canonical encodings are
// byte-equal. Set membership and group-key identity are defined in terms of
// this encoding because Tuple values are not comparable with ==.
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil Value cannot be canonically encoded")
	case Null:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val)), nil
	case Int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Float:
		b := strconv.AppendFloat(nil, float64(val), 'g', -1, 64)
		// Integral floats keep a fractional part so Float(1) and Int(1)
		// remain distinct identities, matching Equal.
		if !bytes.ContainsAny(b, ".eE") {
			b = append(b, '.', '0')
		}
		return b, nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Tuple:
		return marshalCanonicalTuple(val)
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// Key returns the canonical encoding as a string, for use as a map key.
// Panics only on unknown value types, which the sealed interface prevents.
func Key(v Value) string {
	b, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Fingerprint computes a SHA-256 hash of canonical bytes with domain
// separation. Format: SHA256(domain + 0x00 + data). The null byte separator
// prevents domain/data boundary ambiguity.
func Fingerprint(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalCanonicalString encodes a string as canonical JSON:
// NFC normalized, minimal escaping, no HTML escaping.
func marshalCanonicalString(s string) []byte {
	s = norm.NFC.String(s)

	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.Bytes()
}

func marshalCanonicalTuple(t Tuple) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("tuple[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
