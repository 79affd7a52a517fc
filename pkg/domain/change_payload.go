package domain

import "encoding/json"

// ChangePayload holds a JSON snapshot of one side of a Change. Rules decode
// it into the typed record they care about.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// PayloadOf marshals a record into a payload. Records in this package are
// plain data, so marshalling only fails on programmer error.
func PayloadOf[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return ChangePayload{defined: true, raw: raw}, nil
}

// Defined reports whether the payload was set.
func (p ChangePayload) Defined() bool { return p.defined }

// Raw returns a copy of the encoded bytes, or nil for an undefined payload.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(p.raw))
	copy(out, p.raw)
	return out
}

// DecodePayload unmarshals p into T. It reports false for undefined, empty
// or undecodable payloads.
func DecodePayload[T any](p ChangePayload) (T, bool) {
	var out T
	if !p.defined || len(p.raw) == 0 {
		return out, false
	}
	if err := json.Unmarshal(p.raw, &out); err != nil {
		return out, false
	}
	return out, true
}
