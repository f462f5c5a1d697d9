package request

import (
	"encoding/json"

	"github.com/pkg/errors"

	"konnect/internal/crypto"
)

// SealFields returns a copy of obj where each named field holds a sealed
// token of its JSON value under key. The field name is the associated data.
// Fields absent from obj are skipped; other fields are copied unchanged.
func SealFields(key []byte, obj map[string]any, fields ...string) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, f := range fields {
		v, ok := obj[f]
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode field %s", f)
		}
		tok, err := crypto.SealToken(key, raw, []byte(f))
		if err != nil {
			return nil, errors.Wrapf(err, "seal field %s", f)
		}
		out[f] = tok
	}
	return out, nil
}

// OpenFields reverses SealFields. A named field that is present but not a
// string is ErrFieldNotSealed.
func OpenFields(key []byte, obj map[string]any, fields ...string) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, f := range fields {
		v, ok := obj[f]
		if !ok {
			continue
		}
		tok, ok := v.(string)
		if !ok {
			return nil, errors.Wrapf(ErrFieldNotSealed, "field %s", f)
		}
		raw, err := crypto.OpenToken(key, tok, []byte(f))
		if err != nil {
			return nil, errors.Wrapf(err, "open field %s", f)
		}
		var val any
		if err := json.Unmarshal(raw, &val); err != nil {
			return nil, errors.Wrapf(err, "decode field %s", f)
		}
		out[f] = val
	}
	return out, nil
}
