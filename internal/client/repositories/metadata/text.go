package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUndecodable marks a stored value that is present but no longer parses,
// typically one written by an older client in a different format.
var ErrUndecodable = errors.New("stored value does not decode")

// SetText stores s as a JSON string so quotes and newlines survive intact.
func SetText(ctx context.Context, r Repository, key, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode metadata[%s]: %w", key, err)
	}
	return r.Set(ctx, key, b)
}

// GetText reads a value written by SetText. Values written by older clients
// as raw text do not decode as JSON strings; those are returned verbatim.
// ok is false when the key is absent.
func GetText(ctx context.Context, r Repository, key string) (s string, ok bool, err error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}
	return DecodeText(raw), true, nil
}

// DecodeText is the parse-with-fallback rule used for every stored string.
func DecodeText(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func SetJSON(ctx context.Context, r Repository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode metadata[%s]: %w", key, err)
	}
	return r.Set(ctx, key, b)
}

// GetJSON decodes the value under key into v. ok is false when the key is
// absent; a value that no longer decodes is reported as ErrUndecodable.
func GetJSON(ctx context.Context, r Repository, key string, v any) (ok bool, err error) {
	raw, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode metadata[%s]: %w: %w", key, ErrUndecodable, err)
	}
	return true, nil
}
