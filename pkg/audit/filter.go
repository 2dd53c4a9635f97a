package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FilterAction is what happens to a sensitive extra_data field.
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

// Keys are matched case-insensitively. Patient identifiers are hashed so
// entries stay correlatable without storing the raw value.
var defaultSensitiveFields = map[string]FilterAction{
	"password":      FilterActionRemove,
	"password_hash": FilterActionRemove,
	"token":         FilterActionRemove,
	"access_token":  FilterActionRemove,
	"refresh_token": FilterActionRemove,
	"api_key":       FilterActionRemove,
	"secret":        FilterActionRemove,
	"cpf":           FilterActionMask,
	"ssn":           FilterActionMask,
	"phone":         FilterActionMask,
	"email":         FilterActionHash,
	"date_of_birth": FilterActionHash,
	"birth_date":    FilterActionHash,
}

// MetadataFilter rewrites sensitive fields of Entry.Extra.
type MetadataFilter struct {
	rules map[string]FilterAction
}

// FilterOption configures a MetadataFilter.
type FilterOption func(*MetadataFilter)

// WithField sets the action for field, overriding the defaults.
func WithField(field string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) { f.rules[strings.ToLower(field)] = action }
}

// WithAllowedField lets field through untouched.
func WithAllowedField(field string) FilterOption {
	return func(f *MetadataFilter) { delete(f.rules, strings.ToLower(field)) }
}

// NewMetadataFilter starts from the default sensitive fields; options add
// or override rules.
func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{rules: make(map[string]FilterAction, len(defaultSensitiveFields))}
	for k, v := range defaultSensitiveFields {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns a filtered copy of extra.
func (f *MetadataFilter) Filter(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		action, ok := f.rules[strings.ToLower(k)]
		if !ok {
			out[k] = v
			continue
		}
		switch action {
		case FilterActionRemove:
		case FilterActionHash:
			sum := sha256.Sum256([]byte(fmt.Sprint(v)))
			out[k] = hex.EncodeToString(sum[:])
		case FilterActionMask:
			out[k] = mask(fmt.Sprint(v))
		default:
			out[k] = v
		}
	}
	return out
}

func mask(s string) string {
	n := len(s)
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	}
	return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
}
