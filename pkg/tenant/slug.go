package tenant

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dmitrymomot/clinickit/pkg/slug"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedSlugs cannot be claimed by tenants because they collide with
// platform hostnames.
var reservedSlugs = map[string]struct{}{
	"www": {}, "api": {}, "admin": {}, "app": {}, "mail": {}, "ftp": {},
	"localhost": {}, "staging": {}, "test": {}, "dev": {}, "development": {},
	"production": {}, "support": {}, "help": {}, "blog": {}, "docs": {},
	"status": {},
}

// IsReservedSlug reports whether s is reserved for the platform.
func IsReservedSlug(s string) bool {
	_, ok := reservedSlugs[strings.ToLower(s)]
	return ok
}

// ValidateSlug checks that s can be used as a subdomain label.
func ValidateSlug(s string) error {
	if s == "" || len(s) > maxLabelLength || !slugPattern.MatchString(s) ||
		strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return ErrInvalidSlug
	}
	if IsReservedSlug(s) {
		return ErrReservedSlug
	}
	return nil
}

// GenerateSlug derives a valid, unused slug from a clinic name. Reserved or
// empty bases fall back to "clinic" with the usual numeric suffixes.
func GenerateSlug(ctx context.Context, name string, exists func(ctx context.Context, slug string) (bool, error)) (string, error) {
	base := slug.Make(name, slug.MaxLength(maxLabelLength-4))
	if base == "" || IsReservedSlug(base) {
		base = "clinic"
	}
	s, err := slug.Unique(ctx, base, 1000, exists)
	if err != nil {
		return "", errors.Join(ErrInvalidSlug, err)
	}
	return s, nil
}
