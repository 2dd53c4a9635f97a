package slug

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrTooManyAttempts is returned by Unique when no free candidate was found.
var ErrTooManyAttempts = errors.New("slug: too many attempts to find a unique slug")

// Option configures Make.
type Option func(*config)

type config struct {
	maxLength int
	separator string
	replace   map[string]string
}

// MaxLength truncates the slug to n bytes without leaving a trailing
// separator. Zero means no limit.
func MaxLength(n int) Option {
	return func(c *config) { c.maxLength = n }
}

// Separator replaces the default "-".
func Separator(s string) Option {
	return func(c *config) { c.separator = s }
}

// Replace applies literal substitutions before transliteration,
// e.g. {"&": "and"}.
func Replace(pairs map[string]string) Option {
	return func(c *config) { c.replace = pairs }
}

// Make converts s into a lowercase ASCII slug. Accents are stripped through
// Unicode NFD decomposition; every other run of non-alphanumeric characters
// collapses into a single separator.
//
//	slug.Make("Clínica São José") // "clinica-sao-jose"
func Make(s string, opts ...Option) string {
	cfg := &config{separator: "-"}
	for _, opt := range opts {
		opt(cfg)
	}

	for from, to := range cfg.replace {
		s = strings.ReplaceAll(s, from, " "+to+" ")
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteString(cfg.separator)
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := b.String()
	if cfg.maxLength > 0 && len(out) > cfg.maxLength {
		out = strings.TrimRight(out[:cfg.maxLength], cfg.separator)
	}
	return out
}

// Unique returns base if it is free, otherwise the first free candidate of
// base-1, base-2, ... up to maxAttempts.
func Unique(ctx context.Context, base string, maxAttempts int, exists func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	candidate := base
	for i := 1; i <= maxAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", ErrTooManyAttempts
}
