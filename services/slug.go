package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugAttempts = 20

var vietnameseD = strings.NewReplacer("đ", "d", "Đ", "D")

// Slugify lower-cases s, strips diacritics (đ becomes d) and joins the
// remaining alphanumeric runs with '-'.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, vietnameseD.Replace(s))
	if err != nil {
		plain = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// BaseSlug is slugify(name) plus the last six characters of id.
func BaseSlug(name string, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	suffix := hex[len(hex)-6:]
	base := Slugify(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

type slugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// uniqueSlug returns base, or base-N for the first free N.
func uniqueSlug(ctx context.Context, repo slugChecker, base string) (string, error) {
	candidate := base
	for n := 1; n <= maxSlugAttempts; n++ {
		exists, err := repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}
