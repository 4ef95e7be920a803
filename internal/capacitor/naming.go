package capacitor

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// appIDDomain is the reverse-domain prefix for generated package identifiers.
const appIDDomain = "app.inful"

// NormalizeIdentifier derives a package-safe identifier from a user-supplied
// app name: diacritics folded, lowercased, every non-alphanumeric dropped.
// "Café App" becomes "cafeapp", not "cafapp".
func NormalizeIdentifier(name string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AppID returns the reverse-domain package name for an app.
func AppID(name string) string {
	ident := NormalizeIdentifier(name)
	if ident == "" {
		ident = "webapp"
	}
	return appIDDomain + "." + ident
}

// ArtifactFilename derives the stable artifact name from app name and
// version: non-alphanumerics in the name become underscores, joined with
// "_v" and the version.
func ArtifactFilename(name, version string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String() + "_v" + version + ".apk"
}
