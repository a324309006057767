package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// SupportedLocales lists the languages the text refiners are asked to answer
// in. The first entry is the default.
var SupportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
	language.Malay,
	language.Spanish,
	language.Portuguese,
	language.French,
	language.German,
	language.Japanese,
}

var localeMatcher = language.NewMatcher(SupportedLocales)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if v := normalizeLocale(r.Header.Get("X-Locale")); v != "" {
		return v
	}
	if v := parseAcceptLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	if v := countryLocale(country); v != "" {
		return v
	}
	if v := normalizeLocale(fallback); v != "" {
		return v
	}
	return SupportedLocales[0].String()
}

func parseAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return matchLocale(tags...)
}

// normalizeLocale maps a BCP 47 tag onto the closest supported locale, or ""
// when nothing matches.
func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	return matchLocale(tag)
}

// countryLocale picks the most likely supported language spoken in country.
// Countries whose language is unsupported fall back to the default locale.
func countryLocale(country string) string {
	region, err := language.ParseRegion(strings.TrimSpace(country))
	if err != nil {
		return ""
	}
	tag, err := language.Compose(language.Und, region)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	tag, err = language.Compose(base)
	if err != nil {
		return ""
	}
	if v := matchLocale(tag); v != "" {
		return v
	}
	return SupportedLocales[0].String()
}

func matchLocale(tags ...language.Tag) string {
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return SupportedLocales[idx].String()
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return SupportedLocales[0].String()
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// countryHeaders are edge-provided country hints, in order of trust.
var countryHeaders = []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}

// ResolveCountry returns a best-effort ISO country code for r. Edge headers
// win over the region of an explicit locale, which wins over an IP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		switch code := strings.ToUpper(strings.TrimSpace(r.Header.Get(key))); code {
		case "", "XX", "T1":
			// Cloudflare marks unknown and Tor traffic this way.
		default:
			return code
		}
	}
	if tag, err := language.Parse(strings.TrimSpace(r.Header.Get("X-Locale"))); err == nil {
		if region := explicitRegion(tag); region != "" {
			return region
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil {
		for _, tag := range tags {
			if region := explicitRegion(tag); region != "" {
				return region
			}
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}

// explicitRegion returns the country written in tag, ignoring inferred
// regions and macro-regions such as 419.
func explicitRegion(tag language.Tag) string {
	region, conf := tag.Region()
	if conf != language.Exact || !region.IsCountry() {
		return ""
	}
	return region.String()
}
