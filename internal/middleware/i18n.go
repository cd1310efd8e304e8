package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"photobooth/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

// CountryLookup resolves an ISO country code for a client IP.
type CountryLookup func(ip string) (string, error)

// I18N picks the response locale for every request. Precedence is the lang
// query parameter, X-Locale, Accept-Language, then the language most spoken
// in the client's country, then defaultLocale.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := requestCountry(r, lookup)
			locale := pickLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
			if country != "" {
				ctx = context.WithValue(ctx, countryContextKey{}, country)
			}
			w.Header().Set("Content-Language", locale)
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func pickLocale(r *http.Request, fallback, country string) string {
	for _, explicit := range []string{r.URL.Query().Get("lang"), r.Header.Get("X-Locale")} {
		if v := strings.TrimSpace(explicit); v != "" {
			return i18n.Normalize(v)
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		return i18n.Match(fallback, tags...)
	}
	if tag, ok := countryLanguage(country); ok {
		return i18n.Match(fallback, tag)
	}
	return i18n.Match(fallback)
}

// countryLanguage maps a region onto its most likely spoken language, so
// "SA" yields Arabic and "US" English.
func countryLanguage(country string) (language.Tag, bool) {
	if country == "" {
		return language.Und, false
	}
	region, err := language.ParseRegion(country)
	if err != nil {
		return language.Und, false
	}
	tag, err := language.Compose(region)
	if err != nil {
		return language.Und, false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return language.Und, false
	}
	return language.Make(base.String()), true
}

// requestCountry trusts a CDN country header first and falls back to the
// GeoIP lookup on the client address.
func requestCountry(r *http.Request, lookup CountryLookup) string {
	for _, key := range []string{"CF-IPCountry", "X-Country-Code"} {
		if v := strings.TrimSpace(r.Header.Get(key)); len(v) == 2 {
			return strings.ToUpper(v)
		}
	}
	if lookup == nil {
		return ""
	}
	country, err := lookup(remoteHost(r))
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(country))
}

// remoteHost strips the port from RemoteAddr. chi's RealIP runs earlier and
// has already applied any forwarding headers.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeContextKey{}).(string); ok {
		return v
	}
	return "en"
}

func CountryFromContext(ctx context.Context) string {
	v, _ := ctx.Value(countryContextKey{}).(string)
	return v
}
