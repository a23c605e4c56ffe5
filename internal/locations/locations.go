// Package locations formats the service-area labels shown on an agent's public page.
package locations

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	query     *gountries.Query
	queryOnce sync.Once
)

func countries() *gountries.Query {
	queryOnce.Do(func() {
		query = gountries.New()
	})
	return query
}

// CountryName returns the common English name for an ISO alpha-2/alpha-3 code.
// Unknown codes are returned upper-cased.
func CountryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	country, err := countries().FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}

// ValidCountry reports whether code is a known ISO country code.
func ValidCountry(code string) bool {
	if strings.TrimSpace(code) == "" {
		return false
	}
	_, err := countries().FindCountryByAlpha(strings.ToUpper(strings.TrimSpace(code)))
	return err == nil
}

// Format joins city, region and country into "Austin, TX, United States".
// Empty parts are skipped.
func Format(city, region, countryCode string) string {
	parts := make([]string, 0, 3)

	if c := strings.TrimSpace(city); c != "" {
		parts = append(parts, cases.Title(language.AmericanEnglish).String(strings.ToLower(c)))
	}
	if r := strings.TrimSpace(region); r != "" {
		if len(r) <= 3 {
			r = cases.Upper(language.AmericanEnglish).String(r)
		} else {
			r = cases.Title(language.AmericanEnglish).String(strings.ToLower(r))
		}
		parts = append(parts, r)
	}
	if name := CountryName(countryCode); name != "" {
		parts = append(parts, name)
	}

	return strings.Join(parts, ", ")
}
