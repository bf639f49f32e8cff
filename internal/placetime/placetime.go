// Package placetime answers "what time is it in <city>" questions from a
// static city table without calling the completion API.
package placetime

import (
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // zone data must not depend on the host image
)

// Layout is the format of resolved local times.
const Layout = "2006-01-02 15:04:05 MST"

// triggerPhrases are checked in order; the first match wins. "current time in"
// must precede "time in" since the latter is a substring of the former.
var triggerPhrases = []string{
	"current time in",
	"time in",
	"what time is it in",
}

// aliases map shorthand place names to table keys.
var aliases = map[string]string{
	"nyc":           "new york",
	"new york city": "new york",
	"ny":            "new york",
	"la":            "los angeles",
	"sf":            "san francisco",
	"dc":            "washington",
	"cdmx":          "mexico city",
	"rio":           "rio de janeiro",
	"bombay":        "mumbai",
	"peking":        "beijing",
	"saigon":        "ho chi minh city",
}

// cityZones maps lowercase city names to IANA zones.
var cityZones = map[string]string{
	"new york":         "America/New_York",
	"washington":       "America/New_York",
	"boston":           "America/New_York",
	"miami":            "America/New_York",
	"atlanta":          "America/New_York",
	"chicago":          "America/Chicago",
	"houston":          "America/Chicago",
	"dallas":           "America/Chicago",
	"denver":           "America/Denver",
	"salt lake city":   "America/Denver",
	"phoenix":          "America/Phoenix",
	"los angeles":      "America/Los_Angeles",
	"san francisco":    "America/Los_Angeles",
	"seattle":          "America/Los_Angeles",
	"anchorage":        "America/Anchorage",
	"honolulu":         "Pacific/Honolulu",
	"toronto":          "America/Toronto",
	"vancouver":        "America/Vancouver",
	"mexico city":      "America/Mexico_City",
	"bogota":           "America/Bogota",
	"lima":             "America/Lima",
	"santiago":         "America/Santiago",
	"buenos aires":     "America/Argentina/Buenos_Aires",
	"sao paulo":        "America/Sao_Paulo",
	"rio de janeiro":   "America/Sao_Paulo",
	"london":           "Europe/London",
	"dublin":           "Europe/Dublin",
	"lisbon":           "Europe/Lisbon",
	"madrid":           "Europe/Madrid",
	"paris":            "Europe/Paris",
	"berlin":           "Europe/Berlin",
	"amsterdam":        "Europe/Amsterdam",
	"rome":             "Europe/Rome",
	"stockholm":        "Europe/Stockholm",
	"athens":           "Europe/Athens",
	"istanbul":         "Europe/Istanbul",
	"moscow":           "Europe/Moscow",
	"cairo":            "Africa/Cairo",
	"lagos":            "Africa/Lagos",
	"nairobi":          "Africa/Nairobi",
	"johannesburg":     "Africa/Johannesburg",
	"dubai":            "Asia/Dubai",
	"karachi":          "Asia/Karachi",
	"mumbai":           "Asia/Kolkata",
	"delhi":            "Asia/Kolkata",
	"new delhi":        "Asia/Kolkata",
	"bangkok":          "Asia/Bangkok",
	"ho chi minh city": "Asia/Ho_Chi_Minh",
	"jakarta":          "Asia/Jakarta",
	"singapore":        "Asia/Singapore",
	"kuala lumpur":     "Asia/Kuala_Lumpur",
	"manila":           "Asia/Manila",
	"hong kong":        "Asia/Hong_Kong",
	"beijing":          "Asia/Shanghai",
	"shanghai":         "Asia/Shanghai",
	"seoul":            "Asia/Seoul",
	"tokyo":            "Asia/Tokyo",
	"sydney":           "Australia/Sydney",
	"melbourne":        "Australia/Melbourne",
	"perth":            "Australia/Perth",
	"auckland":         "Pacific/Auckland",
}

const maxPrefixWords = 3

// ExtractPlace finds a place name following one of the trigger phrases.
// It returns the matched known city when a 3-, 2- or 1-word prefix of the
// remainder is in the table, otherwise the whole remainder.
func ExtractPlace(text string) (string, bool) {
	lower := strings.ToLower(text)

	var raw string
	found := false
	for _, phrase := range triggerPhrases {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			raw = lower[idx+len(phrase):]
			found = true
			break
		}
	}
	if !found {
		return "", false
	}

	raw = cleanPlace(raw)
	if raw == "" {
		return "", false
	}
	if alias, ok := aliases[raw]; ok {
		return alias, true
	}

	if before, _, ok := strings.Cut(raw, ","); ok {
		raw = cleanPlace(before)
		if raw == "" {
			return "", false
		}
		if alias, ok := aliases[raw]; ok {
			return alias, true
		}
	}

	words := strings.Fields(raw)
	for n := maxPrefixWords; n >= 1; n-- {
		if len(words) < n {
			continue
		}
		candidate := strings.Join(words[:n], " ")
		if _, ok := cityZones[candidate]; ok {
			return candidate, true
		}
	}
	return strings.Join(words, " "), true
}

// cleanPlace trims whitespace and trailing punctuation.
func cleanPlace(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "?!.,;:"))
}

// ResolveTime returns the current local time for place, formatted with
// Layout. Unknown places and zone failures both report false.
func ResolveTime(place string) (string, bool) {
	return resolveAt(place, time.Now())
}

func resolveAt(place string, now time.Time) (string, bool) {
	zone, ok := cityZones[strings.ToLower(strings.TrimSpace(place))]
	if !ok {
		return "", false
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", false
	}
	return now.In(loc).Format(Layout), true
}

// KnownCities returns the table keys in alphabetical order.
func KnownCities() []string {
	out := make([]string, 0, len(cityZones))
	for city := range cityZones {
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}
