// Package normalize holds the pure validators that turn noisy chat text into
// typed field values. Every function is total: invalid input yields the zero
// value and ok=false, never a panic or an error.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	MinWeightKg = 20.0
	MaxWeightKg = 300.0
	MinHeightCm = 100
	MaxHeightCm = 230
)

var (
	numericDateRe = regexp.MustCompile(`(?:^|\D)(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})(?:\D|$)`)
	wordDateRe    = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:de\s+)?([a-zA-Záéíóúñ]+)\.?\s*(?:de(?:l)?\s+)?(\d{2,4})`)
	numberRe      = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	digitsRe      = regexp.MustCompile(`\D`)
)

var monthsEs = map[string]time.Month{
	"enero": time.January, "ene": time.January,
	"febrero": time.February, "feb": time.February,
	"marzo": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June,
	"julio": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"septiembre": time.September, "setiembre": time.September, "sep": time.September, "set": time.September,
	"octubre": time.October, "oct": time.October,
	"noviembre": time.November, "nov": time.November,
	"diciembre": time.December, "dic": time.December,
}

// ParseDate accepts dd/mm/yyyy (also with "-", 2-digit year pivot 00-21 ->
// 2000s, 22-99 -> 1900s) and Spanish month-name forms ("1 de febrero de
// 1990"). Future dates and years before 1900 are rejected.
func ParseDate(text string) (time.Time, bool) {
	return ParseDateAt(text, time.Now())
}

func ParseDateAt(text string, now time.Time) (time.Time, bool) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, false
	}

	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return buildDate(year, time.Month(month), day, now)
	}

	if m := wordDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthsEs[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(m[3])
		return buildDate(year, month, day, now)
	}

	return time.Time{}, false
}

func buildDate(year int, month time.Month, day int, now time.Time) (time.Time, bool) {
	if year < 100 {
		if year <= 21 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if year < 1900 {
		return time.Time{}, false
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. 31/02 -> 02/03); reject those.
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	if d.After(now) {
		return time.Time{}, false
	}
	return d, true
}

// FormatDate renders the canonical dd/mm/yyyy form used across the record.
func FormatDate(d time.Time) string {
	return d.Format("02/01/2006")
}

// Age returns whole years elapsed at now, floored at zero.
func Age(birth time.Time) int {
	return AgeAt(birth, time.Now())
}

func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// ParseWeightKg extracts a weight in kilograms, preferring a number followed
// by "kg". Values outside [20,300] are rejected.
func ParseWeightKg(text string) (float64, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0, false
	}
	t = strings.ReplaceAll(t, ",", ".")

	kgRe := regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:kg|kilos?)`)
	var raw string
	if m := kgRe.FindStringSubmatch(t); m != nil {
		raw = m[1]
	} else if m := numberRe.FindString(t); m != "" {
		raw = m
	} else {
		return 0, false
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if val < MinWeightKg || val > MaxWeightKg {
		return 0, false
	}
	return math.Round(val*100) / 100, true
}

// ParseHeightCm extracts a height in centimeters. A bare value in [0.9,2.5]
// is read as meters and converted; anything else is taken as centimeters.
// The result must land in [100,230].
func ParseHeightCm(text string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0, false
	}
	t = strings.ReplaceAll(t, ",", ".")

	m := numberRe.FindString(t)
	if m == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}

	cm := int(math.Round(val))
	if val >= 0.9 && val <= 2.5 {
		cm = int(math.Round(val * 100))
	}
	if cm < MinHeightCm || cm > MaxHeightCm {
		return 0, false
	}
	return cm, true
}

// BMI computes weight/(height_m)^2 rounded to one decimal.
func BMI(weightKg float64, heightCm int) (float64, bool) {
	if weightKg <= 0 || heightCm <= 0 {
		return 0, false
	}
	m := float64(heightCm) / 100.0
	return math.Round(weightKg/(m*m)*10) / 10, true
}

// NormalizeDNI keeps digits only, strips leading zeros and accepts lengths
// between 6 and 10.
func NormalizeDNI(text string) (string, bool) {
	digits := digitsRe.ReplaceAllString(text, "")
	digits = strings.TrimLeft(digits, "0")
	if len(digits) < 6 || len(digits) > 10 {
		return "", false
	}
	return digits, true
}

// Linking particles that stay lowercase inside a name.
var nameParticles = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true,
	"y": true, "da": true, "das": true, "di": true, "van": true, "von": true,
}

// CapitalizeName capitalizes each token, keeping linking particles lowercase
// unless they open the name. Hyphen and apostrophe sub-parts are capitalized
// individually ("maria-jose o'brien" -> "Maria-Jose O'Brien").
func CapitalizeName(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	for i, f := range fields {
		lower := strings.ToLower(f)
		if i > 0 && nameParticles[lower] {
			fields[i] = lower
			continue
		}
		fields[i] = capitalizeSubparts(lower)
	}
	return strings.Join(fields, " ")
}

func capitalizeSubparts(token string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range token {
		if r == '-' || r == '\'' {
			b.WriteRune(r)
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripChatMarkup drops WhatsApp emphasis markers and invisible bidi/zero
// width control characters that phones sneak into copied text.
func StripChatMarkup(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '*', '_', '~', '`':
			continue
		case '\u200b', '\u200c', '\u200d', '\u200e', '\u200f', '\ufeff':
			continue
		}
		if r >= '\u202a' && r <= '\u202e' {
			continue
		}
		if r >= '\u2066' && r <= '\u2069' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
