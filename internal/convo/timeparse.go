package convo

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseSpanishTime resolves a Spanish alarm phrase into an absolute
// time. It understands relative phrases ("en diez minutos", "en dos
// horas", "en media hora") and absolute ones ("a las ocho", "a las 8 y
// media de la tarde", "a las 21:30"). It is the local fallback used
// when the NLU router is unreachable, so it is deliberately narrow:
// anything it does not recognize reports false.
func ParseSpanishTime(text string, now time.Time) (time.Time, bool) {
	s := normalizeReply(text)
	if s == "" {
		return time.Time{}, false
	}

	if at, ok := parseRelative(s, now); ok {
		return at, true
	}
	return parseAbsolute(s, now)
}

var relativeRe = regexp.MustCompile(`\ben (.+?) (minutos?|horas?)\b`)

func parseRelative(s string, now time.Time) (time.Time, bool) {
	if strings.Contains(s, "en media hora") {
		return now.Add(30 * time.Minute), true
	}
	m := relativeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, ok := parseNumber(m[1])
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	if strings.HasPrefix(m[2], "hora") {
		return now.Add(time.Duration(n) * time.Hour), true
	}
	return now.Add(time.Duration(n) * time.Minute), true
}

var absoluteRe = regexp.MustCompile(`\ba las? (\S+)`)

func parseAbsolute(s string, now time.Time) (time.Time, bool) {
	m := absoluteRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	// "a las 21:30" arrives as one token.
	hourTok, minute := m[1], 0
	if h, mm, found := strings.Cut(hourTok, ":"); found {
		hourTok = h
		v, err := strconv.Atoi(mm)
		if err != nil || v > 59 {
			return time.Time{}, false
		}
		minute = v
	}
	hour, ok := parseNumber(hourTok)
	if !ok || hour < 0 || hour > 23 {
		return time.Time{}, false
	}

	switch {
	case strings.Contains(s, "y media"):
		minute = 30
	case strings.Contains(s, "y cuarto"):
		minute = 15
	case strings.Contains(s, "menos cuarto"):
		hour--
		minute = 45
	}

	// Day-part hints move a 12-hour figure into the right half.
	if hour < 12 {
		if strings.Contains(s, "de la tarde") || strings.Contains(s, "de la noche") {
			hour += 12
		}
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if strings.Contains(s, "mañana") && !strings.Contains(s, "de la mañana") {
		at = at.AddDate(0, 0, 1)
	} else if !at.After(now) {
		// A bare past time means the next occurrence.
		at = at.AddDate(0, 0, 1)
	}
	return at, true
}

// spanishNumbers covers the figures spoken in alarm phrases.
var spanishNumbers = map[string]int{
	"cero": 0, "un": 1, "uno": 1, "una": 1, "dos": 2, "tres": 3,
	"cuatro": 4, "cinco": 5, "seis": 6, "siete": 7, "ocho": 8,
	"nueve": 9, "diez": 10, "once": 11, "doce": 12, "trece": 13,
	"catorce": 14, "quince": 15, "veinte": 20, "treinta": 30,
	"cuarenta": 40, "cincuenta": 50,
}

func parseNumber(tok string) (int, bool) {
	tok = strings.TrimSpace(tok)
	if n, err := strconv.Atoi(tok); err == nil {
		return n, true
	}
	if n, ok := spanishNumbers[tok]; ok {
		return n, true
	}
	// Compounds like "veinticinco" or "treinta y cinco".
	if rest, found := strings.CutPrefix(tok, "veinti"); found {
		if n, ok := spanishNumbers[rest]; ok {
			return 20 + n, true
		}
	}
	if tens, units, found := strings.Cut(tok, " y "); found {
		t, okT := spanishNumbers[tens]
		u, okU := spanishNumbers[units]
		if okT && okU {
			return t + u, true
		}
	}
	return 0, false
}
