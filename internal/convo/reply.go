package convo

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// ReplyVerdict classifies the user's answer to the fall check-in.
type ReplyVerdict int

const (
	// VerdictUnknown means the reply could not be classified.
	VerdictUnknown ReplyVerdict = iota

	// VerdictOK means the user reassured us they are fine.
	VerdictOK

	// VerdictHelp means the user needs assistance.
	VerdictHelp
)

// String returns the verdict name.
func (v ReplyVerdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictHelp:
		return "help"
	default:
		return "unknown"
	}
}

// distressPhrases immediately classify a reply as HELP.
var distressPhrases = []string{
	"no puedo levantarme",
	"no me puedo levantar",
	"ayuda",
	"ayudame",
	"socorro",
	"auxilio",
	"emergencia",
	"me duele",
	"llama a alguien",
}

// reassurancePhrases classify a reply as OK.
var reassurancePhrases = []string{
	"estoy bien",
	"todo bien",
	"no pasa nada",
	"no te preocupes",
	"no fue nada",
	"no ha sido nada",
	"nada grave",
	"tranquilo",
	"tranquila",
	"gracias",
	"sin problema",
}

// fallStems are matched per token with edit distance ≤ 1 so that STT
// near-misses ("cay" for "caí") still register a fall mention.
var fallStems = []string{"cai", "caido", "caida", "caerme", "cayendo", "caer"}

// AssessFallReply classifies a transcript from the fall check-in as
// HELP, OK or UNKNOWN. Rule order matters: explicit distress wins over
// everything, a fall mention wins over reassurance ("me caí pero estoy
// bien" still warrants help), and a bare negation without any
// reassuring phrase is treated as a call for help.
func AssessFallReply(transcript string) ReplyVerdict {
	text := normalizeReply(transcript)
	if text == "" {
		return VerdictUnknown
	}

	for _, p := range distressPhrases {
		if strings.Contains(text, p) {
			return VerdictHelp
		}
	}

	for _, token := range strings.Fields(text) {
		for _, stem := range fallStems {
			if matchr.Levenshtein(token, stem) <= 1 {
				return VerdictHelp
			}
		}
	}

	for _, p := range reassurancePhrases {
		if strings.Contains(text, p) {
			return VerdictOK
		}
	}

	for _, token := range strings.Fields(text) {
		if token == "no" {
			return VerdictHelp
		}
	}
	return VerdictUnknown
}

// normalizeReply lowercases, strips Spanish accents and collapses
// whitespace.
func normalizeReply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'á':
			return 'a'
		case 'é':
			return 'e'
		case 'í':
			return 'i'
		case 'ó':
			return 'o'
		case 'ú', 'ü':
			return 'u'
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
