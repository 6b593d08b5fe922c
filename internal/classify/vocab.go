package classify

// Vocabulary is a closed label set with per-label display metadata. Tables are
// initialized once at package load and never mutated at runtime.
type Vocabulary struct {
	// Labels in canonical order, lower-case.
	Labels []string
	// Emoji per label, for the diary UI.
	Emoji map[string]string
	// Synonyms maps common model alternates to a canonical label.
	Synonyms map[string]string
	// Fallback is returned when no cascade step matches.
	Fallback string
}

// Emotions is the closed vocabulary for the predominant-emotion classification.
var Emotions = Vocabulary{
	Labels: []string{
		"gioia", "tristezza", "rabbia", "paura",
		"ansia", "sorpresa", "disgusto", "confusione",
	},
	Emoji: map[string]string{
		"gioia":      "😊",
		"tristezza":  "😢",
		"rabbia":     "😠",
		"paura":      "😨",
		"ansia":      "😰",
		"sorpresa":   "😮",
		"disgusto":   "🤢",
		"confusione": "😕",
	},
	Synonyms: map[string]string{
		"contento":     "gioia",
		"contenta":     "gioia",
		"felice":       "gioia",
		"felicità":     "gioia",
		"serenità":     "gioia",
		"allegria":     "gioia",
		"triste":       "tristezza",
		"malinconia":   "tristezza",
		"depressione":  "tristezza",
		"sconforto":    "tristezza",
		"arrabbiato":   "rabbia",
		"arrabbiata":   "rabbia",
		"frustrazione": "rabbia",
		"irritazione":  "rabbia",
		"spavento":     "paura",
		"terrore":      "paura",
		"timore":       "paura",
		"ansioso":      "ansia",
		"ansiosa":      "ansia",
		"agitazione":   "ansia",
		"preoccupazione": "ansia",
		"stress":       "ansia",
		"stupore":      "sorpresa",
		"meraviglia":   "sorpresa",
		"repulsione":   "disgusto",
		"vergogna":     "disgusto",
		"smarrimento":  "confusione",
		"incertezza":   "confusione",
	},
	Fallback: "confusione",
}

// EmotionCategory groups each emotion for the clinician dashboard charts.
var EmotionCategory = map[string]string{
	"gioia":      "positiva",
	"sorpresa":   "positiva",
	"tristezza":  "negativa",
	"rabbia":     "negativa",
	"paura":      "negativa",
	"ansia":      "negativa",
	"disgusto":   "negativa",
	"confusione": "neutra",
}

// Contexts is the closed vocabulary for the social-context classification.
var Contexts = Vocabulary{
	Labels: []string{
		"famiglia", "lavoro", "amici", "relazione",
		"salute", "scuola", "solitudine", "altro",
	},
	Emoji: map[string]string{
		"famiglia":   "👨‍👩‍👧",
		"lavoro":     "💼",
		"amici":      "👥",
		"relazione":  "❤️",
		"salute":     "🏥",
		"scuola":     "🎓",
		"solitudine": "🚶",
		"altro":      "📌",
	},
	Synonyms: map[string]string{
		"genitori":   "famiglia",
		"madre":      "famiglia",
		"padre":      "famiglia",
		"figli":      "famiglia",
		"ufficio":    "lavoro",
		"collega":    "lavoro",
		"colleghi":   "lavoro",
		"capo":       "lavoro",
		"amico":      "amici",
		"amica":      "amici",
		"amicizia":   "amici",
		"partner":    "relazione",
		"fidanzato":  "relazione",
		"fidanzata":  "relazione",
		"coppia":     "relazione",
		"matrimonio": "relazione",
		"malattia":   "salute",
		"medico":     "salute",
		"ospedale":   "salute",
		"università": "scuola",
		"studio":     "scuola",
		"esame":      "scuola",
		"esami":      "scuola",
		"isolamento": "solitudine",
		"solo":       "solitudine",
		"sola":       "solitudine",
	},
	Fallback: "altro",
}
