package pipeline

import (
	"fmt"
	"strings"

	"github.com/souldiary/notegen/internal/risk"
	"github.com/souldiary/notegen/internal/store"
)

// EmergencyNumber is the European emergency contact interpolated into every
// safety message.
const EmergencyNumber = "112"

var safetyIntro = map[risk.Category]string{
	risk.CategorySuicide:  "Quello che hai scritto ci preoccupa molto e la tua vita è importante. Non sei solo.",
	risk.CategoryViolence: "Quello che stai vivendo è una situazione di pericolo e non è colpa tua.",
	risk.CategorySelfHarm: "Il desiderio di farti del male è un segnale di una sofferenza che merita ascolto, non silenzio.",
}

// SafetyMessage composes the category-specific crisis message, preferring the
// clinician's mobile phone, then the office phone, then email contact.
func SafetyMessage(category risk.Category, clinician store.Clinician) string {
	intro, ok := safetyIntro[category]
	if !ok {
		intro = safetyIntro[risk.CategorySelfHarm]
	}

	var b strings.Builder
	b.WriteString(intro)
	fmt.Fprintf(&b, " Se sei in pericolo immediato chiama subito il %s.", EmergencyNumber)

	switch {
	case clinician.MobilePhone != "":
		fmt.Fprintf(&b, " Contatta ora il tuo medico al cellulare: %s.", clinician.MobilePhone)
	case clinician.OfficePhone != "":
		fmt.Fprintf(&b, " Contatta ora lo studio del tuo medico: %s.", clinician.OfficePhone)
	case clinician.Email != "":
		fmt.Fprintf(&b, " Contatta il tuo medico via email: %s.", clinician.Email)
	default:
		b.WriteString(" Contatta il tuo medico via email appena possibile.")
	}

	return b.String()
}
