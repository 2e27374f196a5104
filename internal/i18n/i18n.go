// Package i18n holds the French and English UI strings.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/pipeline"
)

// Message keys. The key is also the English text.
const (
	MsgTitle         = "Client Solvency Prediction"
	MsgPageTitle     = "Solvency Prediction"
	MsgSettings      = "Settings"
	MsgModelChoice   = "Model selection:"
	MsgClientInfo    = "Client information"
	MsgAge           = "Age"
	MsgMarital       = "Marital status"
	MsgExpenses      = "Monthly expenses (€)"
	MsgIncome        = "Monthly income (€)"
	MsgAmount        = "Credit amount (€)"
	MsgPrice         = "Purchase price (€)"
	MsgSubmit        = "Predict"
	MsgSingle        = "Single"
	MsgMarried       = "Married"
	MsgDivorced      = "Divorced"
	MsgSolvent       = "Solvent (default probability: %s)"
	MsgNotSolvent    = "Not solvent (probability: %s)"
	MsgModelUsed     = "Model used: %s"
	MsgPredictionErr = "Prediction error: %s"
	MsgLoadErr       = "Loading error: %s"
	MsgFooter        = "Solvency prediction system - Class project"
	MsgInvalidRecord = "Invalid input: %s"
)

var french = map[string]string{
	MsgTitle:         "Prédiction de Solvabilité Client",
	MsgPageTitle:     "Prédiction de Solvabilité",
	MsgSettings:      "Paramètres",
	MsgModelChoice:   "Sélection du modèle :",
	MsgClientInfo:    "Informations Client",
	MsgAge:           "Âge",
	MsgMarital:       "Statut marital",
	MsgExpenses:      "Dépenses mensuelles (€)",
	MsgIncome:        "Revenu mensuel (€)",
	MsgAmount:        "Montant crédit (€)",
	MsgPrice:         "Prix achat (€)",
	MsgSubmit:        "Prédire",
	MsgSingle:        "Célibataire",
	MsgMarried:       "Marié(e)",
	MsgDivorced:      "Divorcé(e)",
	MsgSolvent:       "Solvable (Probabilité de défaut: %s)",
	MsgNotSolvent:    "Non Solvable (Probabilité: %s)",
	MsgModelUsed:     "Modèle utilisé : %s",
	MsgPredictionErr: "Erreur de prédiction : %s",
	MsgLoadErr:       "Erreur de chargement : %s",
	MsgFooter:        "Système de prédiction de solvabilité - Projet de classe",
	MsgInvalidRecord: "Saisie invalide : %s",
}

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, fr := range french {
		b.SetString(language.French, key, fr)
		b.SetString(language.English, key, key)
	}
	return b
}

// Supported lists the languages with a catalog
var Supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(Supported)

// Localizer formats UI strings for one language
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for lang, falling back to French
func New(lang string) *Localizer {
	tag := language.French
	if lang = strings.TrimSpace(lang); lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = Supported[idx]
			}
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Lang returns the BCP 47 code in use
func (l *Localizer) Lang() string {
	return l.tag.String()
}

// T formats the message registered under key
func (l *Localizer) T(key string, args ...interface{}) string {
	return l.printer.Sprintf(key, args...)
}

// Percent formats a probability with one decimal, e.g. "63,4 %" in French
func (l *Localizer) Percent(p float64) string {
	return l.printer.Sprintf("%.1f", p*100) + " %"
}

// Verdict renders the decision banner for res
func (l *Localizer) Verdict(res *pipeline.Result) string {
	if res.Label == pipeline.LabelNotSolvent {
		return l.T(MsgNotSolvent, l.Percent(res.Probability))
	}
	return l.T(MsgSolvent, l.Percent(res.Probability))
}

// ModelUsed renders the "model used" notice
func (l *Localizer) ModelUsed(displayName string) string {
	return l.T(MsgModelUsed, displayName)
}

// Marital returns the label for a marital status code
func (l *Localizer) Marital(m model.MaritalStatus) string {
	switch m {
	case model.Single:
		return l.T(MsgSingle)
	case model.Married:
		return l.T(MsgMarried)
	case model.Divorced:
		return l.T(MsgDivorced)
	default:
		return m.String()
	}
}
