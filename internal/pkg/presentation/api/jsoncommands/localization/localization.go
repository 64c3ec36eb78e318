package localization

import (
	"fmt"

	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const InvalidRequest string = "Operation could not be completed because the request sent to the server was not valid or not properly formatted."

var swedish = map[string]string{
	InvalidRequest:                                        "Åtgärden kunde inte slutföras eftersom begäran som skickades till servern inte var giltig eller inte korrekt formaterad.",
	jcerrors.UserNotAuthenticated:                         "Användaren är inte autentiserad.",
	"Too many requests.":                                  "För många anrop.",
	"Query parameter 'q' is required.":                    "Frågeparametern 'q' är obligatorisk.",
	"Inserting a record that already exists in database.": "Posten som läggs till finns redan i databasen.",
	"Updating a record that does not exist in database.":  "Posten som uppdateras finns inte i databasen.",
	"Deleting a record that does not exist in database.":  "Posten som tas bort finns inte i databasen.",
}

// Localizer translates messages to the language that best matches the
// Accept-Language header of a request. Messages without a translation are
// used as they are.
type Localizer struct {
	catalog   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	known     map[string]bool
}

func New() *Localizer {
	supported := []language.Tag{language.English, language.Swedish}

	l := &Localizer{
		catalog:   catalog.NewBuilder(catalog.Fallback(language.English)),
		supported: supported,
		matcher:   language.NewMatcher(supported),
		known:     map[string]bool{},
	}

	for key, translation := range swedish {
		l.catalog.SetString(language.English, key, key)
		l.catalog.SetString(language.Swedish, key, translation)
		l.known[key] = true
	}

	return l
}

// Language returns the supported language that best matches acceptLanguage
func (l *Localizer) Language(acceptLanguage string) language.Tag {
	_, idx := language.MatchStrings(l.matcher, acceptLanguage)
	return l.supported[idx]
}

// Localize formats msg with params in the language that best matches acceptLanguage
func (l *Localizer) Localize(acceptLanguage, msg string, params ...any) string {
	if !l.known[msg] {
		if len(params) == 0 {
			return msg
		}
		return fmt.Sprintf(msg, params...)
	}

	p := message.NewPrinter(l.Language(acceptLanguage), message.Catalog(l.catalog))
	return p.Sprintf(msg, params...)
}
