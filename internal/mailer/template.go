// Package mailer implement the notification side of the onboarding engine:
// template rendering and delivery through the email provider.
package mailer

import "strings"

// RenderContext carries the values substituted into an email template.
type RenderContext struct {
	Voornaam   string
	Achternaam string
	Vestiging  string
	Functie    string
	Datum      string
}

// Render substitutes the bracket placeholders of a template string from the
// context. Functie defaults to "Open positie" and Datum to an empty string
// when absent. Pure function, no side effects.
func Render(template string, ctx RenderContext) string {
	functie := ctx.Functie
	if functie == "" {
		functie = "Open positie"
	}

	replacer := strings.NewReplacer(
		"[voornaam]", ctx.Voornaam,
		"[achternaam]", ctx.Achternaam,
		"[vestiging]", ctx.Vestiging,
		"[functie]", functie,
		"[datum]", ctx.Datum,
	)
	return replacer.Replace(template)
}
