package model

var (
	// TemplateConfirmation is the welcome email sent on candidate creation
	TemplateConfirmation = "confirmation"
	// TemplateRejection is sent when a candidate gets rejected
	TemplateRejection = "rejection"
	// TemplateInternalReminder is the tier-1 overdue-task reminder to staff
	TemplateInternalReminder = "internal_reminder"
	// TemplateInternalReminderUrgent is the tier-2 escalated reminder to staff
	TemplateInternalReminderUrgent = "internal_reminder_urgent"
)

// EmailTemplate is a per-location override of one of the built-in templates.
// Subject and body use bracket placeholders, see the mailer package.
type EmailTemplate struct {
	ID         uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	LocationID uint     `gorm:"not null;uniqueIndex:ux_location_kind,priority:1" json:"location_id"`
	Location   Location `gorm:"foreignKey:LocationID;references:ID" json:"-"`
	Kind       string   `gorm:"type:text;not null;uniqueIndex:ux_location_kind,priority:2" json:"kind"`
	Subject    string   `gorm:"type:text;not null" json:"subject"`
	Body       string   `gorm:"type:text;not null" json:"body"`
}

// DefaultTemplates are used when a location has no override for a kind.
var DefaultTemplates = map[string]EmailTemplate{
	TemplateConfirmation: {
		Kind:    TemplateConfirmation,
		Subject: "Bedankt voor je sollicitatie bij [vestiging]",
		Body: "<p>Hoi [voornaam],</p><p>Bedankt voor je sollicitatie op de functie " +
			"[functie] bij [vestiging]. We nemen zo snel mogelijk contact met je op.</p>",
	},
	TemplateRejection: {
		Kind:    TemplateRejection,
		Subject: "Je sollicitatie bij [vestiging]",
		Body: "<p>Hoi [voornaam],</p><p>Helaas hebben we besloten niet verder te gaan " +
			"met je sollicitatie voor [functie] bij [vestiging]. Bedankt voor je interesse.</p>",
	},
	TemplateInternalReminder: {
		Kind:    TemplateInternalReminder,
		Subject: "Openstaande taak voor [voornaam] [achternaam]",
		Body: "<p>Er staat nog een onboardingtaak open voor [voornaam] [achternaam] " +
			"([functie]) bij [vestiging]. Pak deze op als je kunt.</p>",
	},
	TemplateInternalReminderUrgent: {
		Kind:    TemplateInternalReminderUrgent,
		Subject: "URGENT: taak voor [voornaam] [achternaam] blijft liggen",
		Body: "<p>De onboardingtaak voor [voornaam] [achternaam] ([functie]) bij " +
			"[vestiging] is al twee keer aangekondigd en staat nog steeds open.</p>",
	},
}
