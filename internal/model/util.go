package model

// MigrateAble is array of model instance, use for migrating database
var MigrateAble []interface{}

func init() {
	MigrateAble = append(
		MigrateAble,
		&Location{},
		&OnboardingSettings{},
		&User{},
		&Phase{},
		&TaskTemplate{},
		&Candidate{},
		&PhaseLog{},
		&Task{},
		&Event{},
		&IdempotencyRecord{},
		&EmailTemplate{},
	)
}
