package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	// Load env
	_ "github.com/joho/godotenv/autoload"

	m "github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

var testDBInstance *DBinstanceStruct
var teardown func(context.Context, ...testcontainers.TerminateOption) error

// Exported seeded fixtures for tests
var (
	TestLocation m.Location
	TestSettings m.OnboardingSettings
	TestOwner    m.User

	TestPhaseIntake    m.Phase
	TestPhaseScreening m.Phase
	TestPhaseTrial     m.Phase
	TestPhaseContract  m.Phase

	// TestCandidate1 is active and sits in the screening phase with an open phase log
	TestCandidate1 m.Candidate
	// TestCandidate2 is active and sits in the intake phase
	TestCandidate2 m.Candidate
)

// GetTestDB starts a PostgreSQL test container and returns a teardown function,
// the DB instance, and any error encountered during setup.
func GetTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, *DBinstanceStruct, error) {

	if testDBInstance != nil && teardown != nil {
		return teardown, testDBInstance, nil
	}

	// Database configuration
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), nat.Port("5432/tcp"))
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	config := &DBConfig{
		useConstr: true,
		Constr:    fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort.Port(), dbUser, dbPwd, dbName),
	}

	db, err := NewDBInstance(config)
	if err != nil {
		return dbContainer.Terminate, nil, err
	}

	// Seed a location with its onboarding pipeline and two candidates
	if err := seedTestData(db); err != nil {
		_ = dbContainer.Terminate(context.Background())
		return nil, nil, err
	}

	testDBInstance = db
	teardown = dbContainer.Terminate

	return dbContainer.Terminate, db, nil
}

// seedTestData inserts one location, its phases, settings, owner profile and
// two candidates if the database is still empty.
func seedTestData(db *DBinstanceStruct) error {
	var locationCount int64
	if err := db.Model(&m.Location{}).Count(&locationCount).Error; err != nil {
		return err
	}
	if locationCount > 0 {
		return loadTestData(db)
	}

	TestLocation = m.Location{Name: "Bistro Noord", City: "Amsterdam"}
	if err := db.Create(&TestLocation).Error; err != nil {
		return err
	}

	screeningOwner := "hr@bistronoord.example"
	phases := []m.Phase{
		{LocationID: TestLocation.ID, Name: "Sollicitatie", SortOrder: 10, IsActive: true},
		{LocationID: TestLocation.ID, Name: "Screening", SortOrder: 20, IsActive: true, PhaseOwnerEmail: &screeningOwner},
		{LocationID: TestLocation.ID, Name: "Proefdraaien", SortOrder: 30, IsActive: true},
		{LocationID: TestLocation.ID, Name: "Contract", SortOrder: 40, IsActive: true},
	}
	if err := db.Create(&phases).Error; err != nil {
		return err
	}
	TestPhaseIntake = phases[0]
	TestPhaseScreening = phases[1]
	TestPhaseTrial = phases[2]
	TestPhaseContract = phases[3]

	templates := []m.TaskTemplate{
		{PhaseID: TestPhaseScreening.ID, Title: "CV beoordelen"},
		{PhaseID: TestPhaseScreening.ID, Title: "Bevestiging versturen", IsAutomated: true},
		{PhaseID: TestPhaseTrial.ID, Title: "Proefdienst inplannen"},
	}
	if err := db.Create(&templates).Error; err != nil {
		return err
	}

	TestSettings = m.OnboardingSettings{
		LocationID:          TestLocation.ID,
		FirstReminderHours:  24,
		SecondReminderHours: 48,
		NoResponseDays:      7,
		ReminderEnabled:     true,
		ScreeningPhaseID:    &TestPhaseScreening.ID,
	}
	if err := db.Create(&TestSettings).Error; err != nil {
		return err
	}

	TestOwner = m.User{
		ID:         uuid.New(),
		LocationID: TestLocation.ID,
		Email:      "eigenaar@bistronoord.example",
		Role:       m.RoleOwner,
	}
	if err := db.Create(&TestOwner).Error; err != nil {
		return err
	}

	candidates := []m.Candidate{
		{
			ID:             uuid.New(),
			LocationID:     TestLocation.ID,
			FirstName:      "Eva",
			LastName:       "de Vries",
			Email:          "eva@example.com",
			Status:         m.CandidateStatusActive,
			Position:       "Bediening",
			Tags:           pq.StringArray{"parttime", "ervaren"},
			CurrentPhaseID: &TestPhaseScreening.ID,
		},
		{
			ID:             uuid.New(),
			LocationID:     TestLocation.ID,
			FirstName:      "Daan",
			LastName:       "Bakker",
			Email:          "daan@example.com",
			Status:         m.CandidateStatusActive,
			Position:       "Keuken",
			Tags:           pq.StringArray{"fulltime"},
			CurrentPhaseID: &TestPhaseIntake.ID,
		},
	}
	if err := db.Create(&candidates).Error; err != nil {
		return err
	}
	TestCandidate1 = candidates[0]
	TestCandidate2 = candidates[1]

	phaseLogs := []m.PhaseLog{
		{CandidateID: TestCandidate1.ID, PhaseID: TestPhaseScreening.ID, EnteredAt: time.Now()},
		{CandidateID: TestCandidate2.ID, PhaseID: TestPhaseIntake.ID, EnteredAt: time.Now()},
	}
	if err := db.Create(&phaseLogs).Error; err != nil {
		return err
	}

	// One template override, the rest falls back to the built-in defaults
	override := m.EmailTemplate{
		LocationID: TestLocation.ID,
		Kind:       m.TemplateConfirmation,
		Subject:    "Welkom bij [vestiging], [voornaam]!",
		Body:       "<p>Hoi [voornaam], bedankt voor je sollicitatie als [functie].</p>",
	}
	if err := db.Create(&override).Error; err != nil {
		return err
	}

	return nil
}

// loadTestData populates exported variables when records already exist.
func loadTestData(db *DBinstanceStruct) error {
	if err := db.First(&TestLocation, "name = ?", "Bistro Noord").Error; err != nil {
		return err
	}
	if err := db.First(&TestSettings, "location_id = ?", TestLocation.ID).Error; err != nil {
		return err
	}
	if err := db.First(&TestOwner, "location_id = ? AND role = ?", TestLocation.ID, m.RoleOwner).Error; err != nil {
		return err
	}

	var phases []m.Phase
	if err := db.Where("location_id = ?", TestLocation.ID).Order("sort_order ASC").Find(&phases).Error; err != nil {
		return err
	}
	for _, p := range phases {
		switch p.SortOrder {
		case 10:
			TestPhaseIntake = p
		case 20:
			TestPhaseScreening = p
		case 30:
			TestPhaseTrial = p
		case 40:
			TestPhaseContract = p
		}
	}

	_ = db.First(&TestCandidate1, "email = ?", "eva@example.com").Error
	_ = db.First(&TestCandidate2, "email = ?", "daan@example.com").Error

	return nil
}
