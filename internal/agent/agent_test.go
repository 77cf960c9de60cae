package agent

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/ledger"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/mailer"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

var testDB *database.DBinstanceStruct

func TestMain(m *testing.M) {
	var err error
	var tdTeardown func(context.Context, ...testcontainers.TerminateOption) error
	tdTeardown, testDB, err = database.GetTestDB()
	if err != nil {
		os.Exit(1)
	}
	m.Run()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if tdTeardown != nil {
		_ = tdTeardown(ctx)
	}
}

// newStubAgent builds an agent whose dispatcher runs in stub mode so no
// provider call leaves the test.
func newStubAgent() *Agent {
	return &Agent{
		DB:         testDB,
		Ledger:     ledger.New(testDB),
		Dispatcher: &mailer.Dispatcher{DB: testDB, Events: events.NewLog(testDB), Client: &http.Client{}},
		Events:     events.NewLog(testDB),
	}
}

// makeCandidate inserts a fresh active candidate in the given phase with a
// pending automated and a pending manual task there.
func makeCandidate(t *testing.T, phaseID uint) model.Candidate {
	t.Helper()

	c := model.Candidate{
		ID:             uuid.New(),
		LocationID:     database.TestLocation.ID,
		FirstName:      "Test",
		LastName:       "Kandidaat",
		Email:          "kandidaat@example.com",
		Status:         model.CandidateStatusActive,
		Position:       "Bediening",
		CurrentPhaseID: &phaseID,
	}
	if err := testDB.Create(&c).Error; err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}

	tasks := []model.Task{
		{CandidateID: c.ID, PhaseID: phaseID, Title: "Bevestiging versturen", Status: model.TaskStatusPending, IsAutomated: true},
		{CandidateID: c.ID, PhaseID: phaseID, Title: "CV beoordelen", Status: model.TaskStatusPending},
	}
	if err := testDB.Create(&tasks).Error; err != nil {
		t.Fatalf("failed to create tasks: %v", err)
	}

	return c
}

func countCandidateEvents(t *testing.T, candidateID uuid.UUID, eventType string) int64 {
	t.Helper()
	var n int64
	err := testDB.Model(&model.Event{}).
		Where("candidate_id = ? AND event_type = ?", candidateID, eventType).
		Count(&n).Error
	assert.NoError(t, err)
	return n
}

func TestHandle_CandidateCreated_Idempotent(t *testing.T) {
	a := newStubAgent()
	c := makeCandidate(t, database.TestPhaseScreening.ID)

	ev := LifecycleEvent{Type: EventCandidateCreated, CandidateID: c.ID, LocationID: c.LocationID}

	assert.NoError(t, a.Handle(ev))
	// duplicate delivery of the same logical event
	assert.NoError(t, a.Handle(ev))

	assert.Equal(t, int64(1), countCandidateEvents(t, c.ID, model.EventEmailSent))
	assert.Equal(t, int64(1), countCandidateEvents(t, c.ID, model.EventTaskCompleted))

	// the automated task is completed, the manual one untouched
	var automated, manual model.Task
	assert.NoError(t, testDB.First(&automated, "candidate_id = ? AND is_automated = ?", c.ID, true).Error)
	assert.Equal(t, model.TaskStatusCompleted, automated.Status)
	assert.NotNil(t, automated.CompletedAt)

	assert.NoError(t, testDB.First(&manual, "candidate_id = ? AND is_automated = ?", c.ID, false).Error)
	assert.Equal(t, model.TaskStatusPending, manual.Status)
}

func TestHandle_PhaseChanged_CompletesNewPhaseOnly(t *testing.T) {
	a := newStubAgent()
	c := makeCandidate(t, database.TestPhaseScreening.ID)

	// pending automated task in the trial phase the candidate moves into
	trialTask := model.Task{
		CandidateID: c.ID,
		PhaseID:     database.TestPhaseTrial.ID,
		Title:       "Proefdienst bevestigen",
		Status:      model.TaskStatusPending,
		IsAutomated: true,
	}
	assert.NoError(t, testDB.Create(&trialTask).Error)

	ev := LifecycleEvent{
		Type:        EventPhaseChanged,
		CandidateID: c.ID,
		LocationID:  c.LocationID,
		OldPhaseID:  &database.TestPhaseScreening.ID,
		NewPhaseID:  &database.TestPhaseTrial.ID,
	}
	assert.NoError(t, a.Handle(ev))

	// trial task completed
	var got model.Task
	assert.NoError(t, testDB.First(&got, "id = ?", trialTask.ID).Error)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)

	// the automated task in the old (screening) phase is untouched
	var screening model.Task
	assert.NoError(t, testDB.First(&screening, "candidate_id = ? AND phase_id = ? AND is_automated = ?",
		c.ID, database.TestPhaseScreening.ID, true).Error)
	assert.Equal(t, model.TaskStatusPending, screening.Status)

	// exactly one task_completed event, and a repeat delivery adds none
	assert.Equal(t, int64(1), countCandidateEvents(t, c.ID, model.EventTaskCompleted))
	assert.NoError(t, a.Handle(ev))
	assert.Equal(t, int64(1), countCandidateEvents(t, c.ID, model.EventTaskCompleted))
}

func TestHandle_CandidateRejected_SendsOnce(t *testing.T) {
	a := newStubAgent()
	c := makeCandidate(t, database.TestPhaseScreening.ID)

	ev := LifecycleEvent{Type: EventCandidateRejected, CandidateID: c.ID, LocationID: c.LocationID}
	assert.NoError(t, a.Handle(ev))
	assert.NoError(t, a.Handle(ev))

	assert.Equal(t, int64(1), countCandidateEvents(t, c.ID, model.EventEmailSent))
	// rejection never touches tasks
	assert.Equal(t, int64(0), countCandidateEvents(t, c.ID, model.EventTaskCompleted))
}

func TestHandle_TaskCompletedIsLogOnly(t *testing.T) {
	a := newStubAgent()
	c := makeCandidate(t, database.TestPhaseScreening.ID)

	taskID := uint(7)
	ev := LifecycleEvent{Type: EventTaskCompleted, CandidateID: c.ID, LocationID: c.LocationID, TaskID: &taskID}
	assert.NoError(t, a.Handle(ev))

	assert.Equal(t, int64(0), countCandidateEvents(t, c.ID, model.EventEmailSent))
}

func TestHandle_Errors(t *testing.T) {
	a := newStubAgent()
	c := makeCandidate(t, database.TestPhaseScreening.ID)

	// unknown event type
	err := a.Handle(LifecycleEvent{Type: "nonsense", CandidateID: c.ID})
	assert.Error(t, err)

	// phase_changed without target phase
	err = a.Handle(LifecycleEvent{Type: EventPhaseChanged, CandidateID: c.ID})
	assert.Error(t, err)

	// unknown candidate
	err = a.Handle(LifecycleEvent{Type: EventCandidateCreated, CandidateID: uuid.New()})
	assert.Error(t, err)
}
