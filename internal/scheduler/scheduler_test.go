package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
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

// newStubScheduler builds a scheduler whose dispatcher runs in stub mode.
func newStubScheduler() *Scheduler {
	return &Scheduler{
		DB:         testDB,
		Ledger:     ledger.New(testDB),
		Dispatcher: &mailer.Dispatcher{DB: testDB, Events: events.NewLog(testDB), Client: &http.Client{}},
		Events:     events.NewLog(testDB),
		Workers:    2,
		Now:        time.Now,
	}
}

// makeLocation inserts a fresh location with a screening phase, settings and
// an owner profile, so every test sweeps its own tenant.
func makeLocation(t *testing.T, reminderEnabled bool) (model.Location, model.OnboardingSettings, model.Phase) {
	t.Helper()

	loc := model.Location{Name: "Test Vestiging " + uuid.NewString()[:8], City: "Utrecht"}
	if err := testDB.Create(&loc).Error; err != nil {
		t.Fatalf("failed to create location: %v", err)
	}

	screening := model.Phase{LocationID: loc.ID, Name: "Screening", SortOrder: 20, IsActive: true}
	if err := testDB.Create(&screening).Error; err != nil {
		t.Fatalf("failed to create screening phase: %v", err)
	}

	settings := model.OnboardingSettings{
		LocationID:          loc.ID,
		FirstReminderHours:  24,
		SecondReminderHours: 48,
		NoResponseDays:      7,
		ReminderEnabled:     reminderEnabled,
		ScreeningPhaseID:    &screening.ID,
	}
	if err := testDB.Create(&settings).Error; err != nil {
		t.Fatalf("failed to create settings: %v", err)
	}

	owner := model.User{ID: uuid.New(), LocationID: loc.ID, Email: "owner@test.example", Role: model.RoleOwner}
	if err := testDB.Create(&owner).Error; err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}

	return loc, settings, screening
}

func makeCandidateWithTask(t *testing.T, loc model.Location, phase model.Phase, firstName string, taskAgeHours int) (model.Candidate, model.Task) {
	t.Helper()

	c := model.Candidate{
		ID:             uuid.New(),
		LocationID:     loc.ID,
		FirstName:      firstName,
		LastName:       "Kandidaat",
		Email:          strings.ToLower(firstName) + "@example.com",
		Status:         model.CandidateStatusActive,
		Position:       "Bediening",
		CurrentPhaseID: &phase.ID,
	}
	if err := testDB.Create(&c).Error; err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}
	if err := testDB.Create(&model.PhaseLog{CandidateID: c.ID, PhaseID: phase.ID, EnteredAt: time.Now()}).Error; err != nil {
		t.Fatalf("failed to create phase log: %v", err)
	}

	task := model.Task{CandidateID: c.ID, PhaseID: phase.ID, Title: "CV beoordelen", Status: model.TaskStatusPending}
	if err := testDB.Create(&task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	backdateTask(t, task.ID, taskAgeHours)

	return c, task
}

func backdateTask(t *testing.T, taskID uint, hours int) {
	t.Helper()
	err := testDB.Model(&model.Task{}).Where("id = ?", taskID).
		Update("created_at", time.Now().Add(-time.Duration(hours)*time.Hour)).Error
	if err != nil {
		t.Fatalf("failed to backdate task: %v", err)
	}
}

func reminderEvents(t *testing.T, candidateID uuid.UUID) int64 {
	t.Helper()
	var n int64
	err := testDB.Model(&model.Event{}).
		Where("candidate_id = ? AND event_type = ?", candidateID, model.EventReminderSent).
		Count(&n).Error
	assert.NoError(t, err)
	return n
}

func TestRun_TierProgression(t *testing.T) {
	s := newStubScheduler()
	loc, _, screening := makeLocation(t, true)

	// task not yet overdue: 23h old with a 24h first reminder window
	c, task := makeCandidateWithTask(t, loc, screening, "Tier", 23)

	res, err := s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Reminders)
	assert.Equal(t, int64(0), reminderEvents(t, c.ID))

	// past the first window: exactly one tier-1 reminder
	backdateTask(t, task.ID, 25)
	res, err = s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Reminders)
	assert.Equal(t, 0, res.Escalations)
	assert.Equal(t, int64(1), reminderEvents(t, c.ID))

	var got model.Task
	assert.NoError(t, testDB.First(&got, "id = ?", task.ID).Error)
	assert.Equal(t, 1, got.ReminderTier)

	// immediate repeat sweep sends nothing extra
	res, err = s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Reminders)
	assert.Equal(t, int64(1), reminderEvents(t, c.ID))

	// past the second window: exactly one escalation
	backdateTask(t, task.ID, 49)
	res, err = s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Reminders)
	assert.Equal(t, 1, res.Escalations)
	assert.Equal(t, int64(2), reminderEvents(t, c.ID))

	assert.NoError(t, testDB.First(&got, "id = ?", task.ID).Error)
	assert.Equal(t, 2, got.ReminderTier)

	// no tier beyond 2, ever
	res, err = s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Reminders)
	assert.Equal(t, 0, res.Escalations)
	assert.Equal(t, int64(2), reminderEvents(t, c.ID))
}

func TestRun_NoResponseTransition(t *testing.T) {
	s := newStubScheduler()
	loc, _, screening := makeLocation(t, true)

	c, _ := makeCandidateWithTask(t, loc, screening, "Stil", 1)

	// candidate entered screening eight days ago
	assert.NoError(t, testDB.Model(&model.PhaseLog{}).
		Where("candidate_id = ?", c.ID).
		Update("entered_at", time.Now().AddDate(0, 0, -8)).Error)

	res, err := s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.NoResponse)

	var got model.Candidate
	assert.NoError(t, testDB.First(&got, "id = ?", c.ID).Error)
	assert.Equal(t, model.CandidateStatusNoResponse, got.Status)

	var n int64
	assert.NoError(t, testDB.Model(&model.Event{}).
		Where("candidate_id = ? AND event_type = ?", c.ID, model.EventAutoStatusChange).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)

	// a second sweep does not re-trigger the transition
	res, err = s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.NoResponse)
}

func TestRun_ReminderDisabledStillTransitionsNoResponse(t *testing.T) {
	s := newStubScheduler()
	loc, _, screening := makeLocation(t, false)

	c, _ := makeCandidateWithTask(t, loc, screening, "Uitgeschakeld", 30)
	assert.NoError(t, testDB.Model(&model.PhaseLog{}).
		Where("candidate_id = ?", c.ID).
		Update("entered_at", time.Now().AddDate(0, 0, -8)).Error)

	res, err := s.Run(context.Background())
	assert.NoError(t, err)

	// the overdue task is ignored, the stale candidate is not
	assert.Equal(t, int64(0), reminderEvents(t, c.ID))
	assert.Equal(t, 1, res.NoResponse)

	var got model.Candidate
	assert.NoError(t, testDB.First(&got, "id = ?", c.ID).Error)
	assert.Equal(t, model.CandidateStatusNoResponse, got.Status)
}

func TestRun_SkipsCandidatesNoLongerActive(t *testing.T) {
	s := newStubScheduler()
	loc, _, screening := makeLocation(t, true)

	c, _ := makeCandidateWithTask(t, loc, screening, "Vertrokken", 30)
	assert.NoError(t, testDB.Model(&model.Candidate{}).
		Where("id = ?", c.ID).
		Update("status", model.CandidateStatusWithdrawn).Error)

	res, err := s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, res.Reminders)
	assert.Equal(t, int64(0), reminderEvents(t, c.ID))
}

func TestRun_ProviderFailureIsIsolated(t *testing.T) {
	loc, _, screening := makeLocation(t, true)

	cA, taskA := makeCandidateWithTask(t, loc, screening, "Faalgeval", 30)
	cB, taskB := makeCandidateWithTask(t, loc, screening, "Gelukt", 30)

	// provider rejects only the reminder that mentions candidate A
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "Faalgeval") {
			http.Error(w, `{"message":"rejected"}`, http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg_ok"}`))
	}))
	defer srv.Close()

	s := newStubScheduler()
	s.Dispatcher = &mailer.Dispatcher{
		DB:      testDB,
		Events:  events.NewLog(testDB),
		APIKey:  "test-key",
		From:    "onboarding@test.example",
		BaseURL: srv.URL,
		Client:  srv.Client(),
	}

	res, err := s.Run(context.Background())
	assert.NoError(t, err)

	// only the delivered reminder is counted and recorded
	assert.Equal(t, 1, res.Reminders)
	assert.Equal(t, int64(0), reminderEvents(t, cA.ID))
	assert.Equal(t, int64(1), reminderEvents(t, cB.ID))

	var gotA, gotB model.Task
	assert.NoError(t, testDB.First(&gotA, "id = ?", taskA.ID).Error)
	assert.NoError(t, testDB.First(&gotB, "id = ?", taskB.ID).Error)
	assert.Equal(t, 0, gotA.ReminderTier)
	assert.Equal(t, 1, gotB.ReminderTier)

	// candidate A carries the failure on the timeline, and its claim failed
	var failed int64
	assert.NoError(t, testDB.Model(&model.Event{}).
		Where("candidate_id = ? AND event_type = ?", cA.ID, model.EventEmailFailed).
		Count(&failed).Error)
	assert.Equal(t, int64(1), failed)

	var rec model.IdempotencyRecord
	assert.NoError(t, testDB.First(&rec, "key = ?", fmt.Sprintf("reminder:%d:1", taskA.ID)).Error)
	assert.Equal(t, model.ClaimStatusFailed, rec.Status)
}

func TestRun_PhaseOwnerPreferredOverLocationOwner(t *testing.T) {
	s := newStubScheduler()
	loc, _, screening := makeLocation(t, true)

	ownerEmail := "chef@test.example"
	assert.NoError(t, testDB.Model(&model.Phase{}).
		Where("id = ?", screening.ID).
		Update("phase_owner_email", &ownerEmail).Error)

	c, _ := makeCandidateWithTask(t, loc, screening, "Eigenaar", 30)

	res, err := s.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Reminders)

	var ev model.Event
	assert.NoError(t, testDB.
		Where("candidate_id = ? AND event_type = ?", c.ID, model.EventReminderSent).
		First(&ev).Error)
	assert.Contains(t, string(ev.EventData), "chef@test.example")
}
