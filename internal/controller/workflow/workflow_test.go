package workflow

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/auth"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/middleware"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/testutil"
)

var testDB *database.DBinstanceStruct

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	auth.SECRET_KEY = "workflow-test-secret"
	os.Unsetenv("RESEND_API_KEY")

	var err error
	var teardown func(context.Context, ...testcontainers.TerminateOption) error
	teardown, testDB, err = database.GetTestDB()
	if err != nil {
		os.Exit(1)
	}
	code := m.Run()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if teardown != nil {
		_ = teardown(ctx)
	}
	os.Exit(code)
}

func workflowEngine() *gin.Engine {
	controller := NewWorkflowController(testDB)

	r := gin.New()
	v1 := r.Group("/api/v1", middleware.RequireServiceAuth())
	v1.POST("/agent/event", controller.HandleLifecycleEvent)
	v1.POST("/scheduler/run", controller.RunSweep)
	v1.GET("/candidates/:id/events", controller.GetCandidateEvents)
	return r
}

func serviceToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateServiceToken("action-layer", time.Minute)
	assert.NoError(t, err)
	return token
}

func TestHandleLifecycleEvent_RequiresToken(t *testing.T) {
	r := workflowEngine()

	rec, _ := testutil.MakeJSONRequest(gin.H{
		"type":         "candidate_created",
		"candidate_id": database.TestCandidate2.ID.String(),
	}, "", r, "/api/v1/agent/event", http.MethodPost)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLifecycleEvent_RejectsGarbageToken(t *testing.T) {
	r := workflowEngine()

	rec, _ := testutil.MakeJSONRequest(gin.H{
		"type":         "candidate_created",
		"candidate_id": database.TestCandidate2.ID.String(),
	}, "not-a-token", r, "/api/v1/agent/event", http.MethodPost)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLifecycleEvent_BadPayload(t *testing.T) {
	r := workflowEngine()

	rec, resp := testutil.MakeJSONRequest(gin.H{
		"candidate_id": database.TestCandidate2.ID.String(),
	}, serviceToken(t), r, "/api/v1/agent/event", http.MethodPost)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "Invalid lifecycle event")
}

func TestHandleLifecycleEvent_CandidateCreated(t *testing.T) {
	r := workflowEngine()

	rec, resp := testutil.MakeJSONRequest(gin.H{
		"type":         "candidate_created",
		"candidate_id": database.TestCandidate2.ID.String(),
		"location_id":  database.TestLocation.ID,
	}, serviceToken(t), r, "/api/v1/agent/event", http.MethodPost)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Event processed", resp["message"])

	var sent []model.Event
	err := testDB.Where("candidate_id = ? AND event_type = ?",
		database.TestCandidate2.ID, model.EventEmailSent).Find(&sent).Error
	assert.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestRunSweep(t *testing.T) {
	r := workflowEngine()

	rec, resp := testutil.MakeJSONRequest(gin.H{}, serviceToken(t), r,
		"/api/v1/scheduler/run", http.MethodPost)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, resp, "reminders")
	assert.Contains(t, resp, "escalations")
	assert.Contains(t, resp, "no_response")
}

func TestGetCandidateEvents(t *testing.T) {
	r := workflowEngine()

	log := events.NewLog(testDB)
	err := log.Append(database.TestCandidate1.ID, database.TestLocation.ID,
		model.EventTaskCompleted, map[string]interface{}{"task_title": "CV beoordelen"}, model.TriggeredByUser)
	assert.NoError(t, err)

	rec, resp := testutil.MakeJSONRequest(gin.H{}, serviceToken(t), r,
		"/api/v1/candidates/"+database.TestCandidate1.ID.String()+"/events", http.MethodGet)

	assert.Equal(t, http.StatusOK, rec.Code)
	timeline, ok := resp["events"].([]interface{})
	assert.True(t, ok)
	assert.NotEmpty(t, timeline)
}

func TestGetCandidateEvents_InvalidID(t *testing.T) {
	r := workflowEngine()

	rec, resp := testutil.MakeJSONRequest(gin.H{}, serviceToken(t), r,
		"/api/v1/candidates/not-a-uuid/events", http.MethodGet)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid candidate id", resp["error"])
}
