// Package agent implement the event-driven side of the onboarding engine.
// The action layer persists its own state change first and then posts one
// lifecycle event here; delivery is at-least-once, so every side effect is
// guarded by an idempotency claim.
package agent

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/ledger"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/mailer"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

var (
	// EventCandidateCreated fires after a new application was stored
	EventCandidateCreated = "candidate_created"
	// EventPhaseChanged fires after a candidate was moved to another phase
	EventPhaseChanged = "phase_changed"
	// EventCandidateRejected fires after a candidate was rejected
	EventCandidateRejected = "candidate_rejected"
	// EventTaskCompleted fires after a task was completed by a user
	EventTaskCompleted = "task_completed"
)

// LifecycleEvent is the payload posted by the action layer.
type LifecycleEvent struct {
	Type        string    `json:"type" binding:"required"`
	CandidateID uuid.UUID `json:"candidate_id" binding:"required"`
	LocationID  uint      `json:"location_id"`
	OldPhaseID  *uint     `json:"old_phase_id"`
	NewPhaseID  *uint     `json:"new_phase_id"`
	TaskID      *uint     `json:"task_id"`
}

// Agent handles candidate lifecycle events.
type Agent struct {
	DB         *database.DBinstanceStruct
	Ledger     *ledger.Ledger
	Dispatcher *mailer.Dispatcher
	Events     *events.Log
}

// New constructs an Agent with its collaborators on the given database.
func New(db *database.DBinstanceStruct) *Agent {
	return &Agent{
		DB:         db,
		Ledger:     ledger.New(db),
		Dispatcher: mailer.NewDispatcher(db),
		Events:     events.NewLog(db),
	}
}

// Handle processes one lifecycle event. Errors returned here surface as a
// non-2xx response so the caller can retry; retried deliveries are deduped
// by the idempotency claims.
func (a *Agent) Handle(ev LifecycleEvent) error {
	candidate, err := a.loadCandidate(ev.CandidateID)
	if err != nil {
		return err
	}

	switch ev.Type {
	case EventCandidateCreated:
		return a.handleCandidateCreated(candidate)
	case EventPhaseChanged:
		return a.handlePhaseChanged(candidate, ev)
	case EventCandidateRejected:
		return a.handleCandidateRejected(candidate)
	case EventTaskCompleted:
		// extension point, currently log only
		log.Printf("agent: task completed for candidate %s (task %v)", candidate.ID, ev.TaskID)
		return nil
	default:
		return fmt.Errorf("unknown lifecycle event type %q", ev.Type)
	}
}

func (a *Agent) loadCandidate(id uuid.UUID) (model.Candidate, error) {
	var candidate model.Candidate
	err := a.DB.Preload("Location").First(&candidate, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, fmt.Errorf("candidate %s not found", id)
		}
		return candidate, fmt.Errorf("failed to load candidate %s: %w", id, err)
	}
	return candidate, nil
}

// handleCandidateCreated sends the welcome email once and completes the
// automated tasks of the phase the candidate starts in.
func (a *Agent) handleCandidateCreated(candidate model.Candidate) error {
	key := fmt.Sprintf("candidate_created:%s", candidate.ID)
	won, err := a.Ledger.Claim(key)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("agent: duplicate candidate_created for %s, skipping", candidate.ID)
		return nil
	}

	if err := a.sendLifecycleEmail(candidate, model.TemplateConfirmation); err != nil {
		_ = a.Ledger.Fail(key, err.Error())
		return err
	}

	if candidate.CurrentPhaseID != nil {
		if _, err := a.completeAutomatedTasks(candidate, *candidate.CurrentPhaseID); err != nil {
			_ = a.Ledger.Fail(key, err.Error())
			return err
		}
	}

	return a.Ledger.Complete(key, "welcome sent")
}

// handlePhaseChanged completes the automated tasks of the new phase only.
func (a *Agent) handlePhaseChanged(candidate model.Candidate, ev LifecycleEvent) error {
	if ev.NewPhaseID == nil {
		return fmt.Errorf("phase_changed event for %s is missing new_phase_id", candidate.ID)
	}

	key := fmt.Sprintf("phase_changed:%s:%d", candidate.ID, *ev.NewPhaseID)
	won, err := a.Ledger.Claim(key)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("agent: duplicate phase_changed for %s into phase %d, skipping", candidate.ID, *ev.NewPhaseID)
		return nil
	}

	n, err := a.completeAutomatedTasks(candidate, *ev.NewPhaseID)
	if err != nil {
		_ = a.Ledger.Fail(key, err.Error())
		return err
	}

	return a.Ledger.Complete(key, fmt.Sprintf("completed %d automated tasks", n))
}

// handleCandidateRejected sends the rejection email once. No task mutation.
func (a *Agent) handleCandidateRejected(candidate model.Candidate) error {
	key := fmt.Sprintf("candidate_rejected:%s", candidate.ID)
	won, err := a.Ledger.Claim(key)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("agent: duplicate candidate_rejected for %s, skipping", candidate.ID)
		return nil
	}

	if err := a.sendLifecycleEmail(candidate, model.TemplateRejection); err != nil {
		_ = a.Ledger.Fail(key, err.Error())
		return err
	}

	return a.Ledger.Complete(key, "rejection sent")
}

func (a *Agent) sendLifecycleEmail(candidate model.Candidate, kind string) error {
	tpl, err := mailer.ResolveTemplate(a.DB, candidate.LocationID, kind)
	if err != nil {
		return err
	}

	renderCtx := mailer.RenderContext{
		Voornaam:   candidate.FirstName,
		Achternaam: candidate.LastName,
		Vestiging:  candidate.Location.Name,
		Functie:    candidate.Position,
	}

	delivered, err := a.Dispatcher.Send(mailer.EmailInput{
		To:          candidate.Email,
		Subject:     mailer.Render(tpl.Subject, renderCtx),
		HTML:        mailer.Render(tpl.Body, renderCtx),
		CandidateID: candidate.ID,
		LocationID:  candidate.LocationID,
		EmailType:   kind,
	})
	if err != nil {
		return err
	}
	if !delivered {
		// delivery failure degrades silently: the email_failed event is on
		// the timeline and the workflow moves on
		log.Printf("agent: %s email to %s was not delivered", kind, candidate.Email)
	}
	return nil
}

// completeAutomatedTasks flips every pending automated task of the phase to
// completed in a single conditional update. Set-based on purpose: under
// concurrent invocations each call only affects rows still pending, and the
// RETURNING clause tells us exactly which rows this call changed so every
// changed row gets exactly one event.
func (a *Agent) completeAutomatedTasks(candidate model.Candidate, phaseID uint) (int, error) {
	now := time.Now()
	var updated []model.Task
	res := a.DB.Model(&updated).
		Clauses(clause.Returning{}).
		Where("candidate_id = ? AND phase_id = ? AND is_automated = ? AND status = ?",
			candidate.ID, phaseID, true, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusCompleted,
			"completed_at": &now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to complete automated tasks: %w", res.Error)
	}

	for _, task := range updated {
		err := a.Events.Append(candidate.ID, candidate.LocationID, model.EventTaskCompleted, map[string]interface{}{
			"task_id":   task.ID,
			"title":     task.Title,
			"automated": true,
		}, model.TriggeredByAgent)
		if err != nil {
			return 0, err
		}
	}

	return len(updated), nil
}
