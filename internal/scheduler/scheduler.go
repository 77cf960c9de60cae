// Package scheduler implement the periodic reminder sweep of the onboarding
// engine. One Run evaluates, for every location with onboarding configured,
// the tiered task-reminder escalation and the no-response transition. Every
// unit of work is guarded by an idempotency claim so overlapping sweeps can
// never double-send.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	// Load env
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/ledger"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/mailer"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

// maxReminderTier is the highest escalation tier; there is no tier beyond 2.
const maxReminderTier = 2

// SweepResult are the aggregate counts of one scheduler run.
type SweepResult struct {
	Reminders   int `json:"reminders"`
	Escalations int `json:"escalations"`
	NoResponse  int `json:"no_response"`
}

// Scheduler runs the periodic sweep.
type Scheduler struct {
	DB         *database.DBinstanceStruct
	Ledger     *ledger.Ledger
	Dispatcher *mailer.Dispatcher
	Events     *events.Log

	// Workers bounds the number of concurrent sweep units
	Workers int
	// Now is replaceable in tests
	Now func() time.Time
}

// New constructs a Scheduler configured from the environment.
func New(db *database.DBinstanceStruct) *Scheduler {
	workers, err := strconv.Atoi(os.Getenv("SWEEP_WORKERS"))
	if err != nil || workers <= 0 {
		workers = 4
	}

	return &Scheduler{
		DB:         db,
		Ledger:     ledger.New(db),
		Dispatcher: mailer.NewDispatcher(db),
		Events:     events.NewLog(db),
		Workers:    workers,
		Now:        time.Now,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run performs one sweep over all configured locations. A failure loading
// the settings fails the whole invocation; every unit after that is
// isolated, so one bad task or candidate cannot abort the sweep.
func (s *Scheduler) Run(ctx context.Context) (SweepResult, error) {
	var allSettings []model.OnboardingSettings
	if err := s.DB.WithContext(ctx).Find(&allSettings).Error; err != nil {
		return SweepResult{}, fmt.Errorf("failed to load onboarding settings: %w", err)
	}

	var reminders, escalations, noResponse int64

	pool := new(errgroup.Group)
	pool.SetLimit(s.Workers)

	for _, settings := range allSettings {
		settings := settings

		if settings.ReminderEnabled {
			s.queueTaskReminders(ctx, pool, settings, &reminders, &escalations)
		}

		// The no-response transition runs regardless of reminder_enabled:
		// disabling reminders silences emails, not the pipeline hygiene.
		s.queueNoResponse(ctx, pool, settings, &noResponse)
	}

	// worker funcs swallow their own errors, Wait only joins
	_ = pool.Wait()

	return SweepResult{
		Reminders:   int(atomic.LoadInt64(&reminders)),
		Escalations: int(atomic.LoadInt64(&escalations)),
		NoResponse:  int(atomic.LoadInt64(&noResponse)),
	}, nil
}

// queueTaskReminders finds overdue pending manual tasks of active candidates
// and queues one reminder unit per task that is due for its next tier.
func (s *Scheduler) queueTaskReminders(ctx context.Context, pool *errgroup.Group, settings model.OnboardingSettings, reminders, escalations *int64) {
	now := s.now()
	firstCutoff := now.Add(-time.Duration(settings.FirstReminderHours) * time.Hour)
	secondCutoff := now.Add(-time.Duration(settings.SecondReminderHours) * time.Hour)

	var tasks []model.Task
	err := s.DB.WithContext(ctx).
		Joins("JOIN candidates ON candidates.id = tasks.candidate_id").
		Where("candidates.location_id = ? AND candidates.status = ?", settings.LocationID, model.CandidateStatusActive).
		Where("tasks.status = ? AND tasks.is_automated = ?", model.TaskStatusPending, false).
		Where("tasks.reminder_tier < ?", maxReminderTier).
		Where("tasks.created_at <= ?", firstCutoff).
		Find(&tasks).Error
	if err != nil {
		log.Printf("sweep: failed to load overdue tasks for location %d: %v", settings.LocationID, err)
		return
	}

	for _, task := range tasks {
		var tier int
		switch {
		case task.ReminderTier == 0:
			tier = 1
		case task.ReminderTier == 1 && !task.CreatedAt.After(secondCutoff):
			tier = 2
		default:
			continue
		}

		task := task
		pool.Go(func() error {
			if s.processTaskReminder(settings, task, tier) {
				if tier == 1 {
					atomic.AddInt64(reminders, 1)
				} else {
					atomic.AddInt64(escalations, 1)
				}
			}
			return nil
		})
	}
}

// processTaskReminder sends one tiered reminder for one task. Returns true
// when the reminder was actually sent and recorded. All failures are logged
// and swallowed; a failure after the claim marks the claim failed.
func (s *Scheduler) processTaskReminder(settings model.OnboardingSettings, task model.Task, tier int) bool {
	recipient, err := s.resolveReminderRecipient(settings.LocationID, task.PhaseID)
	if err != nil {
		log.Printf("sweep: failed to resolve recipient for task %d: %v", task.ID, err)
		return false
	}
	if recipient == "" {
		// no phase owner and no owner profile: nothing to do
		log.Printf("sweep: no reminder recipient for task %d (location %d), skipping", task.ID, settings.LocationID)
		return false
	}

	key := fmt.Sprintf("reminder:%d:%d", task.ID, tier)
	won, err := s.Ledger.Claim(key)
	if err != nil {
		log.Printf("sweep: failed to claim %s: %v", key, err)
		return false
	}
	if !won {
		return false
	}

	if err := s.sendTaskReminder(settings, task, tier, recipient); err != nil {
		log.Printf("sweep: reminder for task %d tier %d failed: %v", task.ID, tier, err)
		_ = s.Ledger.Fail(key, err.Error())
		return false
	}

	if err := s.Ledger.Complete(key, fmt.Sprintf("reminder tier %d sent to %s", tier, recipient)); err != nil {
		log.Printf("sweep: failed to complete claim %s: %v", key, err)
	}
	return true
}

func (s *Scheduler) sendTaskReminder(settings model.OnboardingSettings, task model.Task, tier int, recipient string) error {
	var candidate model.Candidate
	if err := s.DB.Preload("Location").First(&candidate, "id = ?", task.CandidateID).Error; err != nil {
		return fmt.Errorf("failed to load candidate %s: %w", task.CandidateID, err)
	}

	kind := model.TemplateInternalReminder
	if tier == maxReminderTier {
		kind = model.TemplateInternalReminderUrgent
	}
	tpl, err := mailer.ResolveTemplate(s.DB, settings.LocationID, kind)
	if err != nil {
		return err
	}

	renderCtx := mailer.RenderContext{
		Voornaam:   candidate.FirstName,
		Achternaam: candidate.LastName,
		Vestiging:  candidate.Location.Name,
		Functie:    candidate.Position,
	}

	delivered, err := s.Dispatcher.Send(mailer.EmailInput{
		To:          recipient,
		Subject:     mailer.Render(tpl.Subject, renderCtx),
		HTML:        mailer.Render(tpl.Body, renderCtx),
		CandidateID: candidate.ID,
		LocationID:  settings.LocationID,
		EmailType:   kind,
	})
	if err != nil {
		return err
	}
	if !delivered {
		// the email_failed event is already on the timeline; without a
		// delivered reminder the tier must not advance
		return errors.New("reminder email was not delivered")
	}

	// Tier counter and reminder_sent event commit together so the two can
	// never drift apart.
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND reminder_tier = ?", task.ID, tier-1).
			Update("reminder_tier", tier)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("reminder tier advanced by another sweep")
		}

		data := map[string]interface{}{
			"task_id":         task.ID,
			"task_title":      task.Title,
			"reminder_number": tier,
			"recipient":       recipient,
		}
		if tier == maxReminderTier {
			data["escalated"] = true
		}
		return s.Events.AppendTx(tx, candidate.ID, settings.LocationID, model.EventReminderSent, data, model.TriggeredByCron)
	})
}

// resolveReminderRecipient returns the phase owner email, falling back to
// the location's owner-role profile. Empty string means nobody to notify.
func (s *Scheduler) resolveReminderRecipient(locationID uint, phaseID uint) (string, error) {
	var phase model.Phase
	if err := s.DB.First(&phase, "id = ?", phaseID).Error; err != nil {
		return "", fmt.Errorf("failed to load phase %d: %w", phaseID, err)
	}
	if phase.PhaseOwnerEmail != nil && *phase.PhaseOwnerEmail != "" {
		return *phase.PhaseOwnerEmail, nil
	}

	var owner model.User
	err := s.DB.First(&owner, "location_id = ? AND role = ?", locationID, model.RoleOwner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return owner.Email, nil
}

// queueNoResponse finds active candidates stuck in the screening phase past
// the no-response window and queues one transition unit per candidate.
func (s *Scheduler) queueNoResponse(ctx context.Context, pool *errgroup.Group, settings model.OnboardingSettings, noResponse *int64) {
	screeningID, err := s.resolveScreeningPhase(settings)
	if err != nil {
		log.Printf("sweep: failed to resolve screening phase for location %d: %v", settings.LocationID, err)
		return
	}
	if screeningID == 0 {
		// location has no screening phase configured: nothing to do
		return
	}

	cutoff := s.now().AddDate(0, 0, -settings.NoResponseDays)

	var candidates []model.Candidate
	err = s.DB.WithContext(ctx).
		Joins("JOIN phase_logs ON phase_logs.candidate_id = candidates.id AND phase_logs.exited_at IS NULL").
		Where("candidates.location_id = ? AND candidates.status = ?", settings.LocationID, model.CandidateStatusActive).
		Where("candidates.current_phase_id = ?", screeningID).
		Where("phase_logs.entered_at <= ?", cutoff).
		Find(&candidates).Error
	if err != nil {
		log.Printf("sweep: failed to load stale screening candidates for location %d: %v", settings.LocationID, err)
		return
	}

	for _, candidate := range candidates {
		candidate := candidate
		pool.Go(func() error {
			if s.processNoResponse(settings, candidate) {
				atomic.AddInt64(noResponse, 1)
			}
			return nil
		})
	}
}

// resolveScreeningPhase prefers the configured reference and falls back to
// the legacy sort_order lookup. Zero means no screening phase exists.
func (s *Scheduler) resolveScreeningPhase(settings model.OnboardingSettings) (uint, error) {
	if settings.ScreeningPhaseID != nil {
		return *settings.ScreeningPhaseID, nil
	}

	var phase model.Phase
	err := s.DB.First(&phase, "location_id = ? AND sort_order = ? AND is_active = ?",
		settings.LocationID, model.ScreeningSortOrder, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return phase.ID, nil
}

// processNoResponse moves one candidate to no_response. No email is sent on
// this path; the status change plus its event is the whole effect.
func (s *Scheduler) processNoResponse(settings model.OnboardingSettings, candidate model.Candidate) bool {
	key := fmt.Sprintf("no_response:%s", candidate.ID)
	won, err := s.Ledger.Claim(key)
	if err != nil {
		log.Printf("sweep: failed to claim %s: %v", key, err)
		return false
	}
	if !won {
		return false
	}

	if err := s.transitionNoResponse(settings, candidate.ID); err != nil {
		log.Printf("sweep: no-response transition for %s failed: %v", candidate.ID, err)
		_ = s.Ledger.Fail(key, err.Error())
		return false
	}

	if err := s.Ledger.Complete(key, "status set to no_response"); err != nil {
		log.Printf("sweep: failed to complete claim %s: %v", key, err)
	}
	return true
}

func (s *Scheduler) transitionNoResponse(settings model.OnboardingSettings, candidateID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		// conditional update keeps the write idempotent at the row level
		res := tx.Model(&model.Candidate{}).
			Where("id = ? AND status = ?", candidateID, model.CandidateStatusActive).
			Update("status", model.CandidateStatusNoResponse)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("candidate already left active status")
		}

		return s.Events.AppendTx(tx, candidateID, settings.LocationID, model.EventAutoStatusChange, map[string]interface{}{
			"from":   model.CandidateStatusActive,
			"to":     model.CandidateStatusNoResponse,
			"reason": fmt.Sprintf("no response for %d days in screening", settings.NoResponseDays),
		}, model.TriggeredByCron)
	})
}
