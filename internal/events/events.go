// Package events implement the append-only candidate timeline. Events are
// the audit trail shown in the UI and are never updated or deleted.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

// Log appends to and reads from the event table.
type Log struct {
	DB *database.DBinstanceStruct
}

// NewLog constructs a Log on the given database.
func NewLog(db *database.DBinstanceStruct) *Log {
	return &Log{DB: db}
}

// Append writes one event. The data map is marshalled to the jsonb column;
// nil data produces an empty object.
func (l *Log) Append(candidateID uuid.UUID, locationID uint, eventType string, data map[string]interface{}, triggeredBy string) error {
	return l.AppendTx(l.DB.DB, candidateID, locationID, eventType, data, triggeredBy)
}

// AppendTx is Append inside a caller-owned transaction, for writes that must
// commit atomically with other state (e.g. the task reminder tier).
func (l *Log) AppendTx(tx *gorm.DB, candidateID uuid.UUID, locationID uint, eventType string, data map[string]interface{}, triggeredBy string) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := model.Event{
		CandidateID: candidateID,
		LocationID:  locationID,
		EventType:   eventType,
		EventData:   payload,
		TriggeredBy: triggeredBy,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}

// ListForCandidate returns the newest events of a candidate, newest first.
// A non-positive limit defaults to 50.
func (l *Log) ListForCandidate(candidateID uuid.UUID, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.Event
	err := l.DB.Where("candidate_id = ?", candidateID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
