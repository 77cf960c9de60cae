package mailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	// Load env
	_ "github.com/joho/godotenv/autoload"
	"gorm.io/gorm"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/database"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/events"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/model"
)

// EmailInput describes one notification to deliver.
type EmailInput struct {
	To          string
	Subject     string
	HTML        string
	CandidateID uuid.UUID
	LocationID  uint
	EmailType   string
}

// providerRequest is the request body of the email provider
type providerRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// providerResponse is the response of the email provider
type providerResponse struct {
	ID string `json:"id"`
}

// Dispatcher sends notification emails and records exactly one audit event
// per invocation. Without a provider key it runs in stub mode: the email is
// logged locally and an email_sent event tagged stub=true is appended, so
// downstream tier logic behaves identically either way.
type Dispatcher struct {
	DB     *database.DBinstanceStruct
	Events *events.Log

	APIKey  string
	From    string
	BaseURL string
	Client  *http.Client
}

// NewDispatcher constructs a Dispatcher configured from the environment.
func NewDispatcher(db *database.DBinstanceStruct) *Dispatcher {
	baseURL := os.Getenv("RESEND_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	from := os.Getenv("EMAIL_FROM")
	if from == "" {
		from = "onboarding@resto-spark-flow.app"
	}

	return &Dispatcher{
		DB:      db,
		Events:  events.NewLog(db),
		APIKey:  os.Getenv("RESEND_API_KEY"),
		From:    from,
		BaseURL: baseURL,
		Client:  &http.Client{},
	}
}

// Send delivers one email and reports whether delivery happened. Expected
// delivery failures (non-2xx, transport errors) are recorded as an
// email_failed event and return (false, nil); a stub send counts as
// delivered. Only a failing event append returns an error, since without
// the audit record the tier bookkeeping would be wrong.
func (d *Dispatcher) Send(in EmailInput) (bool, error) {
	if d.APIKey == "" {
		log.Printf("email stub: type=%s to=%s subject=%q", in.EmailType, in.To, in.Subject)
		err := d.Events.Append(in.CandidateID, in.LocationID, model.EventEmailSent, map[string]interface{}{
			"email_type": in.EmailType,
			"to":         in.To,
			"subject":    in.Subject,
			"stub":       true,
		}, model.TriggeredBySystem)
		return err == nil, err
	}

	providerID, err := d.deliver(in)
	if err != nil {
		log.Printf("email delivery failed: type=%s to=%s: %v", in.EmailType, in.To, err)
		appendErr := d.Events.Append(in.CandidateID, in.LocationID, model.EventEmailFailed, map[string]interface{}{
			"email_type": in.EmailType,
			"to":         in.To,
			"error":      err.Error(),
		}, model.TriggeredBySystem)
		return false, appendErr
	}

	appendErr := d.Events.Append(in.CandidateID, in.LocationID, model.EventEmailSent, map[string]interface{}{
		"email_type":  in.EmailType,
		"to":          in.To,
		"subject":     in.Subject,
		"provider_id": providerID,
	}, model.TriggeredBySystem)
	return appendErr == nil, appendErr
}

// deliver performs the provider call and returns the provider message id.
func (d *Dispatcher) deliver(in EmailInput) (string, error) {
	requestBody := providerRequest{
		From:    d.From,
		To:      in.To,
		Subject: in.Subject,
		HTML:    in.HTML,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", d.BaseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.APIKey))

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call email provider: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Printf("warning: failed to close response body: %v", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("email provider error (status %d): %s", resp.StatusCode, string(body))
	}

	var providerResp providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&providerResp); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}

	return providerResp.ID, nil
}

// ResolveTemplate returns the location's override for kind when present,
// otherwise the built-in default. An unknown kind is a programming error.
func ResolveTemplate(db *database.DBinstanceStruct, locationID uint, kind string) (model.EmailTemplate, error) {
	var tpl model.EmailTemplate
	err := db.Where("location_id = ? AND kind = ?", locationID, kind).First(&tpl).Error
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.EmailTemplate{}, err
	}

	def, ok := model.DefaultTemplates[kind]
	if !ok {
		return model.EmailTemplate{}, fmt.Errorf("unknown email template kind %q", kind)
	}
	return def, nil
}
