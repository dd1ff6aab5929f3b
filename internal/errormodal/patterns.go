// Package errormodal classifies OCR text regions as error messages or modal
// dialogs using a compiled pattern catalogue plus dialog layout scoring.
package errormodal

import (
	"regexp"
)

// Family tags a pattern with the dialog or error class it detects.
type Family string

const (
	FamilyCriticalError    Family = "critical_error"
	FamilyNetworkError     Family = "network_error"
	FamilyAuthError        Family = "auth_error"
	FamilyValidationError  Family = "validation_error"
	FamilyApplicationError Family = "application_error"
	FamilyWarning          Family = "warning"
	FamilyConfirmation     Family = "confirmation_dialog"
	FamilyFileDialog       Family = "file_dialog"
	FamilySettingsDialog   Family = "settings_dialog"
	FamilyProgressDialog   Family = "progress_dialog"
	FamilyInfoDialog       Family = "info_dialog"
	FamilySystemAlert      Family = "system_alert"
	FamilyAppAlert         Family = "app_alert"
)

// IsError reports whether the family describes an error rather than a dialog.
func (f Family) IsError() bool {
	switch f {
	case FamilyCriticalError, FamilyNetworkError, FamilyAuthError,
		FamilyValidationError, FamilyApplicationError, FamilyWarning:
		return true
	}
	return false
}

// Pattern is one compiled catalogue entry.
type Pattern struct {
	Regex       *regexp.Regexp
	Family      Family
	Weight      float32
	Description string
}

func compile(entries []struct {
	expr        string
	family      Family
	weight      float32
	description string
}) []Pattern {
	patterns := make([]Pattern, 0, len(entries))
	for _, e := range entries {
		patterns = append(patterns, Pattern{
			Regex:       regexp.MustCompile(e.expr),
			Family:      e.family,
			Weight:      e.weight,
			Description: e.description,
		})
	}
	return patterns
}

// errorPatterns detect error messages by content.
var errorPatterns = compile([]struct {
	expr        string
	family      Family
	weight      float32
	description string
}{
	{`(?i)(fatal|critical|crash|panic|abort)`, FamilyCriticalError, 0.9, "critical system errors"},
	{`(?i)(segmentation fault|access violation|null pointer)`, FamilyCriticalError, 0.95, "memory access errors"},
	{`(?i)(connection (failed|refused|timeout)|network (error|unavailable))`, FamilyNetworkError, 0.8, "network connectivity issues"},
	{`(?i)(dns (error|failed)|host not found|server not responding)`, FamilyNetworkError, 0.85, "DNS and server errors"},
	{`(?i)(access denied|unauthorized|authentication (failed|required))`, FamilyAuthError, 0.8, "authentication failures"},
	{`(?i)(login (failed|invalid)|incorrect (password|credentials))`, FamilyAuthError, 0.85, "login errors"},
	{`(?i)(permission denied|insufficient privileges)`, FamilyAuthError, 0.8, "permission errors"},
	{`(?i)(invalid (input|format|value)|validation (failed|error))`, FamilyValidationError, 0.7, "input validation errors"},
	{`(?i)(required field|missing (value|input)|field cannot be empty)`, FamilyValidationError, 0.75, "required field errors"},
	{`(?i)(error|failed|exception|problem)`, FamilyApplicationError, 0.6, "general application errors"},
	{`(?i)(cannot|unable to|failed to)`, FamilyApplicationError, 0.5, "operation failures"},
	{`(?i)(warning|caution|notice)`, FamilyWarning, 0.7, "warning messages"},
})

// modalPatterns detect dialog boxes by content.
var modalPatterns = compile([]struct {
	expr        string
	family      Family
	weight      float32
	description string
}{
	{`(?i)(confirm|are you sure|do you want to)`, FamilyConfirmation, 0.8, "confirmation dialogs"},
	{`(?i)\b(yes|no|ok|cancel|continue|abort)\b`, FamilyConfirmation, 0.6, "dialog buttons"},
	{`(?i)(open|save|choose|select) (file|folder|directory)`, FamilyFileDialog, 0.85, "file selection dialogs"},
	{`(?i)(browse|upload|download)`, FamilyFileDialog, 0.7, "file operation dialogs"},
	{`(?i)(settings|preferences|options|configuration)`, FamilySettingsDialog, 0.8, "settings and preferences"},
	{`(?i)\b(apply|reset|default)\b`, FamilySettingsDialog, 0.6, "settings actions"},
	{`(?i)(progress|loading|please wait|processing)`, FamilyProgressDialog, 0.8, "progress indicators"},
	{`(?i)(\d+%|completed|remaining)`, FamilyProgressDialog, 0.7, "progress measurements"},
	{`(?i)(information|about|help)`, FamilyInfoDialog, 0.7, "information dialogs"},
	{`(?i)\b(close|dismiss)\b`, FamilyInfoDialog, 0.5, "dialog close actions"},
})

// alertPatterns detect OS and application alerts.
var alertPatterns = compile([]struct {
	expr        string
	family      Family
	weight      float32
	description string
}{
	{`(?i)(system alert|system notification)`, FamilySystemAlert, 0.9, "system alerts"},
	{`(?i)(would like to access|permission required)`, FamilySystemAlert, 0.85, "permission requests"},
	{`(?i)(security warning|security alert)`, FamilySystemAlert, 0.9, "security warnings"},
	{`(?i)(application (error|warning)|app (crashed|stopped))`, FamilyAppAlert, 0.8, "application alerts"},
	{`(?i)(update available|new version)`, FamilyAppAlert, 0.7, "update notifications"},
})
