package wire

import (
	"errors"
	"strings"
)

// Request is the JSON body a stream client POSTs to the relay.
type Request struct {
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	UserData     string   `json:"userData"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`

	// ProjectName and KeyType both select a credential; ProjectName wins
	// when both are set.
	ProjectName string `json:"projectName,omitempty"`
	KeyType     string `json:"keyType,omitempty"`

	// UserID keys the variable store update made after the stream completes.
	UserID string `json:"user_id,omitempty"`

	// VariableName overrides the variable written with the final answer.
	VariableName string `json:"variableName,omitempty"`

	// DebugMode 1 enables verbose status lines and request logging.
	DebugMode int `json:"debugMode,omitempty"`
}

// ErrEmptyPrompt is returned by Validate when there is no prompt text.
var ErrEmptyPrompt = errors.New("userData is empty")

// Validate checks the fields a relay cannot default.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.UserData) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Selector returns the credential selector, project name first.
func (r *Request) Selector() string {
	if r.ProjectName != "" {
		return r.ProjectName
	}
	return r.KeyType
}

// Debug reports whether the caller asked for debug output.
func (r *Request) Debug() bool {
	return r.DebugMode == 1
}
