package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	exchangeFile = "last_exchange.json"
)

// Exchange is the most recent prompt and answer made with "streamer ask".
type Exchange struct {
	Project string    `json:"project,omitempty"`
	Model   string    `json:"model,omitempty"`
	Prompt  string    `json:"prompt"`
	Answer  string    `json:"answer"`
	Failed  bool      `json:"failed,omitempty"`
	At      time.Time `json:"at"`
}

// LoadExchange reads the last exchange. Returns nil, nil when none was saved.
func (m *Manager) LoadExchange(overrideDir string) (*Exchange, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, exchangeFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last exchange: %w", err)
	}

	ex := &Exchange{}
	if err := json.Unmarshal(data, ex); err != nil {
		return nil, fmt.Errorf("parsing last exchange: %w", err)
	}

	return ex, nil
}

// SaveExchange replaces the last exchange.
func (m *Manager) SaveExchange(ex *Exchange, overrideDir string) error {
	if ex == nil {
		return errors.New("cannot save nil exchange")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last exchange: %w", err)
	}

	// Prompts and answers may hold user data.
	if err := os.WriteFile(filepath.Join(dir, exchangeFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last exchange: %w", err)
	}

	return nil
}

// ClearExchange removes the saved exchange. Missing files are not an error.
func (m *Manager) ClearExchange(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, exchangeFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing last exchange: %w", err)
	}

	return nil
}
