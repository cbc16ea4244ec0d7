package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CLIHandler handles CLI commands for credential management
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
}

// NewCLIHandler creates a new CLI handler for credential commands
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout io.Writer) *CLIHandler {
	return &CLIHandler{manager: manager, stdin: stdin, stdout: stdout}
}

// Set prompts for a secret and stores it in the keyring
func (h *CLIHandler) Set(ctx context.Context, service string) error {
	secret, err := PromptSecret(h.stdin, h.stdout, service)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	if err := h.manager.Set(ctx, service, secret); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return fmt.Errorf("%w\n\nAlternative: export %s=\"your-key\" or put it in a .env file", err, EnvVar(service))
		}
		return fmt.Errorf("failed to store secret: %w", err)
	}
	_, _ = fmt.Fprintln(h.stdout, "Secret stored in system keyring")
	return nil
}

// Get reports where a secret comes from without printing it
func (h *CLIHandler) Get(ctx context.Context, service string, jsonOutput bool) error {
	info, err := h.manager.Get(ctx, service)
	if err != nil {
		return err
	}
	if jsonOutput {
		b, err := info.JSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(b))
		return nil
	}
	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No %s key found\n", info.Service)
		_, _ = fmt.Fprintf(h.stdout, "Searched:\n  - Environment: %s\n  - System keyring\n", EnvVar(info.Service))
		_, _ = fmt.Fprintf(h.stdout, "\nSuggestion: Run 'kairon credentials set %s'\n", info.Service)
		return nil
	}
	_, _ = fmt.Fprintf(h.stdout, "Service: %s\nSource: %s\nKey: ******** (hidden)\n", info.Service, info.Source)
	return nil
}

// Delete removes a secret from the keyring
func (h *CLIHandler) Delete(ctx context.Context, service string) error {
	if err := h.manager.Delete(ctx, service); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	_, _ = fmt.Fprintln(h.stdout, "Secret removed from system keyring")
	return nil
}
