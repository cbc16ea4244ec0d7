// Package credentials stores API secrets (the weather key) in the OS
// keyring with an environment variable override.
package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Source indicates where a secret was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// ServiceWeather names the OpenWeatherMap API key.
const ServiceWeather = "weather"

// Services lists the secrets kairon knows about.
var Services = []string{ServiceWeather}

// account is the keyring account under which every secret is filed.
const account = "default"

var (
	ErrNotFound            = errors.New("secret not found")
	ErrKeyringNotAvailable = errors.New("system keyring not available")
)

// SecretInfo describes a resolved secret.
type SecretInfo struct {
	Service string
	Source  Source
	Secret  string
	Found   bool
}

// JSON serializes the info without the secret itself.
func (s *SecretInfo) JSON() ([]byte, error) {
	return json.Marshal(struct {
		Service string `json:"service"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{s.Service, string(s.Source), s.Found})
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) { m.keyring = k }
}

// WithEnv replaces os.Getenv.
func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) { m.getenv = getenv }
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{keyring: systemKeyring{}, getenv: os.Getenv}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func normalize(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}

func keyringService(service string) string {
	return "kairon-" + normalize(service)
}

// EnvVar returns the environment variable that overrides service.
func EnvVar(service string) string {
	return fmt.Sprintf("KAIRON_%s_API_KEY", strings.ToUpper(normalize(service)))
}

func validService(service string) error {
	for _, s := range Services {
		if s == service {
			return nil
		}
	}
	return fmt.Errorf("unknown credential %q (valid: %s)", service, strings.Join(Services, ", "))
}

// Set stores a secret in the keyring
func (m *Manager) Set(ctx context.Context, service, secret string) error {
	service = normalize(service)
	if err := validService(service); err != nil {
		return err
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret must not be empty")
	}
	return m.keyring.Set(keyringService(service), account, secret)
}

// Get resolves a secret. The environment wins over the keyring.
func (m *Manager) Get(ctx context.Context, service string) (*SecretInfo, error) {
	service = normalize(service)
	if err := validService(service); err != nil {
		return nil, err
	}
	if v := m.getenv(EnvVar(service)); v != "" {
		return &SecretInfo{Service: service, Source: SourceEnvironment, Secret: v, Found: true}, nil
	}
	secret, err := m.keyring.Get(keyringService(service), account)
	switch {
	case err == nil && secret != "":
		return &SecretInfo{Service: service, Source: SourceKeyring, Secret: secret, Found: true}, nil
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, ErrKeyringNotAvailable):
		return &SecretInfo{Service: service, Source: SourceNone}, nil
	default:
		return nil, err
	}
}

// Delete removes a secret from the keyring. Deleting a missing secret succeeds.
func (m *Manager) Delete(ctx context.Context, service string) error {
	service = normalize(service)
	if err := validService(service); err != nil {
		return err
	}
	err := m.keyring.Delete(keyringService(service), account)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ResolveWeatherKey returns the weather API key or "" when none is stored.
func (m *Manager) ResolveWeatherKey(ctx context.Context) string {
	info, err := m.Get(ctx, ServiceWeather)
	if err != nil || !info.Found {
		return ""
	}
	return info.Secret
}

// PromptSecret asks for a secret. Terminal input is hidden; other readers
// are read line by line.
func PromptSecret(reader io.Reader, writer io.Writer, service string) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter %s API key: ", service)
	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
