package location

import (
	"context"
	"sync"

	"github.com/trolltrack/trolltrack/internal/conf"
)

// Permission is the location permission state.
type Permission string

const (
	PermissionGranted Permission = conf.PermissionGranted
	PermissionDenied  Permission = conf.PermissionDenied
	PermissionPrompt  Permission = conf.PermissionPrompt
)

// PermissionChecker reports and requests location permission.
type PermissionChecker interface {
	// Check returns the current state without asking the user.
	Check(ctx context.Context) (Permission, error)
	// Request asks the user when the state is still undecided.
	Request(ctx context.Context) (Permission, error)
}

// Prompter asks the user whether location access is allowed.
type Prompter func(ctx context.Context) (bool, error)

// SettingsPermission keeps the permission state from the configuration. An
// undecided state is resolved once through the prompter; without a
// prompter it stays undecided and fetches are refused.
type SettingsPermission struct {
	mu       sync.Mutex
	state    Permission
	prompter Prompter
	onChange func(Permission)
}

// NewSettingsPermission starts from settings.Location.Permission.
// onChange, when set, is called after the user answers a prompt so the
// answer can be persisted.
func NewSettingsPermission(settings *conf.Settings, prompter Prompter, onChange func(Permission)) *SettingsPermission {
	state := Permission(settings.Location.Permission)
	switch state {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
	default:
		state = PermissionPrompt
	}
	return &SettingsPermission{state: state, prompter: prompter, onChange: onChange}
}

// Check implements PermissionChecker.
func (p *SettingsPermission) Check(_ context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

// Request implements PermissionChecker.
func (p *SettingsPermission) Request(ctx context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PermissionPrompt || p.prompter == nil {
		return p.state, nil
	}

	allowed, err := p.prompter(ctx)
	if err != nil {
		return p.state, err
	}
	p.state = PermissionDenied
	if allowed {
		p.state = PermissionGranted
	}
	if p.onChange != nil {
		p.onChange(p.state)
	}
	return p.state, nil
}

// StaticPermission always reports the same state.
type StaticPermission Permission

func (s StaticPermission) Check(context.Context) (Permission, error)   { return Permission(s), nil }
func (s StaticPermission) Request(context.Context) (Permission, error) { return Permission(s), nil }
