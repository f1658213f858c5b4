package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	envNoInteraction = "NO_INTERACTION"
	envCI            = "CI"
	envTerm          = "TERM"
)

type interactionConfig struct {
	initialized bool
	interactive bool
}

var interactionState struct {
	mu  sync.RWMutex
	cfg interactionConfig
}

// ConfigureInteraction decides once whether prompts and colors are allowed.
// Non-interactive mode strips colors so piped output stays clean.
func ConfigureInteraction(noInteraction bool) {
	interactive := detectInteractiveMode(noInteraction)

	interactionState.mu.Lock()
	interactionState.cfg = interactionConfig{initialized: true, interactive: interactive}
	interactionState.mu.Unlock()

	if interactive {
		lipgloss.SetColorProfile(termenv.ColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

func IsInteractive() bool {
	interactionState.mu.RLock()
	if interactionState.cfg.initialized {
		interactive := interactionState.cfg.interactive
		interactionState.mu.RUnlock()
		return interactive
	}
	interactionState.mu.RUnlock()

	ConfigureInteraction(false)

	interactionState.mu.RLock()
	interactive := interactionState.cfg.interactive
	interactionState.mu.RUnlock()
	return interactive
}

func IsNoInteraction() bool {
	return !IsInteractive()
}

// ErrNoInteraction is returned when a prompt is needed but the session is
// non-interactive. BypassHint tells the user which flag avoids the prompt.
type ErrNoInteraction struct {
	BypassHint string
}

func (e *ErrNoInteraction) Error() string {
	if e.BypassHint == "" {
		return "interactive input required in non-interactive mode"
	}
	return "interactive input required in non-interactive mode (" + e.BypassHint + ")"
}

func RequireInteraction(bypassHint string) error {
	if IsNoInteraction() {
		return &ErrNoInteraction{BypassHint: bypassHint}
	}
	return nil
}

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
// Default is no. Non-interactive sessions return *ErrNoInteraction with the
// bypass hint embedded.
func Confirm(question string, bypassHint string) (bool, error) {
	if err := RequireInteraction(bypassHint); err != nil {
		return false, fmt.Errorf("confirmation required: %w", err)
	}

	fmt.Fprint(os.Stderr, AccentStyle.Render("?")+" "+question+" "+MutedStyle.Render("[y/N]")+" ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func detectInteractiveMode(noInteraction bool) bool {
	if noInteraction {
		return false
	}
	if envTruthy(envNoInteraction) || envTruthy(envCI) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(envTerm)), "dumb") {
		return false
	}
	return stderrIsTerminal()
}

func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func envTruthy(key string) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
