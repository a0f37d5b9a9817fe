package engine

import (
	"errors"
	"fmt"
)

// Apology is the fixed reply produced by the error terminal.
const Apology = "Parece que hubo un problema al intentar conectar con el agente. Esto puede deberse a un error de red. Te recomiendo intentar de nuevo más tarde. Si el problema persiste, por favor contáctanos por otro medio. ¡Estamos aquí para ayudarte!"

var (
	ErrEmptySessionID = errors.New("session id is required")
	ErrEmptyText      = errors.New("message text is required")
)

// Error kinds reported by the error terminal.
const (
	KindTimeout     = "timeout"
	KindUnavailable = "unavailable"
	KindInternal    = "internal"
)

// ProviderConfigurationError reports a request naming a provider that is
// not registered or cannot be constructed. It is a caller mistake and is
// returned before any stage runs.
type ProviderConfigurationError struct {
	Provider string
	Err      error
}

func (e *ProviderConfigurationError) Error() string {
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderConfigurationError) Unwrap() error {
	return e.Err
}
