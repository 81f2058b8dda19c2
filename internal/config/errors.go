package config

// Error types
const (
	ErrTypeInvalidSelection = "invalid_selection"
	ErrTypeMissingWordlist  = "missing_wordlist"
	ErrTypeNoDomain         = "no_domain"
	ErrTypeNoInterface      = "no_interface"
	ErrTypeInvalidSettings  = "invalid_settings"
)

// ConfigError is a setup-fatal configuration problem
type ConfigError struct {
	Type    string
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

func ErrInvalidSelection(msg string) error {
	return ConfigError{Type: ErrTypeInvalidSelection, Message: msg}
}

func ErrMissingWordlist(path string) error {
	return ConfigError{Type: ErrTypeMissingWordlist, Message: "wordlist '" + path + "' does not exist"}
}

func ErrNoDomain() error {
	return ConfigError{Type: ErrTypeNoDomain, Message: "at least one of wifi or bluetooth must be enabled"}
}

func ErrNoInterface(msg string) error {
	return ConfigError{Type: ErrTypeNoInterface, Message: msg}
}

func ErrInvalidSettings(msg string) error {
	return ConfigError{Type: ErrTypeInvalidSettings, Message: msg}
}
