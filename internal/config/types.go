package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret is a credential loaded from config or environment, such as an
// embedding or Qdrant API key. Formatting and JSON output show
// [REDACTED]; only Value returns the raw string.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// MarshalJSON keeps secrets out of dumped configs and logs.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalText accepts the raw value from YAML or an env var.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }
