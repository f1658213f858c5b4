package generate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FieldError is a schema violation in user settings. Generation emits no
// document while any field error exists.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// User-exposed ports must stay out of the privileged range.
const (
	portMin = 1024
	portMax = 65535
)

var envKeyRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Raw private keys are 32 bytes hex encoded, optionally 0x-prefixed.
var hexKeyRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// Characters that would let a settings value escape into a shell when the
// env file is sourced by install scripts.
const shellMetaChars = "$`\"'\\;|&<>\n"

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindEnum
	kindPort
	kindPath
	kindSecret
)

type fieldSpec struct {
	kind fieldKind
	enum []string
}

// settingsSchema is the closed set of accepted configuration keys. Anything
// outside it is rejected: the historical failure mode here is a typo'd key
// silently ignored until the service misbehaves.
var settingsSchema = map[string]fieldSpec{
	"KASPA_NETWORK":   {kind: kindEnum, enum: []string{"mainnet", "testnet-10", "testnet-11", "devnet"}},
	"KASAIO_DATA_DIR": {kind: kindPath},

	"POSTGRES_USER":     {kind: kindString},
	"POSTGRES_DB":       {kind: kindString},
	"POSTGRES_PASSWORD": {kind: kindSecret},
	"SOCKET_AUTH_TOKEN": {kind: kindSecret},

	"STRATUM_PORT":  {kind: kindPort},
	"REST_PORT":     {kind: kindPort},
	"EXPLORER_PORT": {kind: kindPort},
	"SOCKET_PORT":   {kind: kindPort},

	// Service defaults users may override verbatim.
	"KASPAD_UTXOINDEX": {kind: kindString},
	"KASPAD_ARCHIVAL":  {kind: kindString},
	"DB_HOST":          {kind: kindString},
	"DB_PORT":          {kind: kindString},
	"API_URI":          {kind: kindString},
	"STRATUM_LISTEN":   {kind: kindString},
}

// settingsDefaults fill keys the user left out.
var settingsDefaults = map[string]string{
	"KASPA_NETWORK":   "mainnet",
	"KASAIO_DATA_DIR": "/var/lib/kasaio",
}

// ValidateSettings checks every key and value against the schema,
// fail-closed. It assumes secrets were already defaulted: a missing
// generatable secret must never surface as a validation error.
func ValidateSettings(settings map[string]string) []FieldError {
	var errs []FieldError

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		if !envKeyRe.MatchString(key) {
			errs = append(errs, FieldError{Field: key, Message: "key must match ^[A-Z_][A-Z0-9_]*$"})
			continue
		}
		spec, known := settingsSchema[key]
		if !known {
			errs = append(errs, FieldError{Field: key, Message: "unknown configuration key"})
			continue
		}
		if looksLikeKeyMaterial(value) {
			errs = append(errs, FieldError{Field: key, Message: "value resembles wallet key or seed material and is never accepted"})
			continue
		}

		switch spec.kind {
		case kindEnum:
			if !contains(spec.enum, value) {
				errs = append(errs, FieldError{
					Field:   key,
					Message: fmt.Sprintf("must be one of: %s", strings.Join(spec.enum, ", ")),
				})
			}
		case kindPort:
			port, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, FieldError{Field: key, Message: "must be an integer port"})
				continue
			}
			if port < portMin || port > portMax {
				errs = append(errs, FieldError{
					Field:   key,
					Message: fmt.Sprintf("port %d out of range %d-%d", port, portMin, portMax),
				})
			}
		case kindPath:
			if strings.TrimSpace(value) == "" {
				errs = append(errs, FieldError{Field: key, Message: "path must not be empty"})
				continue
			}
			if strings.ContainsAny(value, shellMetaChars) || strings.ContainsAny(value, " \t") {
				errs = append(errs, FieldError{Field: key, Message: "path contains shell metacharacters"})
			}
		case kindSecret:
			if len(value) < secretMinLength {
				errs = append(errs, FieldError{
					Field:   key,
					Message: fmt.Sprintf("secret shorter than %d characters", secretMinLength),
				})
			}
		}
	}

	return errs
}

// looksLikeKeyMaterial flags values that could be wallet secrets: a 64 hex
// character private key or a 12/24 word BIP39 mnemonic. No setting here
// legitimately takes either shape, so the boundary rejects them outright
// rather than let them land in the env file and every snapshot of it.
func looksLikeKeyMaterial(value string) bool {
	v := strings.TrimSpace(value)
	if hexKeyRe.MatchString(v) {
		return true
	}
	words := strings.Fields(v)
	if len(words) != 12 && len(words) != 24 {
		return false
	}
	for _, word := range words {
		for _, r := range word {
			if r < 'a' || r > 'z' {
				return false
			}
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
