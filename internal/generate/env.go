package generate

import (
	"fmt"

	"github.com/joho/godotenv"
)

// EncodeEnv serializes an env map as flat KEY=value lines, sorted by key so
// the file is byte-reproducible.
func EncodeEnv(env map[string]string) ([]byte, error) {
	out, err := godotenv.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode env file: %w", err)
	}
	return []byte(out + "\n"), nil
}

// ParseEnv parses flat KEY=value lines. Keys are validated against the env
// key grammar; anything else is rejected.
func ParseEnv(data []byte) (map[string]string, error) {
	env, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}
	for key := range env {
		if !envKeyRe.MatchString(key) {
			return nil, fmt.Errorf("parse env file: invalid key %q", key)
		}
	}
	return env, nil
}
