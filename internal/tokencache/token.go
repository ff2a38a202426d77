package tokencache

import (
	"encoding/json"
	"fmt"
	"time"
)

const SchemaVersion = 1

// Token is the persisted token record.
type Token struct {
	SchemaVersion int       `json:"schema_version"`
	Username      string    `json:"username"`
	Value         string    `json:"token"`
	AcquiredAt    time.Time `json:"acquired_at"`
}

func Decode(data []byte) (Token, error) {
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}
	if err := token.Validate(); err != nil {
		return Token{}, err
	}
	return token, nil
}

func Encode(token Token) ([]byte, error) {
	if token.SchemaVersion == 0 {
		token.SchemaVersion = SchemaVersion
	}
	if token.AcquiredAt.IsZero() {
		token.AcquiredAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}
	return data, nil
}

func (t Token) Validate() error {
	if t.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %d", t.SchemaVersion)
	}
	if t.Value == "" {
		return fmt.Errorf("token record missing token")
	}
	return nil
}
