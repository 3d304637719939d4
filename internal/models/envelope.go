package models

import "encoding/json"

// Envelope is the response wrapper used by every unrepo backend endpoint
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Reason returns the most specific human readable explanation in the envelope
func (e *Envelope) Reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// GenerateKeyRequest is the body of POST /api/keys/generate
type GenerateKeyRequest struct {
	Type  KeyType `json:"type"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
}

// GeneratedKey is the data payload of a generate response. New keys come back
// as apiKey, an already existing key of the same type as key.
type GeneratedKey struct {
	APIKey string `json:"apiKey,omitempty"`
	Key    string `json:"key,omitempty"`
}

// Secret returns whichever secret field the backend populated
func (g *GeneratedKey) Secret() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	return g.Key
}

// AlreadyExistsMessage is the backend message for a duplicate key of the same type
const AlreadyExistsMessage = "API key already exists"
