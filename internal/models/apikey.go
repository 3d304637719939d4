package models

import (
	"time"
)

// KeyType identifies which backend service an API key unlocks
type KeyType string

const (
	KeyTypeResearch KeyType = "RESEARCH"
	KeyTypeChatbot  KeyType = "CHATBOT"
)

// KeyTypes lists the key types in dashboard order
var KeyTypes = []KeyType{KeyTypeResearch, KeyTypeChatbot}

// Valid reports whether t is a known key type
func (t KeyType) Valid() bool {
	return t == KeyTypeResearch || t == KeyTypeChatbot
}

// DefaultLabel is the label shown for keys created without a name
func (t KeyType) DefaultLabel() string {
	if t == KeyTypeChatbot {
		return "Chatbot API Key"
	}
	return "Research API Key"
}

// CacheSlot is the fixed slot holding the most recently generated secret of this type
func (t KeyType) CacheSlot() string {
	if t == KeyTypeChatbot {
		return "unrepo_chatbot_key"
	}
	return "unrepo_research_key"
}

// SecretPrefix is the prefix the backend gives secrets of this type
func (t KeyType) SecretPrefix() string {
	if t == KeyTypeChatbot {
		return "unrepo_chatbot_"
	}
	return "unrepo_research_"
}

// KeyOwner carries the tier flags the backend attaches to a key
type KeyOwner struct {
	PaymentVerified bool `json:"paymentVerified"`
	IsTokenHolder   bool `json:"isTokenHolder"`
}

// Premium reports whether the owner is on the premium tier
func (o *KeyOwner) Premium() bool {
	return o != nil && (o.PaymentVerified || o.IsTokenHolder)
}

// APIKey is the portal's read-through copy of a key held by the unrepo backend.
// ID, UsageCount and IsActive are owned by the backend and only ever replaced by a re-fetch.
type APIKey struct {
	ID         string     `json:"id"`
	Secret     string     `json:"key"`
	Name       string     `json:"name,omitempty"`
	Type       KeyType    `json:"type"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	UsageCount int64      `json:"usageCount"`
	IsActive   bool       `json:"isActive"`
	User       *KeyOwner  `json:"user,omitempty"`
}

// Label returns the key name or the default label for its type
func (k *APIKey) Label() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Type.DefaultLabel()
}

// Status returns the display status of the key
func (k *APIKey) Status() string {
	if k.IsActive {
		return "Active"
	}
	return "Inactive"
}

// UsageRecord is one endpoint/method aggregate from the usage stats endpoint
type UsageRecord struct {
	Endpoint string     `json:"endpoint"`
	Method   string     `json:"method"`
	Count    int64      `json:"count"`
	LastUsed *time.Time `json:"lastUsed,omitempty"`
}
