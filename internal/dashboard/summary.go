package dashboard

import (
	"strings"
	"time"

	"github.com/unrepo/devportal/internal/models"
)

// Tab is a dashboard section
type Tab string

const (
	TabKeys   Tab = "keys"
	TabUsage  Tab = "usage"
	TabCreate Tab = "create"
)

// ParseTab maps a startup parameter to a tab, defaulting to keys
func ParseTab(raw string) Tab {
	switch Tab(strings.ToLower(strings.TrimSpace(raw))) {
	case TabUsage:
		return TabUsage
	case TabCreate:
		return TabCreate
	default:
		return TabKeys
	}
}

// DefaultFreeTierCap is the per-key call allowance shown for free tier keys
const DefaultFreeTierCap int64 = 5

// Tier names
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Quota is the tier panel of a key
type Quota struct {
	Tier      string `json:"tier"`
	Unlimited bool   `json:"unlimited"`
	Limit     int64  `json:"limit,omitempty"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining,omitempty"`
}

// KeyRow is one key as the dashboard renders it
type KeyRow struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       models.KeyType `json:"type"`
	Status     string         `json:"status"`
	IsActive   bool           `json:"isActive"`
	Secret     string         `json:"secret"`
	Revealed   bool           `json:"revealed"`
	Copied     bool           `json:"copied"`
	UsageCount int64          `json:"usageCount"`
	CreatedAt  time.Time      `json:"createdAt"`
	LastUsedAt *time.Time     `json:"lastUsedAt"`
	Quota      Quota          `json:"quota"`
}

// TypeSummary groups the keys of one type
type TypeSummary struct {
	Type           models.KeyType `json:"type"`
	Count          int            `json:"count"`
	Representative *KeyRow        `json:"representative"`
	Keys           []KeyRow       `json:"keys"`
}

// View is everything the dashboard shows for one session
type View struct {
	Tab            Tab                  `json:"tab"`
	Identity       string               `json:"identity"`
	ActiveKeyCount int                  `json:"activeKeyCount"`
	TotalCalls     int64                `json:"totalCalls"`
	TotalKeys      int                  `json:"totalKeys"`
	Research       TypeSummary          `json:"research"`
	Chatbot        TypeSummary          `json:"chatbot"`
	Keys           []KeyRow             `json:"keys"`
	Usage          []models.UsageRecord `json:"usage"`
	Creation       Draft                `json:"creation"`
	CopiedKeyID    string               `json:"copiedKeyId,omitempty"`
}

// ActiveKeyCount counts active keys
func ActiveKeyCount(keys []models.APIKey) int {
	n := 0
	for i := range keys {
		if keys[i].IsActive {
			n++
		}
	}
	return n
}

// TotalCalls sums usage over all keys
func TotalCalls(keys []models.APIKey) int64 {
	var total int64
	for i := range keys {
		total += keys[i].UsageCount
	}
	return total
}

// ByType returns the keys of type t in list order
func ByType(keys []models.APIKey, t models.KeyType) []models.APIKey {
	out := make([]models.APIKey, 0, len(keys))
	for i := range keys {
		if keys[i].Type == t {
			out = append(out, keys[i])
		}
	}
	return out
}

// Representative returns the first key of type t, or nil when there is none
func Representative(keys []models.APIKey, t models.KeyType) *models.APIKey {
	for i := range keys {
		if keys[i].Type == t {
			k := keys[i]
			return &k
		}
	}
	return nil
}

// QuotaFor derives the tier panel of a key
func QuotaFor(k *models.APIKey, freeTierCap int64) Quota {
	if k.User.Premium() {
		return Quota{Tier: TierPremium, Unlimited: true, Used: k.UsageCount}
	}
	remaining := freeTierCap - k.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Tier: TierFree, Limit: freeTierCap, Used: k.UsageCount, Remaining: remaining}
}

// ComposeInput is the state a View is derived from
type ComposeInput struct {
	Tab         Tab
	Identity    string
	Keys        []models.APIKey
	Usage       []models.UsageRecord
	Creation    Draft
	Revealed    func(keyID string) bool
	CopiedKeyID string
	FreeTierCap int64
	Visible     int
}

// Compose derives the dashboard view. It has no side effects.
func Compose(in ComposeInput) View {
	if in.FreeTierCap <= 0 {
		in.FreeTierCap = DefaultFreeTierCap
	}
	if in.Visible <= 0 {
		in.Visible = PreviewLength
	}
	usage := in.Usage
	if usage == nil {
		usage = []models.UsageRecord{}
	}

	rows := make([]KeyRow, 0, len(in.Keys))
	for i := range in.Keys {
		rows = append(rows, row(&in.Keys[i], in))
	}

	return View{
		Tab:            in.Tab,
		Identity:       in.Identity,
		ActiveKeyCount: ActiveKeyCount(in.Keys),
		TotalCalls:     TotalCalls(in.Keys),
		TotalKeys:      len(in.Keys),
		Research:       summarize(rows, models.KeyTypeResearch),
		Chatbot:        summarize(rows, models.KeyTypeChatbot),
		Keys:           rows,
		Usage:          usage,
		Creation:       in.Creation,
		CopiedKeyID:    in.CopiedKeyID,
	}
}

func row(k *models.APIKey, in ComposeInput) KeyRow {
	revealed := in.Revealed != nil && in.Revealed(k.ID)
	secret := MaskN(k.Secret, in.Visible)
	if revealed {
		secret = k.Secret
	}
	return KeyRow{
		ID:         k.ID,
		Label:      k.Label(),
		Type:       k.Type,
		Status:     k.Status(),
		IsActive:   k.IsActive,
		Secret:     secret,
		Revealed:   revealed,
		Copied:     in.CopiedKeyID != "" && in.CopiedKeyID == k.ID,
		UsageCount: k.UsageCount,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		Quota:      QuotaFor(k, in.FreeTierCap),
	}
}

func summarize(rows []KeyRow, t models.KeyType) TypeSummary {
	s := TypeSummary{Type: t, Keys: []KeyRow{}}
	for i := range rows {
		if rows[i].Type == t {
			s.Keys = append(s.Keys, rows[i])
		}
	}
	s.Count = len(s.Keys)
	if s.Count > 0 {
		rep := s.Keys[0]
		s.Representative = &rep
	}
	return s
}
