package dashboard

import (
	"testing"

	"github.com/unrepo/devportal/internal/models"
	"pgregory.net/rapid"
)

func TestParseTab(t *testing.T) {
	tests := map[string]Tab{
		"":        TabKeys,
		"keys":    TabKeys,
		"usage":   TabUsage,
		"CREATE":  TabCreate,
		" create": TabCreate,
		"billing": TabKeys,
	}
	for raw, want := range tests {
		if got := ParseTab(raw); got != want {
			t.Errorf("ParseTab(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCompose_EmptyDashboard(t *testing.T) {
	v := Compose(ComposeInput{Tab: TabKeys, Identity: "dev@example.com"})
	if v.ActiveKeyCount != 0 || v.TotalCalls != 0 || v.TotalKeys != 0 {
		t.Fatalf("view = %+v", v)
	}
	if v.Research.Representative != nil || v.Chatbot.Representative != nil {
		t.Fatal("no representative expected without keys")
	}
	if v.Keys == nil || v.Usage == nil || v.Research.Keys == nil {
		t.Fatal("empty lists must not be nil")
	}
}

func TestCompose_MultipleKeysPerType(t *testing.T) {
	keys := []models.APIKey{
		{ID: "r1", Type: models.KeyTypeResearch, Secret: "unrepo_research_0123456789abcdef", UsageCount: 3, IsActive: true},
		{ID: "c1", Type: models.KeyTypeChatbot, Name: "bot", Secret: "short", UsageCount: 10, IsActive: false},
		{ID: "r2", Type: models.KeyTypeResearch, Secret: "unrepo_research_x", UsageCount: 2, IsActive: true,
			User: &models.KeyOwner{IsTokenHolder: true}},
	}

	v := Compose(ComposeInput{
		Keys:        keys,
		Revealed:    func(id string) bool { return id == "r2" },
		CopiedKeyID: "c1",
		FreeTierCap: 5,
	})

	if v.ActiveKeyCount != 2 || v.TotalCalls != 15 || v.TotalKeys != 3 {
		t.Fatalf("counts = %d %d %d", v.ActiveKeyCount, v.TotalCalls, v.TotalKeys)
	}
	if v.Research.Count != 2 || v.Research.Representative.ID != "r1" {
		t.Fatalf("research = %+v", v.Research)
	}
	if v.Chatbot.Count != 1 || v.Chatbot.Keys[0].Label != "bot" || v.Chatbot.Keys[0].Status != "Inactive" {
		t.Fatalf("chatbot = %+v", v.Chatbot)
	}
	if v.Keys[0].Label != "Research API Key" || v.Keys[0].Secret != Mask(keys[0].Secret) || v.Keys[0].Revealed {
		t.Errorf("row r1 = %+v", v.Keys[0])
	}
	if !v.Keys[1].Copied || v.Keys[0].Copied {
		t.Error("copied flag misplaced")
	}
	if v.Keys[2].Secret != keys[2].Secret || !v.Keys[2].Revealed {
		t.Errorf("row r2 = %+v", v.Keys[2])
	}
	if q := v.Keys[0].Quota; q.Tier != TierFree || q.Limit != 5 || q.Remaining != 2 {
		t.Errorf("free quota = %+v", q)
	}
	if q := v.Keys[1].Quota; q.Remaining != 0 {
		t.Errorf("exhausted quota = %+v", q)
	}
	if q := v.Keys[2].Quota; q.Tier != TierPremium || !q.Unlimited {
		t.Errorf("premium quota = %+v", q)
	}
}

func TestProperty_SummaryCounts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		keys := make([]models.APIKey, n)
		var wantCalls int64
		wantActive := 0
		for i := range keys {
			keys[i] = models.APIKey{
				ID:         rapid.StringMatching(`[a-z0-9]{6}`).Draw(rt, "id"),
				Type:       rapid.SampledFrom(models.KeyTypes).Draw(rt, "type"),
				UsageCount: rapid.Int64Range(0, 1_000_000).Draw(rt, "usage"),
				IsActive:   rapid.Bool().Draw(rt, "active"),
			}
			wantCalls += keys[i].UsageCount
			if keys[i].IsActive {
				wantActive++
			}
		}

		v := Compose(ComposeInput{Keys: keys})
		if v.TotalCalls != wantCalls || v.ActiveKeyCount != wantActive {
			rt.Fatalf("got calls=%d active=%d, want %d %d", v.TotalCalls, v.ActiveKeyCount, wantCalls, wantActive)
		}
		if v.Research.Count+v.Chatbot.Count != n {
			rt.Fatalf("type counts %d+%d != %d", v.Research.Count, v.Chatbot.Count, n)
		}
		if len(ByType(keys, models.KeyTypeResearch)) != v.Research.Count {
			rt.Fatal("ByType disagrees with summary")
		}
	})
}
