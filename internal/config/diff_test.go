package config_test

import (
	"testing"

	"github.com/MrWong99/sentina/internal/config"
	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/falldetect"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		User:   config.UserConfig{Name: "Carmen", WakeWord: "sentina"},
		Contacts: []convo.Contact{
			{Name: "Ana", Phone: "+34600111222"},
			{Name: "Luis", Phone: "+34600333444"},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)
	if d.LogLevelChanged || d.ContactsChanged || d.PromptsChanged || d.ThresholdsChanged {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug
	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_ContactPhoneChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Contacts[0].Phone = "+34699999999"
	d := config.Diff(old, new)
	if !d.ContactsChanged {
		t.Fatal("ContactsChanged = false, want true")
	}
	if len(d.ContactChanges) != 1 {
		t.Fatalf("expected 1 contact change, got %d", len(d.ContactChanges))
	}
	cd := d.ContactChanges[0]
	if cd.Name != "Ana" || !cd.PhoneChanged || cd.Added || cd.Removed {
		t.Errorf("unexpected contact diff: %+v", cd)
	}
}

func TestDiff_ContactAddedAndRemoved(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Contacts = []convo.Contact{
		{Name: "Ana", Phone: "+34600111222"},
		{Name: "Marta", Phone: "+34600555666"},
	}
	d := config.Diff(old, new)
	if !d.ContactsChanged {
		t.Fatal("ContactsChanged = false, want true")
	}
	var added, removed bool
	for _, cd := range d.ContactChanges {
		if cd.Name == "Marta" && cd.Added {
			added = true
		}
		if cd.Name == "Luis" && cd.Removed {
			removed = true
		}
	}
	if !added {
		t.Error("missing Added diff for Marta")
	}
	if !removed {
		t.Error("missing Removed diff for Luis")
	}
}

func TestDiff_PromptsChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	p1, p2 := convo.DefaultPrompts(), convo.DefaultPrompts()
	p2.FallCheck = "¿Todo bien, %s?"
	old.Prompts, new.Prompts = &p1, &p2
	d := config.Diff(old, new)
	if !d.PromptsChanged {
		t.Error("PromptsChanged = false, want true")
	}
}

func TestDiff_PromptsUnchanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	p1, p2 := convo.DefaultPrompts(), convo.DefaultPrompts()
	old.Prompts, new.Prompts = &p1, &p2
	d := config.Diff(old, new)
	if d.PromptsChanged {
		t.Error("PromptsChanged = true for identical prompts")
	}
}

func TestDiff_ThresholdsChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	t1, t2 := falldetect.DefaultThresholds(), falldetect.DefaultThresholds()
	t2.ImpactScore = 0.30
	old.Fall.Thresholds, new.Fall.Thresholds = &t1, &t2
	d := config.Diff(old, new)
	if !d.ThresholdsChanged {
		t.Error("ThresholdsChanged = false, want true")
	}
}
