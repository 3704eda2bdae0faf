package config

import (
	"reflect"
	"slices"

	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/falldetect"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	ContactsChanged   bool          // true if any contact was added, removed, or renumbered
	ContactChanges    []ContactDiff // per-contact diffs
	PromptsChanged    bool
	ThresholdsChanged bool // fall acceptance thresholds
}

// ContactDiff describes what changed for a single contact between two configs.
type ContactDiff struct {
	Name         string
	PhoneChanged bool
	Added        bool
	Removed      bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Prompts
	if !promptsEqual(old.Prompts, new.Prompts) {
		d.PromptsChanged = true
	}

	// Fall thresholds
	if !thresholdsEqual(old.Fall.Thresholds, new.Fall.Thresholds) {
		d.ThresholdsChanged = true
	}

	// Build contact lookup maps keyed by name.
	oldContacts := make(map[string]*convo.Contact, len(old.Contacts))
	for i := range old.Contacts {
		oldContacts[old.Contacts[i].Name] = &old.Contacts[i]
	}
	newContacts := make(map[string]*convo.Contact, len(new.Contacts))
	for i := range new.Contacts {
		newContacts[new.Contacts[i].Name] = &new.Contacts[i]
	}

	// Detect modified and removed contacts.
	for name, oldC := range oldContacts {
		newC, exists := newContacts[name]
		if !exists {
			d.ContactChanges = append(d.ContactChanges, ContactDiff{
				Name:    name,
				Removed: true,
			})
			d.ContactsChanged = true
			continue
		}
		if oldC.Phone != newC.Phone {
			d.ContactChanges = append(d.ContactChanges, ContactDiff{
				Name:         name,
				PhoneChanged: true,
			})
			d.ContactsChanged = true
		}
	}

	// Detect added contacts.
	for name := range newContacts {
		if _, exists := oldContacts[name]; !exists {
			d.ContactChanges = append(d.ContactChanges, ContactDiff{
				Name:  name,
				Added: true,
			})
			d.ContactsChanged = true
		}
	}

	return d
}

// promptsEqual compares two optional prompt sets field by field.
func promptsEqual(a, b *convo.Prompts) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !slices.Equal(a.Acknowledgments, b.Acknowledgments) {
		return false
	}
	ac, bc := *a, *b
	ac.Acknowledgments, bc.Acknowledgments = nil, nil
	return reflect.DeepEqual(ac, bc)
}

// thresholdsEqual compares two optional threshold overrides.
func thresholdsEqual(a, b *falldetect.Thresholds) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
