package convo

import (
	"testing"
	"time"
)

func TestWakeFilter_AcceptsExactMention(t *testing.T) {
	t.Parallel()

	f := NewWakeFilter("sentina")
	if !f.Accept("oye sentina", time.Now()) {
		t.Error("exact mention not accepted")
	}
}

func TestWakeFilter_AcceptsMisheardVariant(t *testing.T) {
	t.Parallel()

	cases := []string{
		"oye centina",
		"sentína ven",
		"oye sentena.",
	}
	for _, in := range cases {
		f := NewWakeFilter("sentina")
		if !f.Accept(in, time.Now()) {
			t.Errorf("Accept(%q) = false, want true", in)
		}
	}
}

func TestWakeFilter_RejectsUnrelatedSpeech(t *testing.T) {
	t.Parallel()

	f := NewWakeFilter("sentina")
	for _, in := range []string{"qué hora es", "pon la radio", "hola buenos días"} {
		if f.Accept(in, time.Now()) {
			t.Errorf("Accept(%q) = true, want false", in)
		}
	}
}

func TestWakeFilter_SuppressesDuplicateWithinWindow(t *testing.T) {
	t.Parallel()

	f := NewWakeFilter("sentina")
	base := time.Now()
	if !f.Accept("oye sentina", base) {
		t.Fatal("first trigger rejected")
	}
	if f.Accept("oye sentina", base.Add(time.Second)) {
		t.Error("duplicate inside window accepted")
	}
}

func TestWakeFilter_CooldownBetweenTriggers(t *testing.T) {
	t.Parallel()

	f := NewWakeFilter("sentina")
	base := time.Now()
	if !f.Accept("sentina ayuda", base) {
		t.Fatal("first trigger rejected")
	}
	// Different text, but still inside the trigger cooldown.
	if f.Accept("oye sentina", base.Add(time.Second)) {
		t.Error("trigger inside cooldown accepted")
	}
	if !f.Accept("oye sentina", base.Add(3*time.Second)) {
		t.Error("trigger after cooldown rejected")
	}
}
