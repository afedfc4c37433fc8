// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package i18n

import (
	"errors"
	"strings"
	"testing"
)

func TestInitAndAvailableLocales(t *testing.T) {
	Init("en")
	if GetLang() != "en" {
		t.Fatalf("expected lang 'en', got %q", GetLang())
	}

	av := GetAvailableLocales()
	for _, k := range []string{"en", "de"} {
		if _, ok := av[k]; !ok {
			t.Fatalf("expected available locale %q to be present", k)
		}
	}
	if av["de"] != "Deutsch" {
		t.Fatalf("unexpected display name for de: %q", av["de"])
	}
	if got := Locales(); len(got) < 2 || got[0] != "de" || got[1] != "en" {
		t.Fatalf("unexpected sorted locales: %v", got)
	}
}

func TestT_BasicAndFormatting(t *testing.T) {
	Init("en")
	t.Cleanup(func() { Init("en") })

	if got := T("servers.none"); got != "No servers found." {
		t.Fatalf("expected nested key lookup, got %q", got)
	}
	if got := T("servers.added", "web1.example.com", 7); got != "Added server web1.example.com (id 7)." {
		t.Fatalf("unexpected formatted translation: %q", got)
	}
	if got := T("config.error_init_db", errors.New("boom")); !strings.HasSuffix(got, "boom") {
		t.Fatalf("error argument not applied: %q", got)
	}

	SetLang("de")
	if GetLang() != "de" {
		t.Fatalf("expected lang 'de', got %q", GetLang())
	}
	if got := T("yes"); got != "ja" {
		t.Fatalf("expected German 'ja', got %q", got)
	}
}

func TestT_FallbacksAndUnknownIDs(t *testing.T) {
	Init("fr")
	t.Cleanup(func() { Init("en") })

	if got := T("aborted"); got != "Aborted." {
		t.Fatalf("unknown language should fall back to English, got %q", got)
	}
	if got := T("does.not.exist", 1); got != "does.not.exist" {
		t.Fatalf("unknown id should come back unchanged, got %q", got)
	}
}

func TestLocalesDefineTheSameMessages(t *testing.T) {
	Init("en")
	for _, id := range []string{
		"servers.erase_confirm", "proxies.removed", "domains.set",
		"backup.cli_success", "restore.full_confirm", "db.maintain_done",
	} {
		en := T(id)
		SetLang("de")
		de := T(id)
		SetLang("en")
		if en == id || de == id {
			t.Fatalf("%s missing in a locale (en=%q de=%q)", id, en, de)
		}
		if en == de {
			t.Fatalf("%s not translated: %q", id, de)
		}
	}
}
