package llm

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeFilenameLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Rechnung", "Rechnung"},
		{`  "Mahnung."  `, "Mahnung"},
		{"Rechnung 2023", "Dokument"},
		{"Rechnung ٣", "Dokument"},
		{"Rechnung ２", "Dokument"},
		{"", "Dokument"},
		{"---", "Dokument"},
		{"Kündigung/Bestätigung", "Kündigung Bestätigung"},
		{"Sehr lange Bezeichnung für ein Schreiben", "Sehr lange Bezeichnung"},
		{"Informationsschreiben Versicherungsgesellschaft", "Informationsschreiben Versicheru"},
		{"„Vertrag“", "Vertrag"},
	}
	for _, tc := range cases {
		if got := NormalizeFilenameLabel(tc.in); got != tc.want {
			t.Errorf("NormalizeFilenameLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeFilenameLabelProperties(t *testing.T) {
	inputs := []string{
		"Rechnung Nr 4711", "Brief von Oma Erna mit Grüßen", "a b c d e f",
		"Überweisungsbestätigung der Sparkasse Musterstadt", "???", "IBAN DE00",
	}
	for _, in := range inputs {
		got := NormalizeFilenameLabel(in)
		if strings.ContainsAny(got, "0123456789") {
			t.Errorf("%q: digits in %q", in, got)
		}
		if n := len(strings.Fields(got)); n < 1 || n > 3 {
			t.Errorf("%q: %d words in %q", in, n, got)
		}
		if utf8.RuneCountInString(got) > 32 {
			t.Errorf("%q: too long %q", in, got)
		}
	}
}

func TestRecoverJSON(t *testing.T) {
	cases := []struct {
		name, in, want string
		ok             bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"wrapped", "Hier ist das Ergebnis:\n```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"brace in string", `note {"notes":"x } y","c":1} tail`, `{"notes":"x } y","c":1}`, true},
		{"skips broken first block", `{oops} {"a":1}`, `{"a":1}`, true},
		{"none", "keine Ahnung", "", false},
		{"empty", "  ", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tc := range cases {
		got, err := RecoverJSON(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v", tc.name, err)
			continue
		}
		if tc.ok && string(got) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestParseResultNormalizes(t *testing.T) {
	raw := `Antwort: {"sender_canonical":"  Stadtwerke München ","confidence":"1.4",
		"evidence":"Ihre Stromrechnung","document_type":"Rechnung","filename_label":"Rechnung 2024",
		"is_private":"false","target_folder":null,"extra":"x"}`

	r, err := ParseResult(raw, "qwen", nil)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if r.SenderCanonical != "Stadtwerke München" || r.Confidence != 1 {
		t.Errorf("sender/conf = %q/%v", r.SenderCanonical, r.Confidence)
	}
	if len(r.Evidence) != 1 || r.Evidence[0] != "Ihre Stromrechnung" {
		t.Errorf("evidence = %v", r.Evidence)
	}
	if r.DocumentType != "invoice" || r.FilenameLabel != "Dokument" || r.IsPrivate {
		t.Errorf("unexpected %+v", r)
	}
	if r.Model != "qwen" || r.RawJSON != raw {
		t.Error("provenance not recorded")
	}
}

func TestParseResultDefaults(t *testing.T) {
	r, err := ParseResult(`{}`, "m", nil)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if r.Confidence != 0 || r.DocumentType != "other" || r.FilenameLabel != "Dokument" || len(r.Evidence) != 0 {
		t.Errorf("defaults = %+v", r)
	}
}

func TestParseResultLimitsEvidence(t *testing.T) {
	long := strings.Repeat("ä", 200)
	r, err := ParseResult(`{"evidence":["a","b","`+long+`","d"]}`, "m", nil)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if len(r.Evidence) != 3 || utf8.RuneCountInString(r.Evidence[2]) != 120 {
		t.Errorf("evidence = %d items, last %d runes", len(r.Evidence), utf8.RuneCountInString(r.Evidence[2]))
	}
}

func TestParseResultRejectsWrongTypes(t *testing.T) {
	if _, err := ParseResult(`{"sender_canonical":{"name":"x"}}`, "m", nil); err == nil {
		t.Error("object sender should fail validation")
	}
	if _, err := ParseResult(`kein json`, "m", nil); err == nil {
		t.Error("expected recovery error")
	}
}

func TestSanitizeReportsDropped(t *testing.T) {
	_, dropped, err := NormalizeAndSanitizeJSON([]byte(`{"confidence":"hoch","notes":null,"foo":1}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "confidence(type),foo(unknown),notes(null)"
	if got := strings.Join(dropped, ","); got != want {
		t.Errorf("dropped = %s, want %s", got, want)
	}
}

func TestRedact(t *testing.T) {
	in := "IBAN DE89370400440532013000, Mail an max.mustermann@example.de bitte"
	got := Redact(in)
	if strings.Contains(got, "DE8937") || strings.Contains(got, "example.de") {
		t.Errorf("not redacted: %s", got)
	}
	if !strings.Contains(got, "[REDACTED_IBAN]") || !strings.Contains(got, "[REDACTED_EMAIL]") {
		t.Errorf("markers missing: %s", got)
	}

	r := Result{Evidence: []string{"info@bank.de"}, Notes: "ok"}
	red := r.Redacted()
	if red.Evidence[0] != "[REDACTED_EMAIL]" || r.Evidence[0] != "info@bank.de" {
		t.Errorf("Redacted must copy: %v / %v", red.Evidence, r.Evidence)
	}
}

func TestBuildPrompt(t *testing.T) {
	senders := make([]string, 400)
	for i := range senders {
		senders[i] = "Sender"
	}
	p := BuildPrompt("Hallo Welt", senders, []string{"Strom"})
	if !strings.Contains(p, "<<<BEGIN_TEXT\nHallo Welt\nEND_TEXT>>>") {
		t.Error("text delimiters missing")
	}
	if n := strings.Count(p, "- Sender\n"); n != MaxKnownSenders {
		t.Errorf("listed %d senders", n)
	}
	if !strings.Contains(p, "- Strom\n") {
		t.Error("folders missing")
	}
}
