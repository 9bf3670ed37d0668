package llm

import (
	"strings"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// MaxKnownSenders caps how many canonical senders are listed in a prompt.
const MaxKnownSenders = 300

// BuildPrompt composes the single classification prompt used for both stages.
// Only canonical sender names and folder names are passed, never the full mapping.
func BuildPrompt(text string, knownSenders, existingFolders []string) string {
	if len(knownSenders) > MaxKnownSenders {
		knownSenders = knownSenders[:MaxKnownSenders]
	}

	var b strings.Builder
	b.WriteString("Du bist ein Klassifikator für deutsche Dokumente.\n")
	b.WriteString("Aufgabe: Bestimme den wahrscheinlichsten Absender (Firma/Behörde) des folgenden Textes.\n\n")
	b.WriteString("Antworte NUR mit striktem JSON nach diesem Schema:\n")
	b.WriteString(`{
  "sender_canonical": string,
  "confidence": number,         // 0.0..1.0
  "evidence": [string],         // bis zu 3 kurze Textstellen (je <=120 Zeichen)
  "document_type": string,      // ` + strings.Join(constants.DocumentTypesAsStrings(), "|") + `
  "filename_label": string,     // kurzes deutsches Etikett für den Dateinamen
  "notes": string,
  "is_private": boolean,
  "target_folder": string,      // vorhandener Ordner oder leer
  "folder_reason": string
}
`)
	b.WriteString("\nRegeln:\n")
	for _, rule := range promptRules {
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteByte('\n')
	}

	b.WriteString("\nBekannte Absender:\n")
	writeList(&b, knownSenders)
	b.WriteString("\nVorhandene Ordner:\n")
	writeList(&b, existingFolders)

	b.WriteString("\nDokumenttext (kann OCR-Fehler enthalten):\n<<<BEGIN_TEXT\n")
	b.WriteString(text)
	b.WriteString("\nEND_TEXT>>>\n")
	return b.String()
}

var promptRules = []string{
	"Bei Unsicherheit setze confidence < 0.7.",
	"Bevorzuge einen Namen aus den bekannten Absendern, wenn er passt.",
	`filename_label ist eine kurze deutsche Bezeichnung mit 1 bis 3 Wörtern (z.B. "Rechnung", "Mahnung", "Vertrag", "Gehaltsabrechnung").`,
	"Keine Daten, Rechnungsnummern, Kundennummern, Namen, Adressen oder IBAN im filename_label.",
	"Keine Ziffern und keine Sonderzeichen außer Leerzeichen und deutschen Buchstaben im filename_label.",
	`Wenn du dich nicht entscheiden kannst, verwende "Dokument".`,
	"target_folder nur setzen, wenn einer der vorhandenen Ordner eindeutig passt; Begründung in folder_reason.",
	"is_private=true für Glückwunschkarten, persönliche Briefe und private Schreiben, die nicht von Firmen stammen.",
	"Nur JSON ausgeben. Kein Markdown, kein Kommentar.",
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- (keine)\n")
		return
	}
	for _, s := range items {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
}
