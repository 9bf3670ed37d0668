package naming

import (
	"strings"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// TemplateValues are the tokens a naming template may reference.
type TemplateValues struct {
	Date    string
	Sender  string
	DocType string
	Folder  string
	Label   string
}

// RenderTemplate expands {{date}}, {{sender}}, {{doctype}}, {{folder}} and {{label}}
// and collapses whitespace. An empty template renders to "".
func RenderTemplate(template string, v TemplateValues) string {
	t := strings.TrimSpace(template)
	if t == "" {
		return ""
	}
	label := strings.TrimSpace(v.Label)
	if label == "" {
		label = constants.DefaultLabel
	}
	r := strings.NewReplacer(
		"{{date}}", v.Date,
		"{{sender}}", strings.TrimSpace(v.Sender),
		"{{doctype}}", strings.TrimSpace(v.DocType),
		"{{folder}}", strings.TrimSpace(v.Folder),
		"{{label}}", label,
	)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(r.Replace(t), " "))
}

// TemplateOwnsDate reports whether the template places the date itself,
// in which case no separate date prefix is added.
func TemplateOwnsDate(template string) bool {
	return strings.Contains(template, "{{date}}")
}

// Options carries the renaming settings for one run.
type Options struct {
	Separator    string
	KeepUmlauts  bool
	MaxLen       int
	SuffixFormat string
	MaxSuffix    int
	Template     string
}

// BaseName picks the stem (template, or label plus hint) and adds the date prefix
// unless the template already contains the date.
func (o Options) BaseName(datePrefix, hint string, v TemplateValues) string {
	stem := RenderTemplate(o.Template, v)
	if stem == "" {
		stem = StemSource(v.Label, hint)
	}
	if TemplateOwnsDate(o.Template) {
		datePrefix = ""
	}
	return BuildBaseName(datePrefix, stem, o.Separator, o.KeepUmlauts, o.MaxLen)
}

// Resolve finds a free destination for base+ext in dir.
func (o Options) Resolve(dir, base, ext string) (string, error) {
	return ResolveCollision(dir, base, ext, o.SuffixFormat, o.MaxSuffix)
}
