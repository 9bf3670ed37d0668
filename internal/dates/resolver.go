package dates

import (
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// MetaReader returns the raw CreationDate and ModDate strings of a PDF.
type MetaReader func(path string) (created, modified string, err error)

// Resolution is the chosen date plus the optional facts observed on the way.
type Resolution struct {
	Date    string               // YYYY-MM-DD
	Source  constants.DateSource // which source produced Date
	PDFMeta *time.Time           // nil when the PDF carries no parseable date
	Birth   *time.Time           // nil when the filesystem has no birth time
}

// Resolver picks one calendar date for a file from a priority list of sources.
type Resolver struct {
	now      func() time.Time
	readMeta MetaReader
	logger   *slog.Logger
}

type Option func(*Resolver)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMetaReader replaces the pdfcpu metadata reader.
func WithMetaReader(fn MetaReader) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.readMeta = fn
		}
	}
}

func NewResolver(logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{now: time.Now, readMeta: ReadPDFInfoDates, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve walks priority in order and returns the first source that yields a date.
// Unknown names are skipped. When nothing matches, today is used.
func (r *Resolver) Resolve(path string, priority []string) Resolution {
	res := Resolution{}
	if t, ok := r.PDFMetaDate(path); ok {
		res.PDFMeta = &t
	}
	if t, ok := BirthTime(path); ok {
		res.Birth = &t
	}

	for _, name := range priority {
		var (
			t  time.Time
			ok bool
		)
		switch constants.DateSource(name) {
		case constants.DateSourcePDFMeta:
			if res.PDFMeta != nil {
				t, ok = *res.PDFMeta, true
			}
		case constants.DateSourceFileBirthtime:
			if res.Birth != nil {
				t, ok = *res.Birth, true
			}
		case constants.DateSourceMtime:
			t, ok = ModTime(path)
		case constants.DateSourceToday:
			t, ok = r.now(), true
		default:
			r.logger.Warn("dates.unknown_source", "source", name)
			continue
		}
		if ok {
			res.Date = t.Format(constants.DateLayout)
			res.Source = constants.DateSource(name)
			return res
		}
		r.logger.Debug("dates.source_absent", "path", path, "source", name)
	}

	res.Date = r.now().Format(constants.DateLayout)
	res.Source = constants.DateSourceToday
	return res
}

// PDFMetaDate reads CreationDate, then ModDate, from the PDF info dictionary.
func (r *Resolver) PDFMetaDate(path string) (time.Time, bool) {
	created, modified, err := r.readMeta(path)
	if err != nil {
		r.logger.Debug("dates.pdf_meta.read_failed", "path", path, "error", err)
		return time.Time{}, false
	}
	for _, raw := range []string{created, modified} {
		if t, ok := ParsePDFDate(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ModTime returns the filesystem modification time.
func ModTime(path string) (time.Time, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

var rePDFDate = regexp.MustCompile(`^(?:D:)?(\d{4})(\d{2})(\d{2})`)

// ParsePDFDate reads the calendar date of a PDF date string such as
// "D:20240131120000+01'00'". Impossible dates (month 13, Feb 30) are rejected.
func ParsePDFDate(s string) (time.Time, bool) {
	m := rePDFDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.Local)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// ReadPDFInfoDates opens the PDF with pdfcpu and returns its info dates.
func ReadPDFInfoDates(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", "", err
	}
	return ctx.XRefTable.CreationDate, ctx.XRefTable.ModDate, nil
}
