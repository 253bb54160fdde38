package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for records (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// MaxAttachmentBytes is the upload limit for a single attachment (10 MiB).
const MaxAttachmentBytes int64 = 10 << 20

const (
	JuanCarlos   Contributor = "Juan Carlos"
	MariaElena   Contributor = "María Elena"
	PedroJose    Contributor = "Pedro José"
	AnaLucia     Contributor = "Ana Lucía"
	LuisFernando Contributor = "Luis Fernando"
)

const (
	MimeImage MimeCategory = "image"
	MimePDF   MimeCategory = "pdf"
)

type (
	// Contributor is one of the known family members. Free text is not a Contributor.
	Contributor string

	MimeCategory string

	Date struct {
		time.Time
	}

	Expense struct {
		ID          string       `json:"id"`
		Concept     string       `json:"concept"`
		Amount      float64      `json:"amount"`
		Date        Date         `json:"date"`
		Description string       `json:"description,omitempty"` // empty means no description
		Attachments []Attachment `json:"attachments"`
	}

	Contribution struct {
		ID          string      `json:"id"`
		Contributor Contributor `json:"contributor"`
		Amount      float64     `json:"amount"`
		Concept     string      `json:"concept"`
		Date        Date        `json:"date"`
	}

	Attachment struct {
		ID           string       `json:"id"`
		ExpenseID    string       `json:"expense_id"`
		FileName     string       `json:"file_name"`
		MimeCategory MimeCategory `json:"mime_category"`
		ContentType  string       `json:"content_type"`
		StorageKey   string       `json:"storage_key"`
		StorageURL   string       `json:"storage_url"`
		SizeBytes    int64        `json:"size_bytes"`
	}
)

var knownContributors = []Contributor{JuanCarlos, MariaElena, PedroJose, AnaLucia, LuisFernando}

// KnownContributors returns the closed set of contributors in display order.
func KnownContributors() []Contributor {
	return append([]Contributor(nil), knownContributors...)
}

// IsKnown reports whether c is a member of the closed contributor set.
// Matching is exact and case-sensitive.
func (c Contributor) IsKnown() bool {
	for _, k := range knownContributors {
		if c == k {
			return true
		}
	}
	return false
}

func (c Contributor) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HasDescription reports whether the expense carries a non-blank description.
func (e Expense) HasDescription() bool {
	return strings.TrimSpace(e.Description) != ""
}

// CategoryForContentType maps a content type to an accepted attachment category.
func CategoryForContentType(contentType string) (MimeCategory, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MimeImage, true
	case ct == "application/pdf":
		return MimePDF, true
	default:
		return "", false
	}
}
