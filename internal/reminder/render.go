package reminder

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.md
var templateFS embed.FS

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "Payment reminder: {{.Term}} for booking {{.BookingID}}"

// Raw HTML in the Markdown source is dropped (WithUnsafe is not set). Values
// are escaped before they reach the template, see templateData.escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// templateData is what the subject and body templates see.
type templateData struct {
	TravellerName string
	BookingID     string
	Term          string
	DueDate       string
	Amount        string
	Currency      string
}

// lineBreaks flattens a value onto one line, so it cannot start a new
// Markdown block or a new header.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// markdownEscaper backslash-escapes every character CommonMark or the table
// extension treats as syntax.
var markdownEscaper = func() *strings.Replacer {
	const special = "\\`*_{}[]()<>#+-.!|~&\"'=:"
	pairs := make([]string, 0, 2*len(special))
	for _, c := range special {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

func (d templateData) mapValues(f func(string) string) templateData {
	return templateData{
		TravellerName: f(d.TravellerName),
		BookingID:     f(d.BookingID),
		Term:          f(d.Term),
		DueDate:       f(d.DueDate),
		Amount:        f(d.Amount),
		Currency:      f(d.Currency),
	}
}

// plain is the data as the subject line sees it.
func (d templateData) plain() templateData {
	return d.mapValues(lineBreaks.Replace)
}

// escaped is the data as the body sees it: every value is literal text.
func (d templateData) escaped() templateData {
	return d.mapValues(func(v string) string {
		return markdownEscaper.Replace(lineBreaks.Replace(v))
	})
}

// Renderer produces the subject and HTML body of a reminder.
type Renderer struct {
	subject *template.Template
	body    *template.Template
}

// NewRenderer parses the subject template and the Markdown body template.
// An empty bodyPath selects the built-in template.
func NewRenderer(subject, bodyPath string) (*Renderer, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	subj, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}

	var body *template.Template
	if bodyPath == "" {
		body, err = template.New("payment_reminder.md").Option("missingkey=error").
			ParseFS(templateFS, "templates/payment_reminder.md")
	} else {
		body, err = template.New(filepath.Base(bodyPath)).Option("missingkey=error").
			ParseFiles(bodyPath)
	}
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Renderer{subject: subj, body: body}, nil
}

// Render returns the subject line and HTML body for data.
func (r *Renderer) Render(data templateData) (string, string, error) {
	var subj bytes.Buffer
	if err := r.subject.Execute(&subj, data.plain()); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}

	var md bytes.Buffer
	if err := r.body.Execute(&md, data.escaped()); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	var html bytes.Buffer
	if err := markdown.Convert(md.Bytes(), &html); err != nil {
		return "", "", fmt.Errorf("convert markdown: %w", err)
	}
	return subj.String(), html.String(), nil
}
