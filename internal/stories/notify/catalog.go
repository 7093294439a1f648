package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"gopkg.in/yaml.v3"
)

//go:embed notices.yaml
var noticesFS embed.FS

type Kind string

const (
	KindBadCredential Kind = "bad_credential"
	KindExpiration    Kind = "expiration"
)

type notice struct {
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
}

type noticeData struct {
	Email      string
	Expiration string
	HomeURL    string
}

// Catalog holds the parsed notice templates keyed by kind.
type Catalog struct {
	subjects  map[Kind]string
	templates map[Kind]*template.Template
}

func NewCatalog() (*Catalog, error) {
	data, err := noticesFS.ReadFile("notices.yaml")
	if err != nil {
		return nil, fmt.Errorf("read notices: %w", err)
	}

	var raw map[Kind]notice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse notices: %w", err)
	}

	c := &Catalog{
		subjects:  make(map[Kind]string, len(raw)),
		templates: make(map[Kind]*template.Template, len(raw)),
	}

	for _, kind := range []Kind{KindBadCredential, KindExpiration} {
		n, ok := raw[kind]
		if !ok {
			return nil, fmt.Errorf("notice %q is missing", kind)
		}
		tmpl, err := template.New(string(kind)).Parse(n.HTML)
		if err != nil {
			return nil, fmt.Errorf("parse notice %q: %w", kind, err)
		}
		c.subjects[kind] = n.Subject
		c.templates[kind] = tmpl
	}

	return c, nil
}

func (c *Catalog) render(kind Kind, data noticeData) (subject, html string, err error) {
	tmpl, ok := c.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notice %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render notice %q: %w", kind, err)
	}

	return c.subjects[kind], buf.String(), nil
}
