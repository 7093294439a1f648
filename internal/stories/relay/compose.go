package relay

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var messageTemplate = template.Must(template.New("message").Parse(
	`<p>{{if .Text}}<b>{{.Name}}</b> said: {{.Text}}{{else}}<b>{{.Name}}</b> posted a picture{{end}}</p>
{{range .Images}}<p><img src="{{.URL}}" alt="image from {{$.Name}}"></p>
{{end}}<hr>
<p><a href="{{.GroupURL}}">Go to GroupMe</a></p>
<p>Reply to this email to post your message to {{.GroupName}}.</p>
`))

type composeData struct {
	Name      string
	Text      string
	Images    []Attachment
	GroupName string
	GroupURL  string
}

// Compose renders the email body for event in HTML and plain text.
func Compose(event ChatEvent, groupName, groupURL string) (html, text string, err error) {
	data := composeData{
		Name:      event.Name,
		Text:      event.text(),
		Images:    event.Images(),
		GroupName: groupName,
		GroupURL:  groupURL,
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render message: %w", err)
	}

	var plain strings.Builder
	if data.Text != "" {
		fmt.Fprintf(&plain, "%s said: %s\n", data.Name, data.Text)
	} else {
		fmt.Fprintf(&plain, "%s posted a picture\n", data.Name)
	}
	for _, img := range data.Images {
		fmt.Fprintf(&plain, "%s\n", img.URL)
	}
	fmt.Fprintf(&plain, "\nGo to GroupMe: %s\nReply to this email to post your message to %s.\n", groupURL, groupName)

	return buf.String(), plain.String(), nil
}
