package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// MessageType names one entry of the message catalog and is sent to clients
// as data.type.
type MessageType string

const (
	MessageUnavailabilityCreated MessageType = "unavailability_created"
	MessageLessonProposed        MessageType = "lesson_proposed"
	MessageLessonConfirmed       MessageType = "lesson_confirmed"
	MessageLessonCancelled       MessageType = "lesson_cancelled"
	MessageTardinessAlert        MessageType = "tardiness_alert"
)

var requiredMessages = []MessageType{
	MessageUnavailabilityCreated,
	MessageLessonProposed,
	MessageLessonConfirmed,
	MessageLessonCancelled,
	MessageTardinessAlert,
}

//go:embed catalog.yaml
var defaultCatalog []byte

// MessageData is the template input.
type MessageData struct {
	Time   string
	Reason string
	Sender string
}

type catalogFile struct {
	DisplayLayout string `yaml:"display_layout"`
	Messages      map[MessageType]struct {
		Title string `yaml:"title"`
		Body  string `yaml:"body"`
	} `yaml:"messages"`
}

type message struct {
	title *template.Template
	body  *template.Template
}

// Catalog holds compiled title/body templates per message type.
type Catalog struct {
	layout   string
	messages map[MessageType]message
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads the embedded catalog and, when path is set, overlays the
// entries of the file at path on top of it.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	override, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var base, extra catalogFile
	if err := yaml.Unmarshal(defaultCatalog, &base); err != nil {
		return nil, fmt.Errorf("parse default catalog: %w", err)
	}
	if err := yaml.Unmarshal(override, &extra); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if extra.DisplayLayout != "" {
		base.DisplayLayout = extra.DisplayLayout
	}
	for k, v := range extra.Messages {
		base.Messages[k] = v
	}
	return compile(base)
}

// ParseCatalog compiles a YAML catalog. Every message type must be present.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return compile(file)
}

func compile(file catalogFile) (*Catalog, error) {
	if file.DisplayLayout == "" {
		return nil, fmt.Errorf("catalog: display_layout is required")
	}
	c := &Catalog{layout: file.DisplayLayout, messages: make(map[MessageType]message, len(file.Messages))}
	for _, mt := range requiredMessages {
		entry, ok := file.Messages[mt]
		if !ok || entry.Title == "" || entry.Body == "" {
			return nil, fmt.Errorf("catalog: message %s needs a title and a body", mt)
		}
		title, err := template.New(string(mt) + ".title").Option("missingkey=error").Parse(entry.Title)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s title: %w", mt, err)
		}
		body, err := template.New(string(mt) + ".body").Option("missingkey=error").Parse(entry.Body)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s body: %w", mt, err)
		}
		c.messages[mt] = message{title: title, body: body}
	}
	return c, nil
}

// Layout is the Go reference layout used for .Time.
func (c *Catalog) Layout() string {
	return c.layout
}

// Render executes the title and body templates of mt.
func (c *Catalog) Render(mt MessageType, data MessageData) (string, string, error) {
	msg, ok := c.messages[mt]
	if !ok {
		return "", "", fmt.Errorf("catalog: unknown message %s", mt)
	}
	var title, body bytes.Buffer
	if err := msg.title.Execute(&title, data); err != nil {
		return "", "", fmt.Errorf("render %s title: %w", mt, err)
	}
	if err := msg.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", mt, err)
	}
	return title.String(), body.String(), nil
}
