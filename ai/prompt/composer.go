// Package prompt composes the text sent to the generation backend from the
// turn's signals and the recent session history.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/hrygo/alsassist/ai/configloader"
	"github.com/hrygo/alsassist/ai/session"
	"github.com/hrygo/alsassist/internal/errclass"
)

//go:embed templates/*
var builtin embed.FS

const (
	indexFile       = "index.yaml"
	historyMessages = 6
	newConversation = "(new conversation)"
	generalSupport  = "general support"
)

// Index selects a template per response strategy.
type Index struct {
	System   string            `yaml:"system"`
	Default  string            `yaml:"default"`
	Mappings map[string]string `yaml:"mappings"`
}

// Input carries everything a prompt is built from.
type Input struct {
	Session            *session.Session
	Message            string
	Emotion            string
	Strategy           string
	StageName          string
	PositiveIndicators string
	Needs              []string
}

// templateData is what the templates see.
type templateData struct {
	Message            string
	Context            string
	Emotion            string
	StageName          string
	Needs              string
	PositiveIndicators string
}

// Composer holds the parsed templates.
type Composer struct {
	templates map[string]*template.Template
	index     Index
	system    string
}

// NewComposer loads and parses the templates. Files in overrideDir replace the
// built-in ones of the same name. Any missing or malformed template is a
// configuration error.
func NewComposer(overrideDir string) (*Composer, error) {
	loader := configloader.NewLoader(overrideDir, builtinTemplates())

	c := &Composer{templates: map[string]*template.Template{}}
	if err := loader.Load(indexFile, &c.index); err != nil {
		return nil, errclass.Configuration("prompt", err)
	}
	if c.index.Default == "" {
		return nil, errclass.MissingConfig("prompt", "default template")
	}

	if c.index.System != "" {
		system, err := loader.ReadFile(c.index.System)
		if err != nil {
			return nil, errclass.Configuration("prompt", err)
		}
		c.system = strings.TrimSpace(string(system))
	}

	names := []string{c.index.Default}
	for _, name := range c.index.Mappings {
		names = append(names, name)
	}
	for _, name := range names {
		if _, ok := c.templates[name]; ok {
			continue
		}
		body, err := loader.ReadFile(name)
		if err != nil {
			return nil, errclass.Configuration("prompt", err)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(body))
		if err != nil {
			return nil, errclass.Configuration("prompt", fmt.Errorf("parse %s: %w", name, err))
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// TemplateFor returns the template name used for strategy.
func (c *Composer) TemplateFor(strategy string) string {
	if name, ok := c.index.Mappings[strategy]; ok {
		return name
	}
	return c.index.Default
}

// Build renders the prompt: the system preamble, a blank line, then the
// strategy's template filled from in.
func (c *Composer) Build(in Input) (string, error) {
	name := c.TemplateFor(in.Strategy)

	needs := generalSupport
	if len(in.Needs) > 0 {
		needs = strings.Join(in.Needs, ", ")
	}

	var buf bytes.Buffer
	if err := c.templates[name].Execute(&buf, templateData{
		Message:            in.Message,
		Context:            FormatHistory(in.Session),
		Emotion:            in.Emotion,
		StageName:          in.StageName,
		Needs:              needs,
		PositiveIndicators: in.PositiveIndicators,
	}); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	if c.system == "" {
		return buf.String(), nil
	}
	return c.system + "\n\n" + buf.String(), nil
}

// FormatHistory renders the last six messages as "User: ..." and
// "Assistant: ..." lines.
func FormatHistory(sess *session.Session) string {
	if sess == nil {
		return newConversation
	}
	recent := sess.Recent(historyMessages)
	if len(recent) == 0 {
		return newConversation
	}

	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		role := "Assistant"
		if m.Role == session.RoleUser {
			role = "User"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func builtinTemplates() fs.FS {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
