// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultLinkText labels the link button when PageOptions.LinkText is
// empty.
const DefaultLinkText = "Open console →"

// PageOptions customises the entry form.
type PageOptions struct {
	// SingleKey, when set, limits the form to one value stored under
	// this key. The server rejects submissions naming any other key.
	SingleKey string

	// Instructions is Markdown shown above the form. Inline HTML is
	// passed through: the text comes from the operator who started the
	// portal, not from the visitor.
	Instructions string

	// LinkURL adds a button opening the given URL in a new tab.
	LinkURL string

	// LinkText labels the link button.
	LinkText string
}

//go:embed page.html
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

var instructionsMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe(), html.WithHardWraps()),
)

type pageData struct {
	SingleKey    string
	Instructions template.HTML
	LinkURL      string
	LinkText     string
	EnvPath      string
	Deadline     string
	SubmitPath   string
}

// page holds the parts of the form that are fixed for the life of the
// server. render fills in the per-request fields.
type page struct {
	data pageData
}

func newPage(options PageOptions, envPath string, deadline time.Time) (*page, error) {
	data := pageData{
		SingleKey: options.SingleKey,
		LinkURL:   options.LinkURL,
		LinkText:  options.LinkText,
		EnvPath:   envPath,
		Deadline:  deadline.Format("15:04:05 MST"),
	}
	if data.LinkURL != "" && data.LinkText == "" {
		data.LinkText = DefaultLinkText
	}
	if options.Instructions != "" {
		var rendered bytes.Buffer
		if err := instructionsMarkdown.Convert([]byte(options.Instructions), &rendered); err != nil {
			return nil, fmt.Errorf("rendering instructions: %w", err)
		}
		data.Instructions = template.HTML(rendered.String())
	}
	return &page{data: data}, nil
}

func (p *page) render(submitPath string) ([]byte, error) {
	data := p.data
	data.SubmitPath = submitPath
	var output bytes.Buffer
	if err := pageTemplate.Execute(&output, data); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return output.Bytes(), nil
}
