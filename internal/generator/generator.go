// Package generator turns an uploaded form scan or document into a form schema.
package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"formintake/internal/document"
	"formintake/internal/formschema"
	"formintake/pkg/logger"

	"go.uber.org/zap"
)

const structurePrompt = `Analyze the attached form and describe it as JSON with this shape:
{"formName": string, "description": string, "pages": [{"pageNumber": 1, "title": string, "fields": [
 {"id": string, "type": "text|email|tel|date|number|select|radio|checkbox|textarea", "label": string,
  "placeholder": string, "required": bool,
  "validation": {"minLength": number, "maxLength": number, "pattern": string, "options": [string]},
  "position": {"x": number, "y": number, "width": number, "height": number}}]}]}
Give every field a unique id, mark required fields, list options for select and radio fields,
and number pages from 1. Reply with the JSON only.`

const documentPrompt = structurePrompt + `

The form's text content follows.

`

const htmlPrompt = `Convert the form structure below into a single responsive HTML5 form styled with Bootstrap 5.
Use labelled inputs matching each field type, aria attributes, and required/pattern attributes for client-side checks.
Reply with the HTML only.

Form Structure:
`

// Result is a generated structure ready to store.
// StructureJSON is the text to persist; Schema is its parsed form.
type Result struct {
	Name          string
	Description   string
	StructureJSON string
	Schema        *formschema.Schema
	Fallback      bool
	Reason        string
}

type Generator struct {
	client    Completer
	extractor document.Extractor
	logger    *logger.Logger
}

func New(client Completer, extractor document.Extractor, log *logger.Logger) *Generator {
	return &Generator{client: client, extractor: extractor, logger: log}
}

// GenerateStructure never fails: a missing key, a failed call or an unusable reply all yield the fallback form.
func (g *Generator) GenerateStructure(ctx context.Context, data []byte, fileName string) *Result {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	res := &Result{
		Name:        base,
		Description: fmt.Sprintf("AI-generated form from %s", fileName),
	}

	if !g.client.Configured() {
		g.logger.Warn("completion API key not configured, using fallback form", zap.String("file", fileName))
		return g.fallback(res, fileName, "api key not configured")
	}

	raw, err := g.ask(ctx, data, fileName)
	if err != nil {
		g.logger.Warn("form generation call failed, using fallback form",
			zap.String("file", fileName),
			zap.Error(err))
		return g.fallback(res, fileName, err.Error())
	}

	text := StripFences(raw)
	schema, err := formschema.Parse(text)
	if err == nil {
		err = schema.Check()
	}
	if err != nil {
		g.logger.Warn("generated structure is invalid, using fallback form",
			zap.String("file", fileName),
			zap.Error(err))
		return g.fallback(res, fileName, err.Error())
	}

	res.StructureJSON = text
	res.Schema = schema
	g.logger.Info("generated form structure",
		zap.String("file", fileName),
		zap.Int("pages", schema.TotalPages()))
	return res
}

func (g *Generator) ask(ctx context.Context, data []byte, fileName string) (string, error) {
	t := document.Detect(fileName)
	switch {
	case t == document.TypeImage:
		return g.client.CompleteWithImage(ctx, structurePrompt, data, document.ContentType(fileName))
	case document.IsDocument(t):
		text, err := g.extractor.ExtractText(data, fileName)
		if err != nil {
			return "", fmt.Errorf("failed to extract text: %w", err)
		}
		return g.client.Complete(ctx, documentPrompt+text)
	default:
		return "", fmt.Errorf("%w: %s", document.ErrUnsupported, filepath.Ext(fileName))
	}
}

func (g *Generator) fallback(res *Result, fileName, reason string) *Result {
	res.Schema = formschema.Fallback(fileName)
	res.StructureJSON = formschema.FallbackJSON(fileName)
	res.Fallback = true
	res.Reason = reason
	return res
}

// GenerateHTML asks the model for a standalone HTML rendering. Errors are returned as is.
func (g *Generator) GenerateHTML(ctx context.Context, structureJSON string) (string, error) {
	if !g.client.Configured() {
		return "", &ExternalServiceError{Service: "openai", Err: fmt.Errorf("api key not configured")}
	}
	html, err := g.client.Complete(ctx, htmlPrompt+structureJSON)
	if err != nil {
		return "", err
	}
	return StripFences(html), nil
}

// StripFences removes a surrounding markdown code fence, with or without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func dataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
