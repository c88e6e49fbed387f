// Package shared holds the page chrome and small helpers used by every
// server-rendered page.
package shared

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Flash is a one-off notice shown above the page content.
type Flash struct {
	Type    string // success, error, info
	Message string
}

// HTML accumulates the first write error so components can emit markup
// without checking every call.
type HTML struct {
	w   io.Writer
	err error
}

// NewHTML wraps w.
func NewHTML(w io.Writer) *HTML {
	return &HTML{w: w}
}

// Raw writes trusted markup.
func (h *HTML) Raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// Rawf writes trusted markup with escaped arguments.
func (h *HTML) Rawf(format string, args ...any) {
	if h.err != nil {
		return
	}
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = templ.EscapeString(s)
		} else {
			escaped[i] = a
		}
	}
	_, h.err = fmt.Fprintf(h.w, format, escaped...)
}

// Text writes escaped text.
func (h *HTML) Text(s string) {
	h.Raw(templ.EscapeString(s))
}

// Component renders c in place.
func (h *HTML) Component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Err returns the first write error.
func (h *HTML) Err() error {
	return h.err
}

var flashClass = map[string]string{
	"success": "border-green-300 bg-green-50 text-green-900",
	"error":   "border-red-300 bg-red-50 text-red-900",
	"info":    "border-sky-300 bg-sky-50 text-sky-900",
}

// Layout wraps body in the site chrome.
func Layout(title string, flash *Flash, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewHTML(w)
		h.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Rawf(`<title>%s | StreamToSite</title>`, title)
		h.Raw(`</head>`)
		h.Raw(`<body class="min-h-screen bg-slate-50 text-slate-900">`)
		h.Raw(`<nav class="border-b bg-white px-6 py-3"><a class="font-semibold" href="/dashboard">StreamToSite</a>`)
		h.Raw(`<a class="ml-6 text-sm" href="/pricing">Pricing</a></nav>`)
		h.Raw(`<main class="mx-auto max-w-5xl p-6">`)
		if flash != nil && flash.Message != "" {
			class, ok := flashClass[flash.Type]
			if !ok {
				class = flashClass["info"]
			}
			h.Rawf(`<div class="mb-4 rounded border p-3 text-sm %s" role="status">%s</div>`, class, flash.Message)
		}
		h.Component(ctx, body)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}
