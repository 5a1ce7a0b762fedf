// Package templates holds the HTML components of the web UI.
//
// Components are plain templ.Component values; every dynamic string goes
// through templ.EscapeString before it is written.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// writer remembers the first write error so components can write freely
// and report once.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err != nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#0f172a}
main{max-width:64rem;margin:0 auto;padding:2rem}
h1{font-size:1.5rem}
.card{background:#fff;border:1px solid #e2e8f0;border-radius:.5rem;padding:1rem;margin:1rem 0}
.alert{border-radius:.5rem;padding:.75rem 1rem;margin:1rem 0}
.alert-error{background:#fef2f2;border:1px solid #fecaca}
.alert-warning{background:#fffbeb;border:1px solid #fde68a}
.alert-ok{background:#f0fdf4;border:1px solid #bbf7d0}
table{border-collapse:collapse;font-size:.875rem;margin:.5rem 0}
th,td{border:1px solid #e2e8f0;padding:.25rem .5rem;text-align:left}
th{background:#f1f5f9}
td.missing{color:#94a3b8}
.muted{color:#64748b;font-size:.875rem}
code{background:#f1f5f9;padding:0 .25rem;border-radius:.25rem}`

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<title>`)
		w.text(title)
		w.raw(`</title><style>`)
		w.raw(styles)
		w.raw(`</style></head><body><main>`)
		w.component(ctx, body)
		w.raw(`</main></body></html>`)
		return w.err
	})
}

// ErrorAlert renders a user message with its action and support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		alert(w, "error", message, action, code)
		return w.err
	})
}

// ErrorPage is a full page around ErrorAlert.
func ErrorPage(message, action, code string) templ.Component {
	return Layout("Error", templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Table Cleaner</h1>`)
		alert(w, "error", message, action, code)
		w.raw(`<p><a href="/">Back to upload</a></p>`)
		return w.err
	}))
}

func alert(w *writer, kind, message, action, code string) {
	w.printf(`<div class="alert alert-%s" role="alert"><strong>`, kind)
	w.text(message)
	w.raw(`</strong>`)
	if action != "" {
		w.raw(` `)
		w.text(action)
	}
	if code != "" {
		w.raw(` <span class="muted">(Code: `)
		w.text(code)
		w.raw(`)</span>`)
	}
	w.raw(`</div>`)
}
