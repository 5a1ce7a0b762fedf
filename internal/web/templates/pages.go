package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/cleaner/internal/core"
	"github.com/JonMunkholm/cleaner/internal/format"
)

// IndexData is what the upload page shows.
type IndexData struct {
	Capabilities format.Capabilities
	MaxFiles     int
	MaxFileSize  int64
}

// IndexPage is the upload form.
func IndexPage(data IndexData) templ.Component {
	return Layout("Table Cleaner", templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Table Cleaner</h1>`)
		w.raw(`<p class="muted">Upload CSV or Excel files, fill missing numbers with the column mean and download a cleaned copy.</p>`)

		if !data.Capabilities.Spreadsheet {
			reason := data.Capabilities.Reason
			if reason == "" {
				reason = "Excel output is not available on this server."
			}
			alert(w, "warning", reason, "Excel files can still be previewed; upload CSV to download a cleaned copy.", "CAP001")
		}

		w.raw(`<form class="card" method="post" action="/inspect" enctype="multipart/form-data">`)
		w.raw(`<p><label for="files">Files</label><br>`)
		w.raw(`<input id="files" type="file" name="files" accept=".csv,.xlsx" multiple required></p>`)
		w.printf(`<p class="muted">Up to %d files, %s each. Cleaning options are chosen per file after the preview.</p>`,
			data.MaxFiles, humanBytes(data.MaxFileSize))
		w.raw(`<button type="submit">Preview</button></form>`)
		return w.err
	}))
}

// ResultsPage is a full page listing the outcome of each file.
func ResultsPage(batch *core.BatchResult) templ.Component {
	return Layout("Results", templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Results</h1>`)
		w.component(ctx, Results(batch))
		w.raw(`<p><a href="/">Clean more files</a></p>`)
		return w.err
	}))
}

// Results renders one card per file, in upload order.
func Results(batch *core.BatchResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.printf(`<p class="muted">%d cleaned, %d with warnings, %d failed.</p>`,
			batch.Succeeded, batch.Warnings, batch.Failed)
		for _, f := range batch.Files {
			fileCard(w, f)
		}
		return w.err
	})
}

func fileCard(w *writer, f core.FileResult) {
	w.raw(`<section class="card"><h2>`)
	w.text(f.FileName)
	w.raw(`</h2>`)

	if f.Message != nil {
		kind := "error"
		if f.Status == core.StatusWarning {
			kind = "warning"
		}
		alert(w, kind, f.Message.Message, f.Message.Action, f.Message.Code)
		if f.Detail != "" {
			w.raw(`<p class="muted"><code>`)
			w.text(f.Detail)
			w.raw(`</code></p>`)
		}
	}

	if a := f.Artifact; a != nil {
		w.raw(`<p><a href="`)
		w.text(a.URL)
		w.raw(`" download="`)
		w.text(a.DownloadName)
		w.raw(`">Download `)
		w.text(a.DownloadName)
		w.printf(`</a> <span class="muted">(%s)</span></p>`, humanBytes(int64(a.Size)))
	}

	if r := f.Imputed; r != nil && len(r.Columns) > 0 {
		w.raw(`<p class="muted">Filled `)
		parts := make([]string, 0, len(r.Columns))
		for _, c := range r.Columns {
			if c.Skipped {
				parts = append(parts, fmt.Sprintf("%s: no values to average", c.Column))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %d cells with %s", c.Column, c.Filled, c.Mean))
		}
		w.text(strings.Join(parts, "; "))
		w.raw(`</p>`)
	}

	if f.Preview != nil {
		previewTable(w, f.Preview)
	}
	w.raw(`</section>`)
}

func previewTable(w *writer, p *core.Preview) {
	w.printf(`<p class="muted">%d rows, %d columns. First %d rows:</p>`, p.Rows, len(p.Columns), len(p.Head))
	w.raw(`<table><thead><tr>`)
	for _, c := range p.Columns {
		w.raw(`<th>`)
		w.text(c.Name)
		w.raw(`<br><span class="muted">`)
		w.text(string(c.Kind))
		if c.Missing > 0 {
			w.printf(`, %d missing`, c.Missing)
		}
		w.raw(`</span></th>`)
	}
	w.raw(`</tr></thead><tbody>`)
	for _, row := range p.Head {
		w.raw(`<tr>`)
		for _, v := range row {
			if v == "" {
				w.raw(`<td class="missing">&mdash;</td>`)
				continue
			}
			w.raw(`<td>`)
			w.text(v)
			w.raw(`</td>`)
		}
		w.raw(`</tr>`)
	}
	w.raw(`</tbody></table>`)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
