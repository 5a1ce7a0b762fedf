package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/cleaner/internal/core"
)

// InspectedFile is an uploaded file waiting for its cleaning options.
// UploadID is empty when the file could not be read; Message says why.
type InspectedFile struct {
	FileName string
	UploadID string
	Preview  *core.Preview
	Message  *core.UserMessage
	Detail   string
}

// maxSelectRows caps the visible height of a column list.
const maxSelectRows = 8

// InspectPage shows each uploaded file as read and asks for its options.
func InspectPage(files []InspectedFile) templ.Component {
	return Layout("Choose options", templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Choose cleaning options</h1>`)
		w.component(ctx, InspectForm(files))
		w.raw(`<p><a href="/">Upload other files</a></p>`)
		return w.err
	}))
}

// InspectForm is the options form: one card per file with its preview, a
// fill checkbox and a column list with every column selected. Files that
// could not be read are listed with their error and left out of the form.
//
// Field i of the form belongs to the i-th staged file, matching the
// upload, impute_<i> and columns_<i> fields read by the clean handler.
func InspectForm(files []InspectedFile) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}

		staged := 0
		w.raw(`<form method="post" action="/clean" enctype="multipart/form-data">`)
		for _, f := range files {
			if f.UploadID == "" || f.Preview == nil {
				unreadableCard(w, f)
				continue
			}
			optionsCard(w, staged, f)
			staged++
		}
		if staged > 0 {
			w.raw(`<button type="submit">Clean</button>`)
		}
		w.raw(`</form>`)
		return w.err
	})
}

func optionsCard(w *writer, i int, f InspectedFile) {
	idx := strconv.Itoa(i)

	w.raw(`<section class="card"><h2>`)
	w.text(f.FileName)
	w.raw(`</h2>`)
	w.raw(`<input type="hidden" name="upload" value="`)
	w.text(f.UploadID)
	w.raw(`">`)

	previewTable(w, f.Preview)

	// The hidden "off" comes first; a checked box sends "on" after it.
	w.raw(`<p><input type="hidden" name="impute_` + idx + `" value="off">`)
	w.raw(`<label><input type="checkbox" name="impute_` + idx + `" value="on"> Fill missing values with the column mean</label></p>`)

	w.raw(`<p><label for="columns_` + idx + `">Columns to keep</label><br>`)
	w.printf(`<select id="columns_%s" name="columns_%s" multiple size="%d">`, idx, idx, min(len(f.Preview.Columns), maxSelectRows))
	for _, c := range f.Preview.Columns {
		w.raw(`<option value="`)
		w.text(c.Name)
		w.raw(`" selected>`)
		w.text(c.Name)
		w.raw(`</option>`)
	}
	w.raw(`</select></p>`)
	w.raw(`</section>`)
}

func unreadableCard(w *writer, f InspectedFile) {
	w.raw(`<section class="card"><h2>`)
	w.text(f.FileName)
	w.raw(`</h2>`)
	if m := f.Message; m != nil {
		alert(w, "error", m.Message, m.Action, m.Code)
	}
	if f.Detail != "" {
		w.raw(`<p class="muted"><code>`)
		w.text(f.Detail)
		w.raw(`</code></p>`)
	}
	w.raw(`</section>`)
}
