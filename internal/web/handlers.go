package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/cleaner/internal/core"
	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/history"
	"github.com/JonMunkholm/cleaner/internal/logging"
	"github.com/JonMunkholm/cleaner/internal/web/templates"
)

// maxHistoryLimit caps the limit query parameter of /api/history.
const maxHistoryLimit = 500

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := templates.IndexPage(templates.IndexData{
		Capabilities: s.service.Capabilities(),
		MaxFiles:     s.cfg.Upload.MaxFiles,
		MaxFileSize:  s.cfg.Upload.MaxFileSize,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleCleanForm cleans the files of the upload form and renders the
// results page (or just the results for HTMX requests).
func (s *Server) handleCleanForm(w http.ResponseWriter, r *http.Request) {
	batch, err := s.cleanUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := templates.ResultsPage(batch)
	if isHTMX(r) {
		page = templates.Results(batch)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render results", "error", err)
	}
}

// handleCleanAPI cleans a multipart batch and returns the BatchResult as
// JSON, with a download URL on each artifact.
func (s *Server) handleCleanAPI(w http.ResponseWriter, r *http.Request) {
	batch, err := s.cleanUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, batch)
}

func (s *Server) cleanUpload(w http.ResponseWriter, r *http.Request) (*core.BatchResult, error) {
	reqs, err := s.parseUpload(w, r)
	if err != nil {
		return nil, err
	}

	batch, err := s.service.CleanBatch(withClient(r), reqs)
	if err != nil {
		return nil, err
	}
	for i := range batch.Files {
		if a := batch.Files[i].Artifact; a != nil {
			a.URL = downloadURL(a.ID)
		}
	}
	return batch, nil
}

// inspectResult is the preview of one file, or why it has none. Files that
// parse are staged; UploadID lets a later clean request refer to them.
type inspectResult struct {
	FileName string            `json:"file_name"`
	UploadID string            `json:"upload_id,omitempty"`
	Preview  *core.Preview     `json:"preview,omitempty"`
	Message  *core.UserMessage `json:"message,omitempty"`
	Detail   string            `json:"detail,omitempty"`
}

// handleInspect parses the uploaded files and returns their columns, kinds
// and first rows so a client can offer a column selection. A file that
// cannot be read gets a message instead of a preview.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	results, err := s.inspectUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"files": results})
}

// handleInspectForm is the second step of the upload page: it previews each
// file and asks for that file's cleaning options.
func (s *Server) handleInspectForm(w http.ResponseWriter, r *http.Request) {
	results, err := s.inspectUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	files := make([]templates.InspectedFile, len(results))
	for i, res := range results {
		files[i] = templates.InspectedFile{
			FileName: res.FileName,
			UploadID: res.UploadID,
			Preview:  res.Preview,
			Message:  res.Message,
			Detail:   res.Detail,
		}
	}

	page := templates.InspectPage(files)
	if isHTMX(r) {
		page = templates.InspectForm(files)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render inspect", "error", err)
	}
}

func (s *Server) inspectUpload(w http.ResponseWriter, r *http.Request) ([]inspectResult, error) {
	reqs, err := s.parseUpload(w, r)
	if err != nil {
		return nil, err
	}

	ctx := withClient(r)
	results := make([]inspectResult, 0, len(reqs))
	for _, req := range reqs {
		res := inspectResult{FileName: req.Name}

		preview, err := s.service.Inspect(ctx, req.Name, req.Data)
		switch {
		case err == nil:
			res.Preview = preview
			res.UploadID = s.service.Stage(req.Name, req.Data)
		case errors.Is(err, format.ErrUnsupportedFormat), errors.Is(err, format.ErrParse):
			msg := core.MapError(err)
			res.Message = &msg
			res.Detail = err.Error()
		default:
			// Busy, cancelled or timed out: the whole request fails.
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// handleCleanFile cleans a single file and responds with the cleaned bytes.
// Problems are returned as a JSON error.
func (s *Server) handleCleanFile(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.parseUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(reqs) != 1 {
		s.fail(w, r, fmt.Errorf("%w: this endpoint takes exactly one file", core.ErrTooManyFiles))
		return
	}

	res, err := s.service.Clean(withClient(r), reqs[0])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if res.Status != core.StatusOK || res.Artifact == nil {
		msg := core.UserMessage{}
		if res.Message != nil {
			msg = *res.Message
		}
		logging.FromContext(r.Context()).Warn("file not cleaned",
			"file", res.FileName,
			"status", res.Status,
			"code", msg.Code,
			"error", res.Err(),
		)
		_ = render.Render(w, r, newAPIError(r, http.StatusUnprocessableEntity, msg, res.Detail))
		return
	}

	artifact, err := s.service.Download(res.Artifact.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, artifact)
}

// handleDownload serves a stored cleaned file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.Download(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, artifact)
}

// capabilitiesResponse is the body of /api/capabilities.
type capabilitiesResponse struct {
	format.Capabilities
	Formats     []format.Format `json:"formats"`
	MaxFiles    int             `json:"max_files"`
	MaxFileSize int64           `json:"max_file_size"`
}

// handleCapabilities reports which outputs work and the upload limits.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, capabilitiesResponse{
		Capabilities: s.service.Capabilities(),
		Formats:      []format.Format{format.CSV, format.XLSX},
		MaxFiles:     s.cfg.Upload.MaxFiles,
		MaxFileSize:  s.cfg.Upload.MaxFileSize,
	})
}

// handleHistory lists the latest cleaned files. The list is empty when no
// database is configured.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			_ = render.Render(w, r, newAPIError(r, http.StatusBadRequest, core.UserMessage{
				Message: "limit must be a positive number",
				Code:    "HTTP400",
			}, ""))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"runs": runs})
}

// handleHealth reports liveness and current load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "ok",
		"uploads":   s.service.Limiter().Status(),
		"artifacts": s.service.Artifacts().Len(),
		"staged":    s.service.Uploads().Len(),
	})
}

func downloadURL(id string) string {
	return "/api/download/" + id
}

func writeArtifact(w http.ResponseWriter, a core.Artifact) {
	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("Content-Disposition", contentDisposition(a.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(a.Data)
}

// contentDisposition quotes plain ASCII names as is and falls back to the
// RFC 2231 form for anything else.
func contentDisposition(name string) string {
	for _, c := range name {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return mime.FormatMediaType("attachment", map[string]string{"filename": name})
		}
	}
	return `attachment; filename="` + name + `"`
}
