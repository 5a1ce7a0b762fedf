package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/cleaner/internal/core"
)

const (
	// maxMemory is how much of a multipart form is held in memory; larger
	// parts spill to temporary files.
	maxMemory = 32 << 20

	// formOverhead allows for multipart boundaries and option fields on top
	// of the file bytes.
	formOverhead = 1 << 20

	filesField  = "files"
	uploadField = "upload"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseUpload reads the multipart form into one FileRequest per uploaded
// file, in upload order. Instead of files the form may name files staged by
// an earlier inspect request.
//
// Form fields:
//   - files: the uploaded files (repeated)
//   - upload: ids of staged files (repeated), used when files is empty
//   - impute: "on" fills missing numbers in every file
//   - impute_<i>: overrides impute for file i
//   - columns: comma separated column names kept in every file
//   - columns_<i>: column names kept in file i (repeated), overriding columns
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) ([]core.FileRequest, error) {
	maxFiles := s.cfg.Upload.MaxFiles
	maxSize := s.cfg.Upload.MaxFileSize

	r.Body = http.MaxBytesReader(w, r.Body, maxSize*int64(maxFiles)+formOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit)
		case errors.Is(err, http.ErrNotMultipart):
			return nil, core.ErrNoFiles
		default:
			return nil, fmt.Errorf("parse form: %w", err)
		}
	}
	defer r.MultipartForm.RemoveAll()

	values := r.MultipartForm.Value
	headers := r.MultipartForm.File[filesField]
	if len(headers) == 0 && len(values[uploadField]) > 0 {
		return s.stagedRequests(values)
	}
	if err := s.validate.Var(headers, fmt.Sprintf("min=1,max=%d", maxFiles)); err != nil {
		return nil, countError(err, len(headers), maxFiles)
	}

	reqs := make([]core.FileRequest, 0, len(headers))
	for i, fh := range headers {
		if fh.Size > maxSize {
			return nil, fmt.Errorf("%w: %q is %d bytes, the limit is %d", core.ErrFileTooLarge, fh.Filename, fh.Size, maxSize)
		}

		data, err := readPart(fh, maxSize)
		if err != nil {
			return nil, err
		}

		req := core.FileRequest{
			Name:    filepath.Base(fh.Filename),
			Data:    data,
			Options: optionsFor(values, i),
		}
		if err := s.validate.Struct(req); err != nil {
			return nil, fmt.Errorf("%w: file %d: %s", core.ErrInvalidOptions, i+1, describe(err))
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// stagedRequests builds requests for files kept by Service.Stage. The i-th
// id takes the options of file i.
func (s *Server) stagedRequests(values map[string][]string) ([]core.FileRequest, error) {
	ids := values[uploadField]
	maxFiles := s.cfg.Upload.MaxFiles
	if err := s.validate.Var(ids, fmt.Sprintf("min=1,max=%d", maxFiles)); err != nil {
		return nil, countError(err, len(ids), maxFiles)
	}

	reqs := make([]core.FileRequest, 0, len(ids))
	for i, id := range ids {
		req, err := s.service.Staged(id)
		if err != nil {
			return nil, err
		}
		req.Options = optionsFor(values, i)
		if err := s.validate.Struct(req); err != nil {
			return nil, fmt.Errorf("%w: file %d: %s", core.ErrInvalidOptions, i+1, describe(err))
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func readPart(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", fh.Filename, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %q exceeds %d bytes", core.ErrFileTooLarge, fh.Filename, maxSize)
	}
	return data, nil
}

// optionsFor resolves the options of file i, per-file fields first.
func optionsFor(values map[string][]string, i int) core.Options {
	var opts core.Options

	opts.Impute = isChecked(values["impute"])
	if v, ok := values["impute_"+strconv.Itoa(i)]; ok {
		opts.Impute = isChecked(v)
	}

	if v, ok := values["columns_"+strconv.Itoa(i)]; ok {
		opts.Columns = v
	} else {
		opts.Columns = splitColumns(values["columns"])
	}
	return opts
}

// isChecked treats the last value as the checkbox state, so a hidden "off"
// input followed by a checked "on" reads as checked.
func isChecked(values []string) bool {
	if len(values) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(values[len(values)-1])) {
	case "on", "1", "true", "yes":
		return true
	}
	return false
}

// splitColumns reads the free text columns field. Blank entries are ignored.
func splitColumns(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// countError maps a failed file count check to the request error.
func countError(err error, got, limit int) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return fmt.Errorf("%w: %d files, the limit is %d", core.ErrTooManyFiles, got, limit)
	}
	return core.ErrNoFiles
}

// describe lists validation failures as "field: rule".
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
