package handler

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"os"

	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/internal/storage"
	"yeenote-sync-server/pkg/response"

	"github.com/gorilla/mux"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// UploadLimits bounds one multipart request.
type UploadLimits struct {
	MaxFileSize int64
	MaxFiles    int
}

func (l UploadLimits) bodyLimit() int64 {
	return l.MaxFileSize*int64(l.MaxFiles) + multipartOverhead
}

// readImages opens every file of the form field. The returned cleanup must be
// called once the files have been consumed. On failure the response has
// already been written.
func readImages(w http.ResponseWriter, r *http.Request, field string, limits UploadLimits) ([]service.ImageFile, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.bodyLimit())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "Upload too large")
		} else {
			response.BadRequest(w, "Invalid multipart form")
		}
		return nil, nil, false
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		r.MultipartForm.RemoveAll()
		response.BadRequest(w, "No files provided in '"+field+"'")
		return nil, nil, false
	}
	if len(headers) > limits.MaxFiles {
		r.MultipartForm.RemoveAll()
		response.TooLarge(w, "Too many files")
		return nil, nil, false
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		r.MultipartForm.RemoveAll()
	}

	files := make([]service.ImageFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > limits.MaxFileSize {
			cleanup()
			response.TooLarge(w, fh.Filename+" is too large")
			return nil, nil, false
		}
		f, err := fh.Open()
		if err != nil {
			cleanup()
			response.BadRequest(w, "Failed to read "+fh.Filename)
			return nil, nil, false
		}
		opened = append(opened, f)
		files = append(files, service.ImageFile{Name: fh.Filename, Size: fh.Size, Body: f})
	}

	return files, cleanup, true
}

// UploadHandler serves stored user files at their stable /uploads/ path.
type UploadHandler struct {
	files storage.FileStorage
}

func NewUploadHandler(files storage.FileStorage) *UploadHandler {
	return &UploadHandler{files: files}
}

// Serve streams the file from local storage, or redirects to a freshly
// signed URL for remote backends.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, err := storage.UserKey(vars["user"], vars["file"])
	if err != nil {
		response.BadRequest(w, "Invalid file path")
		return
	}

	if local, ok := h.files.(*storage.LocalStorage); ok {
		path, err := local.Path(key)
		if err != nil {
			response.BadRequest(w, "Invalid file path")
			return
		}
		if _, err := os.Stat(path); err != nil {
			response.NotFound(w, "File not found")
			return
		}
		http.ServeFile(w, r, path)
		return
	}

	url, err := h.files.URL(r.Context(), key)
	if err != nil {
		log.Printf("[Uploads] Failed to sign %s: %v", key, err)
		response.Unavailable(w, "Storage temporarily unavailable")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
