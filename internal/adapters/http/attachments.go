package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

func (rt *Router) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "attachment too large"})
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload attachment", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, rt.cfg.MaxUploadBytes+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > rt.cfg.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "attachment too large"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	att, err := rt.reports.AddAttachment(r.Context(), mustActor(r), chi.URLParam(r, "id"), domain.AttachmentUpload{
		Filename: header.Filename,
		MimeType: mimeType,
		Category: strings.TrimSpace(r.FormValue("category")),
		Data:     data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (rt *Router) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	att, rc, err := rt.reports.OpenAttachment(r.Context(), mustActor(r), chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := att.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	if att.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("attachment_stream_failed", "request_id", requestIDFromContext(r.Context()), "attachment_id", att.ID, "error", err)
	}
}

func (rt *Router) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := rt.reports.RemoveAttachment(r.Context(), mustActor(r), chi.URLParam(r, "id"), chi.URLParam(r, "attachmentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
