package http

import (
	"errors"
	"mime/multipart"
	"net/http"

	"finca/internal/auth"
	"finca/internal/core"
	applog "finca/internal/log"
	"finca/internal/services"
)

const (
	maxFilesPerRequest = 10
	multipartMemory    = 8 << 20
	// each part may carry some framing on top of the file limit
	maxUploadBytes = maxFilesPerRequest * (core.MaxAttachmentBytes + 1<<20)
)

var errTooManyFiles = errors.New("too many files in one request")

// handleAttach stores every "file" part against the expense, in submission
// order. Files stored before a failure stay attached and are listed in the
// error body under "stored".
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	expenseID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			ErrorResponse(http.StatusUnsupportedMediaType, "unsupported_media_type", "Envíe los archivos como multipart/form-data").Write(w)
		case errors.As(err, &mbe):
			ErrorResponse(http.StatusRequestEntityTooLarge, "file_too_large", "La solicitud supera el tamaño permitido").Write(w)
		default:
			ErrorResponse(http.StatusBadRequest, "invalid_body", "Formato de solicitud no válido").Write(w)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	switch {
	case len(headers) == 0:
		writeError(w, r, applog.OpAttach, core.MissingField("file"))
		return
	case len(headers) > maxFilesPerRequest:
		writeError(w, r, applog.OpAttach, &core.ValidationError{Field: "file", Err: errTooManyFiles})
		return
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		writeError(w, r, applog.OpAttach, err)
		return
	}

	stored, err := s.attachments.AttachAll(r.Context(), auth.FromContext(r.Context()), expenseID, uploads)
	if err != nil {
		resp := errorResponse(err)
		if body, ok := resp.body.(ErrorBody); ok && len(stored) > 0 {
			body.Stored = stored
			resp.body = body
		}
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Attachment upload stopped",
			applog.FieldRecordID, expenseID,
			"stored", len(stored),
			applog.FieldError, err)
		resp.Write(w)
		return
	}

	resp := NewResponse().Status(http.StatusCreated)
	for _, a := range stored {
		resp.Trigger(TriggerAttachmentCreated, map[string]string{"id": a.ID, "expense_id": expenseID})
	}
	resp.Trigger(TriggerDashboardRefresh, nil).
		JSON(map[string]any{"attachments": stored}).
		Write(w)
}

func openUploads(headers []*multipart.FileHeader) ([]services.Upload, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		uploads = append(uploads, services.Upload{FileName: fh.Filename, Size: fh.Size, Body: f})
	}
	return uploads, closeAll, nil
}
