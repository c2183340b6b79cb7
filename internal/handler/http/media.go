package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/media"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

// MediaHandler accepts product image uploads.
type MediaHandler struct {
	service *media.Service
	logger  *slog.Logger
}

// NewMediaHandler creates a new media HTTP handler.
func NewMediaHandler(svc *media.Service, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{service: svc, logger: logger}
}

// UploadImage handles POST /api/v1/media/images with a multipart "file"
// field. Approved sellers and admins may upload.
func (h *MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	err := authz.Authorize(id,
		authz.RequireAuthenticated(),
		authz.RequireRole(domain.RoleSeller, domain.RoleAdmin),
		authz.RequireApproved(),
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.Validation("file exceeds the upload limit"), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.Validation("multipart field \"file\" is required"), h.logger)
		return
	}
	defer file.Close()

	url, err := h.service.UploadImage(r.Context(), media.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		OwnerID:     id.ID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, map[string]string{"url": url})
}
