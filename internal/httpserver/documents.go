package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aicourt/backend/internal/middleware"
	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/internal/service"
	"github.com/aicourt/backend/pkg/logging"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type DocumentHTTP struct {
	Svc *service.DocumentService
}

// documentSummary strips the storage internals from upload responses.
func documentSummary(doc *models.Document) echo.Map {
	return echo.Map{
		"id":           doc.ID,
		"filename":     doc.Filename,
		"originalName": doc.OriginalName,
		"fileType":     doc.FileType,
		"fileSize":     doc.FileSize,
		"ownerEmail":   doc.OwnerEmail,
		"ownerName":    doc.OwnerName,
		"description":  doc.Description,
		"tags":         doc.Tags,
		"status":       doc.Status,
		"isSigned":     doc.IsSigned,
		"createdAt":    doc.CreatedAt,
	}
}

func (h *DocumentHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "documents_upload")
	user, _ := middleware.Principal(c)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "please select a file to upload")
	}

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "tags must be a JSON array of strings")
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		l.Error("upload_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to read uploaded file")
	}
	defer src.Close()

	doc, err := h.Svc.Upload(ctx, user, service.UploadParams{
		OriginalName: fileHeader.Filename,
		ContentType:  fileHeader.Header.Get(echo.HeaderContentType),
		Size:         fileHeader.Size,
		Content:      src,
		Description:  c.FormValue("description"),
		Tags:         tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFileType):
			return errorJSON(c, http.StatusBadRequest, "InvalidFileType", "only PDF, DOC, DOCX and TXT files are allowed")
		case errors.Is(err, service.ErrFileTooLarge):
			return errorJSON(c, http.StatusBadRequest, "FileTooLarge", "file exceeds the 10MB limit")
		}
		l.Error("upload_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to upload document")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":  "document uploaded successfully",
		"document": documentSummary(doc),
	})
}

func listParamsFromQuery(c echo.Context) service.ListParams {
	return service.ListParams{
		Page:     parseIntDefault(c.QueryParam("page"), 1),
		Limit:    parseIntDefault(c.QueryParam("limit"), 10),
		Status:   c.QueryParam("status"),
		IsSigned: parseBoolParam(c.QueryParam("isSigned")),
	}
}

func (h *DocumentHTTP) MyDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	params := listParamsFromQuery(c)
	total, docs, err := h.Svc.ListMine(ctx, user, params)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to list documents")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"documents":  docs,
		"pagination": paginationMeta(max(params.Page, 1), max(params.Limit, 1), total),
	})
}

func (h *DocumentHTTP) AllDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	params := listParamsFromQuery(c)
	if raw := c.QueryParam("uploadedBy"); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "uploadedBy must be a valid id")
		}
		params.OwnerID = &ownerID
	}

	total, docs, err := h.Svc.ListAll(ctx, user, params)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			return errorJSON(c, http.StatusForbidden, "Forbidden", "insufficient permissions")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to list documents")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"documents":  docs,
		"pagination": paginationMeta(max(params.Page, 1), max(params.Limit, 1), total),
	})
}

// docID parses the :id path param, writing the 400 response itself when the
// value is not a valid id.
func (h *DocumentHTTP) docID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *DocumentHTTP) GetDocument(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	id, ok := h.docID(c)
	if !ok {
		return nil
	}

	doc, err := h.Svc.Get(ctx, user, id)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "the requested document does not exist")
		case errors.Is(err, service.ErrForbidden):
			return errorJSON(c, http.StatusForbidden, "Forbidden", "you can only access your own documents")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to get document")
	}

	return c.JSON(http.StatusOK, echo.Map{"document": doc})
}

func (h *DocumentHTTP) Download(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	id, ok := h.docID(c)
	if !ok {
		return nil
	}

	doc, body, err := h.Svc.Download(ctx, user, id)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "the requested document does not exist")
		case errors.Is(err, service.ErrForbidden):
			return errorJSON(c, http.StatusForbidden, "Forbidden", "you can only download your own documents")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to download document")
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, doc.OriginalName))
	return c.Stream(http.StatusOK, "application/octet-stream", body)
}

func (h *DocumentHTTP) Sign(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "documents_sign")
	user, _ := middleware.Principal(c)

	id, ok := h.docID(c)
	if !ok {
		return nil
	}

	doc, err := h.Svc.Sign(ctx, user, id)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "the requested document does not exist")
		case errors.Is(err, repo.ErrAlreadySigned):
			return errorJSON(c, http.StatusBadRequest, "AlreadySigned", "this document has already been signed")
		case errors.Is(err, service.ErrForbidden):
			return errorJSON(c, http.StatusForbidden, "Forbidden", "insufficient permissions")
		}
		l.Error("sign_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to sign document")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "document signed successfully",
		"document": echo.Map{
			"id":            doc.ID,
			"filename":      doc.Filename,
			"isSigned":      doc.IsSigned,
			"signedById":    doc.SignedByID,
			"signedByEmail": doc.SignedByEmail,
			"signedByName":  doc.SignedByName,
			"signedAt":      doc.SignedAt,
			"status":        doc.Status,
		},
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (r statusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required,
			validation.In(models.StatusPending, models.StatusReviewed, models.StatusApproved, models.StatusRejected)),
	)
}

func (h *DocumentHTTP) SetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	id, ok := h.docID(c)
	if !ok {
		return nil
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	doc, err := h.Svc.SetStatus(ctx, user, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "the requested document does not exist")
		case errors.Is(err, service.ErrForbidden):
			return errorJSON(c, http.StatusForbidden, "Forbidden", "insufficient permissions")
		case errors.Is(err, service.ErrInvalidStatus):
			return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid status")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to update status")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "status updated successfully",
		"document": echo.Map{"id": doc.ID, "status": doc.Status, "isSigned": doc.IsSigned},
	})
}

func (h *DocumentHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	id, ok := h.docID(c)
	if !ok {
		return nil
	}

	if err := h.Svc.Delete(ctx, user, id); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "the requested document does not exist")
		case errors.Is(err, service.ErrForbidden):
			return errorJSON(c, http.StatusForbidden, "Forbidden", "you can only delete your own documents")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to delete document")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "document deleted successfully"})
}
