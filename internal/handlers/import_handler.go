package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"checkin-system/internal/services"
	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/pocketbase/pocketbase/core"
)

const maxImportSize = 10 << 20

type ImportHandler struct {
	users *services.UserService
}

func NewImportHandler(users *services.UserService) *ImportHandler {
	return &ImportHandler{users: users}
}

// CSV imports a multipart "file" upload.
func (h *ImportHandler) CSV(e *core.RequestEvent) error {
	e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, maxImportSize)

	file, header, err := e.Request.FormFile("file")
	if err != nil {
		return Fail(e, status.ErrMissingFile.WithMessage("CSV file is required"))
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		return Fail(e, status.ErrInvalidImport.WithMessage("only .csv files are accepted"))
	}

	result, err := h.users.ImportCSV(e.Request.Context(), file)
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, importSummary(result), result)
}

type importJSONRequest struct {
	Users []services.ImportRow `json:"users"`
}

func (h *ImportHandler) JSON(e *core.RequestEvent) error {
	var req importJSONRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}

	result, err := h.users.ImportJSON(e.Request.Context(), req.Users)
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, importSummary(result), result)
}

func importSummary(r *models.ImportResult) string {
	return fmt.Sprintf("Import completed: %d created, %d updated, %d skipped", r.Created, r.Updated, r.Skipped)
}
