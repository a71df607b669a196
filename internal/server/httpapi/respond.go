package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/services"
)

// Fixed client-facing error texts. Details go to the log only.
const (
	msgForbidden      = "forbidden"
	msgUnauthorized   = "authentication required"
	msgNotFound       = "not found"
	msgUnreadable     = "unable to retrieve file"
	msgInternal       = "internal server error"
	msgBadRequest     = "bad request"
	msgConflict       = "already exists"
	msgBadCredentials = "invalid credentials"
	msgTooLarge       = "file too large"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type assetResponse struct {
	ID          string    `json:"id"`
	StoragePath string    `json:"storage_path"`
	URL         string    `json:"url"`
	ContentKind string    `json:"content_kind"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAssetResponse(a *models.MediaAsset) assetResponse {
	return assetResponse{
		ID:          a.ID,
		StoragePath: a.StoragePath,
		URL:         services.ProtectedURL(a.StoragePath),
		ContentKind: string(a.ContentKind),
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type userResponse struct {
	ID       string `json:"id"`
	UserName string `json:"username"`
	Email    string `json:"email,omitempty"`
}
