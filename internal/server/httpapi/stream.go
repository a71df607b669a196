package httpapi

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/gorilla/mux"
)

// handleStream serves GET /media/protected/{path}. By the time it runs the
// caller is authenticated. Missing and foreign assets get the same 404, a
// decryption failure gets a 500 and no bytes of the file.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	storagePath := mux.Vars(r)["path"]

	asset, plaintext, err := s.media.Open(r.Context(), userID, storagePath)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAssetUnreadable):
			writeError(w, http.StatusInternalServerError, msgUnreadable)
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		default:
			s.logger.Error(r.Context(), "stream lookup failed", "storage_path", storagePath, "error", err)
			writeError(w, http.StatusInternalServerError, msgUnreadable)
		}
		return
	}

	h := w.Header()
	h.Set("Content-Type", asset.ContentType)
	h.Set("Cache-Control", "private, no-store")
	h.Set("Content-Disposition", "inline")

	http.ServeContent(w, r, "", asset.CreatedAt, bytes.NewReader(plaintext))
}
