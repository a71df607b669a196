package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/gorilla/mux"
)

type uploadJSON struct {
	Data        string `json:"data"`
	ContentKind string `json:"content_kind"`
}

// multipartOverhead leaves room for boundaries and form fields on top of the
// file itself; base64 bodies get a third more.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	asset, err := s.media.Upload(r.Context(), ownerID, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toAssetResponse(asset))
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(r.Context(), "upload failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// readUpload resolves the request body into an UploadRequest. It writes the
// error response itself when it returns false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (services.UploadRequest, bool) {
	limit := s.maxUploadBytes + s.maxUploadBytes/3 + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.writeBodyError(w, err)
			return services.UploadRequest{}, false
		}
		defer r.MultipartForm.RemoveAll()

		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file")
			return services.UploadRequest{}, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			s.writeBodyError(w, err)
			return services.UploadRequest{}, false
		}
		return services.UploadRequest{Kind: kindOrDefault(r.FormValue("content_kind")), Payload: services.RawBytes(data)}, true

	case "application/json":
		var body uploadJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeBodyError(w, err)
			return services.UploadRequest{}, false
		}
		return services.UploadRequest{Kind: kindOrDefault(body.ContentKind), Payload: services.Base64Encoded(body.Data)}, true

	default:
		writeError(w, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
		return services.UploadRequest{}, false
	}
}

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, msgBadRequest)
}

func kindOrDefault(k string) models.ContentKind {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return models.ContentKindImage
	}
	return models.ContentKind(k)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())

	assets, err := s.media.List(r.Context(), ownerID)
	if err != nil {
		s.logger.Error(r.Context(), "list failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	err := s.media.Delete(r.Context(), ownerID, id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		s.logger.Error(r.Context(), "delete failed", "owner_id", ownerID, "asset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
