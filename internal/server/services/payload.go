package services

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/server/models"
)

// UploadPayload is the body of an upload, resolved once into bytes. The
// implementations are RawBytes and Base64Encoded.
type UploadPayload interface {
	resolve() ([]byte, error)
}

// RawBytes is a payload that arrived as binary (multipart file part).
type RawBytes []byte

func (p RawBytes) resolve() ([]byte, error) {
	return []byte(p), nil
}

// Base64Encoded is a payload that arrived as text: plain base64 or a data URL
// such as "data:image/png;base64,iVBOR...".
type Base64Encoded string

func (p Base64Encoded) resolve() ([]byte, error) {
	s := strings.TrimSpace(string(p))

	if strings.HasPrefix(s, "data:") {
		meta, data, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", common.ErrorValidation)
		}
		s = data
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: payload is not valid base64", common.ErrorValidation)
}

// UploadRequest is one media upload.
type UploadRequest struct {
	Kind    models.ContentKind
	Payload UploadPayload
}
