package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"doulitsa/internal/apperr"
	"doulitsa/internal/services"
	"doulitsa/utils"
)

const maxMultipartMemory = 32 << 20 // 32MB

// collectImageFiles собирает все файлы по указанным ключам формы.
func collectImageFiles(form *multipart.Form, keys ...string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}

	var result []*multipart.FileHeader
	for _, key := range keys {
		if headers, ok := form.File[key]; ok {
			result = append(result, headers...)
		}
	}
	return result
}

// gatherStringsFromForm reads string values under keys. A value may be a
// JSON array, a JSON string or a bare string.
func gatherStringsFromForm(form *multipart.Form, keys ...string) ([]string, bool, error) {
	if form == nil {
		return nil, false, nil
	}

	var rawValues []string
	for _, key := range keys {
		if values, ok := form.Value[key]; ok {
			rawValues = append(rawValues, values...)
		}
	}
	if len(rawValues) == 0 {
		return nil, false, nil
	}

	var result []string
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "null" || raw == "undefined" {
			continue
		}
		switch {
		case strings.HasPrefix(raw, "["):
			var arr []string
			if err := json.Unmarshal([]byte(raw), &arr); err != nil {
				return nil, false, fmt.Errorf("failed to decode string array: %w", err)
			}
			result = append(result, arr...)
		case strings.HasPrefix(raw, `"`):
			var s string
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return nil, false, fmt.Errorf("failed to decode string: %w", err)
			}
			result = append(result, s)
		default:
			result = append(result, raw)
		}
	}
	return result, true, nil
}

// readUploads loads every file into memory. Files larger than the upload
// limit are rejected before reading the rest.
func readUploads(headers []*multipart.FileHeader) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > utils.MaxImageSize {
			return nil, apperr.Validation(map[string]string{"images": services.MsgInvalidImage})
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrBadRequest, "")
		}
		data, err := io.ReadAll(io.LimitReader(f, utils.MaxImageSize+1))
		f.Close()
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrBadRequest, "")
		}
		uploads = append(uploads, services.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

// decodeForm accepts either a JSON body or a multipart form whose "data"
// field holds the JSON document and whose image files sit under fileKeys.
func decodeForm(w http.ResponseWriter, r *http.Request, dst any, fileKeys ...string) ([]services.Upload, bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, decodeJSON(w, r, dst)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.ErrBadRequest, "Μη έγκυρη φόρμα"))
		return nil, false
	}
	if raw := r.FormValue("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			writeError(w, r, apperr.Wrap(err, apperr.ErrBadRequest, apperr.MsgBadRequest))
			return nil, false
		}
	}

	uploads, err := readUploads(collectImageFiles(r.MultipartForm, fileKeys...))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return uploads, true
}
