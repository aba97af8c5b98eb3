package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"storefront/internal/errs"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

var (
	errBodyTooLarge  = errors.New("request body too large")
	errMalformedBody = errs.NewValidation("", "invalid request body")
)

// formValues holds the submitted fields. A key is present when the client
// sent it, even with an empty value.
type formValues map[string]string

func (f formValues) lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func (f formValues) get(key string) string {
	return f[key]
}

// readForm reads the fields of a JSON, multipart or urlencoded body. The
// multipart form is returned so that callers can read uploaded files.
func readForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (formValues, *multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		values, err := readJSONForm(r)
		return values, nil, err
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, nil, formError(err)
		}
		values := formValues{}
		for key, vs := range r.MultipartForm.Value {
			if len(vs) > 0 {
				values[key] = vs[0]
			}
		}
		return values, r.MultipartForm, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, nil, formError(err)
		}
		values := formValues{}
		for key, vs := range r.PostForm {
			if len(vs) > 0 {
				values[key] = vs[0]
			}
		}
		return values, nil, nil
	}
}

func readJSONForm(r *http.Request) (formValues, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, formError(err)
	}

	values := formValues{}
	for key, msg := range raw {
		msg = bytes.TrimSpace(msg)
		switch {
		case bytes.Equal(msg, []byte("null")):
			values[key] = ""
		case len(msg) > 0 && msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return nil, errMalformedBody
			}
			values[key] = s
		case len(msg) > 0 && msg[0] == '[':
			var list []string
			if err := json.Unmarshal(msg, &list); err != nil {
				return nil, errMalformedBody
			}
			values[key] = strings.Join(list, ",")
		default:
			values[key] = string(msg)
		}
	}
	return values, nil
}

func formError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errBodyTooLarge
	}
	return errMalformedBody
}

// parseOptionalID parses an id field. An empty value yields nil.
func parseOptionalID(field, value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, errs.NewValidation(field, "invalid "+field+" id")
	}
	return &id, nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errs.NewValidation("id", "invalid "+resource+" id")
	}
	return id, nil
}
