package httpx

import (
	"fmt"
	"io"
	"net/http"
)

// File reads the "file" part of a multipart request, refusing bodies over
// maxBytes. On failure the response has been written and ok is false.
func File(w http.ResponseWriter, r *http.Request, maxBytes int64) (name string, body []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		BadRequest(w, "failed to parse form: "+err.Error())
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequest(w, "file field is required")
		return "", nil, false
	}
	defer file.Close()

	body, err = io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		BadRequest(w, "failed to read file: "+err.Error())
		return "", nil, false
	}

	if int64(len(body)) > maxBytes {
		JSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("file exceeds %d bytes", maxBytes)})
		return "", nil, false
	}

	return header.Filename, body, true
}
