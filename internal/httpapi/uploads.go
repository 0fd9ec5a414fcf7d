package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"canvaslab/internal/canvas"
	"canvaslab/internal/room"
)

// imageTypeByExt maps the accepted extensions to the MIME type the
// file content must actually sniff as. Everything else, SVG included,
// is refused.
var imageTypeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

var allowedDeclaredTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// handleUploadImage accepts a multipart image for an existing room.
// The file passes three gates: extension, declared Content-Type, and a
// magic-byte sniff that must agree with the extension.
func (a *API) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	// One extra MiB covers the multipart framing around the image.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(a.maxImageBytes + 1<<20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "image exceeds the size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	roomName := r.FormValue("roomName")
	if !room.ValidName(roomName) {
		respondError(w, http.StatusBadRequest, "invalid room name")
		return
	}
	if !a.reg.Exists(roomName) {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	originalName := filepath.Base(header.Filename)
	if originalName == "" || originalName == "." || len(originalName) > canvas.MaxFilenameSize {
		respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	wantType, ok := imageTypeByExt[ext]
	if !ok {
		respondError(w, http.StatusUnsupportedMediaType, "unsupported image type")
		return
	}
	if declared := header.Header.Get("Content-Type"); declared != "" {
		mediaType := strings.TrimSpace(strings.Split(declared, ";")[0])
		if !allowedDeclaredTypes[strings.ToLower(mediaType)] {
			respondError(w, http.StatusUnsupportedMediaType, "unsupported image type")
			return
		}
	}
	if header.Size > a.maxImageBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "image exceeds the size limit")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, a.maxImageBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read image")
		return
	}
	if int64(len(data)) > a.maxImageBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "image exceeds the size limit")
		return
	}

	if sniffed := mimetype.Detect(data); !sniffed.Is(wantType) {
		a.log.Warn("upload content does not match extension",
			zap.String("room", roomName),
			zap.String("ext", ext),
			zap.String("sniffed", sniffed.String()))
		respondError(w, http.StatusUnsupportedMediaType, "image content does not match its type")
		return
	}

	filename, err := a.st.SaveUpload(roomName, ext, bytes.NewReader(data))
	if err != nil {
		a.log.Error("upload save failed", zap.String("room", roomName), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not store image")
		return
	}

	a.log.Info("image uploaded",
		zap.String("room", roomName),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)))
	respondJSON(w, http.StatusOK, map[string]string{
		"filename":     filename,
		"originalName": canvas.SanitizeName(originalName, canvas.MaxFilenameSize),
	})
}

// handleServeUpload streams a previously stored image back.
func (a *API) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomName, filename := vars["room"], vars["filename"]
	if !room.ValidName(roomName) {
		respondError(w, http.StatusBadRequest, "invalid room name")
		return
	}
	path, err := a.st.UploadPath(roomName, filename)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	http.ServeFile(w, r, path)
}
