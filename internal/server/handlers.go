package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/divya-pal4/study-assitant-rag/internal/helper"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
	"github.com/divya-pal4/study-assitant-rag/internal/parser"
	"github.com/divya-pal4/study-assitant-rag/internal/vectorstore"
)

const previewChars = 300

type uploadResponse struct {
	Message     string `json:"message"`
	PdfID       string `json:"pdf_id"`
	TotalChunks int    `json:"totalChunks"`
	Preview     string `json:"preview"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": models.HealthStatus})
}

// POST /ask_llm {"question": "...", "top_k": 3, "pdf_id": "..."}
func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json: %v", models.ErrInvalidRequest, err))
		return
	}

	answer, err := s.rag.Ask(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, answer)
}

// POST /upload multipart: pdf (or file), optional pdf_id
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, r, fmt.Errorf("%w: failed to parse form: %v", models.ErrInvalidRequest, err))
		return
	}

	file, header, err := r.FormFile("pdf")
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing pdf field", models.ErrInvalidRequest))
		return
	}
	defer file.Close()

	pdfID := strings.TrimSpace(r.FormValue("pdf_id"))
	if pdfID == "" {
		if pdfID, err = helper.GenerateUUID(); err != nil {
			writeError(w, r, err)
			return
		}
	}
	dir, err := vectorstore.DatasetDir(s.uploadDir, pdfID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := helper.CreateFolder(dir); err != nil {
		writeError(w, r, err)
		return
	}

	docPath, err := saveUpload(file, header, dir)
	if err != nil {
		writeError(w, r, err)
		return
	}

	chunks, err := parser.ExtractChunks(docPath, s.wordsPerChunk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chunksFile := filepath.Join(dir, models.ChunkFileName)
	if err := parser.WriteChunkFile(chunksFile, chunks); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.indexer.Run(r.Context(), chunksFile, pdfID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	preview := []rune(chunks[0])
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}
	writeJSON(w, r, http.StatusOK, uploadResponse{
		Message:     "PDF uploaded, chunked & indexed successfully",
		PdfID:       pdfID,
		TotalChunks: res.Chunks,
		Preview:     string(preview),
	})
}

// saveUpload copies the uploaded file into dir, keeping only its base name.
// Files without an extension are assumed to be PDFs.
func saveUpload(file multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	if filepath.Ext(name) == "" {
		name += ".pdf"
	}
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return path, out.Close()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrInput),
		errors.Is(err, models.ErrNoChunks):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Bad request")
	}
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Error encoding response")
	}
}
