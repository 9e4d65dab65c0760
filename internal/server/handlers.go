package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type wordRequest struct {
	Word string `json:"word"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	word, ok := s.readWord(w, r)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			s.log.Error("Image lookup error", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
			s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Image lookup failed", Details: err.Error()})
		}
	}()

	// Provider calls are bounded by their own timeouts, not by the client
	// staying connected.
	result := s.images.GetWordImages(context.WithoutCancel(r.Context()), word)
	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	word, ok := s.readWord(w, r)
	if !ok {
		return
	}
	result, err := s.dict.Lookup(r.Context(), word)
	if err != nil {
		s.log.Error("Dictionary lookup error",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("word", word),
			zap.Error(err))
		s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Dictionary lookup failed", Details: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "Not Found"})
}

// readWord decodes {"word": "..."} and answers 400 itself when the word is missing.
func (s *Server) readWord(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req wordRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && err != io.EOF {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body", Details: err.Error()})
		return "", false
	}
	word := strings.TrimSpace(req.Word)
	if word == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Missing word in body"})
		return "", false
	}
	return word, true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body := brotli.HTTPCompressor(w, r)
	defer body.Close()
	w.WriteHeader(status)

	enc := json.NewEncoder(body)
	indent := ""
	if s.opts.PrettyJSON {
		indent = "  "
	}
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		s.log.Warn("Failed to write response", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	}
}
