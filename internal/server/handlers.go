package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/gateway"
	"github.com/hyperifyio/coursescope/internal/validate"
)

const maxRequestBytes = 64 << 10

const (
	msgScraped        = "Course data scraped successfully"
	msgRunning        = "Backend is running!"
	msgCourseRequired = "Course URL is required"
	msgURLRequired    = "URL is required"
	msgInvalidBody    = "Invalid request body"
	msgScrapeFailed   = "Failed to scrape course data"
	msgProxyFailed    = "Failed to fetch course page"
)

type scrapeRequest struct {
	CourseURL string `json:"courseUrl"`
}

type scrapeResponse struct {
	Message string               `json:"message"`
	Data    extract.CourseRecord `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return
	}
	var req scrapeRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			logger.Debug().Err(err).Msg("malformed scrape request")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
			return
		}
	}
	logger.Info().Str("courseUrl", req.CourseURL).Msg("scrape requested")

	rec, err := s.svc.Scrape(r.Context(), req.CourseURL)
	if err != nil {
		if kind := gateway.KindOf(err); kind.IsInputError() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: s.inputMessage(err, msgCourseRequired)})
			return
		}
		resp := errorResponse{Error: msgScrapeFailed}
		if !s.hideDetails {
			resp.Details = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, scrapeResponse{Message: msgScraped, Data: rec})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgURLRequired})
		return
	}

	rel, err := s.svc.Relay(r.Context(), target)
	if err != nil {
		if gateway.KindOf(err).IsInputError() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: s.inputMessage(err, msgURLRequired)})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgProxyFailed})
		return
	}

	copyRelayHeaders(w.Header(), rel.Header)
	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(rel.Body)))
	w.WriteHeader(rel.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = w.Write(rel.Body)
	}
}

// copyRelayHeaders copies upstream headers into dst without touching the
// CORS headers this server already set. Vary values are merged.
func copyRelayHeaders(dst, upstream http.Header) {
	for k, vv := range upstream {
		k = http.CanonicalHeaderKey(k)
		switch {
		case strings.HasPrefix(k, "Access-Control-"):
			continue
		case k == "Vary":
			for _, v := range vv {
				dst.Add(k, v)
			}
		default:
			dst[k] = append([]string(nil), vv...)
		}
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: msgRunning})
}

// inputMessage renders a validation failure for display.
func (s *Server) inputMessage(err error, missing string) string {
	var dd *validate.DisallowedDomainError
	switch {
	case gateway.KindOf(err) == gateway.KindMissingInput:
		return missing
	case errors.As(err, &dd):
		return dd.Message()
	}
	return fmt.Sprintf("Please provide a valid %s URL", s.siteName)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
