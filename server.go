package slidereview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxFormMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const maxFormMemory = 32 << 20

var errUploadTooLarge = errors.New("upload exceeds the maximum allowed size")

// Server exposes a Session over HTTP.
type Server struct {
	session        *Session
	maxUploadBytes int64
	allowedOrigins []string
	tempDir        string
}

// NewServer creates a server for session. A nil cfg uses DefaultConfig.
func NewServer(session *Session, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		session:        session,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedOrigins: slices.Clone(cfg.AllowedOrigins),
		tempDir:        os.TempDir(),
	}
}

// SlideURL returns the URL path at which slide n is served.
func SlideURL(n int) string {
	return "/slides/" + SlideFileName(n)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert-ppt", s.handleConvert)
	mux.HandleFunc("POST /slides/{n}/comment", s.handleAddComment)
	mux.HandleFunc("GET /slides/{n}/comments", s.handleComments)
	mux.HandleFunc("GET /slides/{file}", s.handleSlideImage)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	return s.withRequestLog(s.withRecover(s.withCORS(mux)))
}

// --- handlers ---

type convertResponse struct {
	SlideCount int      `json:"slideCount"`
	ImageURLs  []string `json:"imageUrls"`
}

type commentResponse struct {
	Message         string `json:"message"`
	UpdatedImageURL string `json:"updatedImageUrl"`
}

type commentsResponse struct {
	Comments []string `json:"comments"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+maxFormMemory)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size.")
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, "Missing upload field \"file\".")
		return
	}
	defer file.Close()

	if err := checkUploadName(header.Filename); err != nil {
		requestLogger(r).Warn("upload rejected", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, "Only .pptx files are supported.")
		return
	}

	doc, err := s.readUpload(file)
	if errors.Is(err, errUploadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size.")
		return
	}
	if err != nil {
		s.internalError(w, r, "convert_ppt", err)
		return
	}
	res, err := s.session.Convert(doc)
	if err != nil {
		s.internalError(w, r, "convert_ppt", err)
		return
	}

	urls := make([]string, res.SlideCount)
	for i := range urls {
		urls[i] = SlideURL(i + 1)
	}
	requestLogger(r).Info("presentation uploaded", "file", header.Filename, "slides", res.SlideCount, "warnings", len(res.Warnings))
	writeJSON(w, http.StatusOK, convertResponse{SlideCount: res.SlideCount, ImageURLs: urls})
}

// readUpload spools the upload to a temporary file, reads the document
// from it and removes the file.
func (s *Server) readUpload(src io.Reader) (*Document, error) {
	path := filepath.Join(s.tempDir, "slidereview-"+uuid.NewString()+".pptx")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(path)
	defer f.Close()

	size, err := io.Copy(f, io.LimitReader(src, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errUploadTooLarge, s.maxUploadBytes)
	}
	return ReadFrom(f, size)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	n, ok := slideNumber(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeDetail(w, http.StatusBadRequest, "Invalid form body.")
		return
	}
	values, ok := r.PostForm["comment"]
	if !ok || len(values) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "Missing form field \"comment\".")
		return
	}

	if _, err := s.session.AddComment(n, values[0]); err != nil {
		if errors.Is(err, ErrSlideNotFound) {
			writeDetail(w, http.StatusNotFound, "Slide not found")
			return
		}
		s.internalError(w, r, "add_comment", err)
		return
	}
	writeJSON(w, http.StatusOK, commentResponse{Message: "Comment added", UpdatedImageURL: SlideURL(n)})
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	n, ok := slideNumber(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, commentsResponse{Comments: s.session.Comments(n)})
}

func (s *Server) handleSlideImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	n, ok := parseSlideFileName(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, err := s.session.ServedImage(n)
	if err != nil {
		if errors.Is(err, ErrSlideNotFound) {
			http.NotFound(w, r)
			return
		}
		s.internalError(w, r, "slide_image", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "slideCount": s.session.SlideCount()})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// --- helpers ---

// checkUploadName returns ErrUnsupportedFile unless name carries the .pptx
// extension, in any case.
func checkUploadName(name string) error {
	if !strings.HasSuffix(strings.ToLower(name), ".pptx") {
		return ErrUnsupportedFile
	}
	return nil
}

// slideNumber parses the {n} path value. On failure it writes the response
// and returns false.
func slideNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Slide number must be an integer.")
		return 0, false
	}
	return n, true
}

// parseSlideFileName accepts exactly the names produced by SlideFileName.
func parseSlideFileName(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "slide_")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".png")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || SlideFileName(n) != name {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger().Warn("write response", "error", err)
	}
}

// writeError writes a validation failure as {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDetail writes a failure as {"detail": msg}.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// internalError logs err and answers 500 with the message and the stack
// of the failing request.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	requestLogger(r).Error("request failed", "op", op, "error", err)
	writeDetail(w, http.StatusInternalServerError,
		fmt.Sprintf("Internal Server Error: %v\n\n%s", err, debug.Stack()))
}

// --- middleware ---

type ctxKey int

const loggerKey ctxKey = iota

// requestLogger returns the logger carrying the request ID of r.
func requestLogger(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return Logger()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += int64(n)
	return n, err
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// withRequestLog tags every request with an ID, exposed as X-Request-ID,
// and logs one line per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		l := Logger().With("request_id", id)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey, l))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		l.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start))
	})
}

// withRecover turns a handler panic into a 500 response.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.internalError(w, r, "panic", fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.allowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// withCORS allows credentialed cross-origin requests from the configured
// origins with any method and header.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Origin")
		allowed := s.originAllowed(origin)
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", r.Header.Get("Access-Control-Request-Method"))
			if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
				w.Header().Set("Access-Control-Allow-Headers", h)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
