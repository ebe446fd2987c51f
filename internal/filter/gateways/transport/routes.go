package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/services/session"
)

const (
	maxJSONBody     = 64 << 10
	maxDocumentBody = 16 << 20

	// HeaderSuppressed reports how many elements /v1/document suppressed.
	HeaderSuppressed = "X-RR-Block-Suppressed"
)

type filterRequest struct {
	URL string `json:"url"`
}

type commandRequest struct {
	Action string `json:"action"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var (
	errOriginNotAllowed = errors.New("origin not allowed")
	errMediaType        = errors.New("unsupported content type")
)

type router struct {
	handler session.Handler
	logger  log.Logger
	origins map[string]struct{}
}

// newRouter builds the route table. Requests carrying an Origin header are
// rejected unless the origin is listed in allowedOrigins; the native shim
// sends none. POST bodies must declare their media type, which keeps them out
// of the CORS simple-request set and so out of reach of ordinary web pages.
func newRouter(h session.Handler, logger log.Logger, allowedOrigins ...string) http.Handler {
	rt := &router{handler: h, logger: logger, origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		if o = normalizeOrigin(o); o != "" {
			rt.origins[o] = struct{}{}
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/filter", rt.requireMediaType("application/json", rt.filter))
	mux.HandleFunc("POST /v1/command", rt.requireMediaType("application/json", rt.command))
	mux.HandleFunc("GET /v1/badge", rt.badge)
	mux.HandleFunc("GET /v1/style", rt.style)
	mux.HandleFunc("POST /v1/document", rt.requireMediaType("text/html", rt.document))
	return rt.checkOrigin(mux)
}

func (rt *router) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := rt.origins[normalizeOrigin(origin)]; !ok {
				rt.writeError(w, http.StatusForbidden, fmt.Errorf("%w: %s", errOriginNotAllowed, origin))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *router) requireMediaType(want string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != want {
			rt.writeError(w, http.StatusUnsupportedMediaType, fmt.Errorf("%w: want %s", errMediaType, want))
			return
		}
		next(w, r)
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}

func (rt *router) filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.handler.Evaluate(req.URL))
}

func (rt *router) command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, http.StatusBadRequest, err)
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := rt.handler.Handle(domain.Command{Action: action})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		rt.writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *router) badge(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.handler.Badge())
}

func (rt *router) style(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, rt.handler.SuppressionStyle())
}

func (rt *router) document(w http.ResponseWriter, r *http.Request) {
	doc, err := html.Parse(http.MaxBytesReader(w, r.Body, maxDocumentBody))
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, err)
		return
	}
	n := rt.handler.FilterDocument(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		rt.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderSuppressed, strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *router) writeError(w http.ResponseWriter, status int, err error) {
	rt.logger.Debug(map[string]any{"status": status, "error": err}, "request_rejected")
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
