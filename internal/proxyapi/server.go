// Package proxyapi is the authenticated submission proxy: it validates
// inbound multipart submissions against a vessel-bound bearer token, relays
// them to the upstream archive under a server-side credential, and mirrors
// them to object storage.
package proxyapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openwaters/crowd-depth/internal/identity"
	"github.com/openwaters/crowd-depth/internal/observability"
)

// maxMetadataBytes bounds the buffered metadataInput part. The file part is
// never buffered.
const maxMetadataBytes = 1 << 20

// ObjectStore mirrors submission artifacts. *objectstore.Store implements it.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

// Config holds the proxy's upstream and credential settings.
type Config struct {
	// UpstreamURL is the archive submission endpoint.
	UpstreamURL string
	// UpstreamToken is the server-side archive credential, substituted for
	// the client's bearer token on the upstream request.
	UpstreamToken string
	// UpstreamTimeout bounds the upstream POST including body streaming.
	UpstreamTimeout time.Duration
}

// Server routes the proxy HTTP surface.
type Server struct {
	router   chi.Router
	identity *identity.Service
	cfg      Config
	client   *http.Client
	store    ObjectStore
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewServer creates the proxy server. store may be nil only in tests that
// do not reach the fan-out.
func NewServer(ids *identity.Service, store ObjectStore, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Server {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 5 * time.Minute
	}

	s := &Server{
		router:   chi.NewRouter(),
		identity: ids,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.UpstreamTimeout},
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}

	s.router.Post("/submissions", s.handleSubmission)
	s.router.Post("/identity", s.handleIdentity)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) reject(w http.ResponseWriter, status int, message, outcome string) {
	s.metrics.ProxySubmissions.WithLabelValues(outcome).Inc()
	writeJSON(w, status, statusBody{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort error response
}

// handleSubmission authenticates and fans out one submission. Validation
// order matters: token before body, identity match before any byte reaches
// a destination.
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		s.reject(w, http.StatusUnauthorized, "No token provided", "unauthorized")
		return
	}

	boundID, err := s.identity.Verify(token)
	if err != nil {
		s.reject(w, http.StatusForbidden, "Invalid token", "forbidden")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		s.reject(w, http.StatusBadRequest, "Missing Content-Type", "bad_request")
		return
	}

	form, err := r.MultipartReader()
	if err != nil {
		s.reject(w, http.StatusBadRequest, "Malformed multipart body", "bad_request")
		return
	}

	sub, err := readSubmission(form)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "Malformed multipart body", "bad_request")
		return
	}

	if sub.uniqueID() != boundID {
		s.reject(w, http.StatusForbidden, "Invalid uniqueID", "forbidden")
		return
	}

	result := s.fanOut(r.Context(), boundID, sub)
	s.metrics.ProxyDuration.Observe(time.Since(start).Seconds())

	switch {
	case result.archiveErr != nil:
		s.logger.Error("upstream submission failed", "unique_id", boundID, "error", result.archiveErr)
		s.reject(w, http.StatusBadGateway, "Upstream submission failed", "upstream_error")
	case result.archiveStatus < 200 || result.archiveStatus >= 300:
		// The archive rejected the submission; relay its verdict as-is.
		s.metrics.ProxySubmissions.WithLabelValues("upstream_error").Inc()
		s.logger.Warn("upstream rejected submission", "unique_id", boundID, "upstream_status", result.archiveStatus)
		relayResponse(w, result)
	case result.storageErr != nil:
		// Both destinations must succeed. The archive already accepted the
		// data; it de-duplicates a client retry.
		s.logger.Error("storage mirror failed", "unique_id", boundID, "error", result.storageErr)
		s.reject(w, http.StatusBadGateway, "Storage write failed", "storage_error")
	default:
		s.metrics.ProxySubmissions.WithLabelValues("accepted").Inc()
		s.logger.Info("submission proxied", "unique_id", boundID, "upstream_status", result.archiveStatus)
		relayResponse(w, result)
	}
}

// relayResponse passes the archive's status and body through verbatim.
func relayResponse(w http.ResponseWriter, result fanOutResult) {
	if result.archiveContentType != "" {
		w.Header().Set("Content-Type", result.archiveContentType)
	}
	w.WriteHeader(result.archiveStatus)
	w.Write(result.archiveBody) //nolint:errcheck // relay is best-effort once committed
}

// handleIdentity mints a fresh vessel credential. The endpoint is
// unauthenticated: it only ever issues a token for the identity presented
// (or a brand-new one), never reveals another vessel's token.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
	}
	if r.Body != nil {
		// Body is optional; ignore decode errors and mint a fresh identity.
		json.NewDecoder(io.LimitReader(r.Body, maxMetadataBytes)).Decode(&req) //nolint:errcheck
	}

	id := req.UUID
	if id == "" {
		id = uuid.NewString()
	}

	token := s.identity.Mint("SIGNALK-" + id)
	writeJSON(w, http.StatusOK, map[string]string{"uuid": id, "token": token})
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
