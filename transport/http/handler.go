// Package httptransport exposes the degree credential flows over HTTP.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/degree"
	"github.com/pilacorp/go-degree-credential/did/identity"
	"github.com/pilacorp/go-degree-credential/storage"
	"github.com/pilacorp/go-degree-credential/wallet"
)

const maxBodyBytes = 1 << 20

// Service is the credential engine behind the handlers.
type Service interface {
	Issue(ctx context.Context, req degree.IssueRequest) (*degree.IssueResult, error)
	Derive(ctx context.Context, source *vc.Credential, fields []vc.DegreeField) (*vc.Credential, error)
	Verify(ctx context.Context, raw string) degree.VerificationResult
	ComputeHash(c *vc.Credential) (string, error)
	Revoke(ctx context.Context, c *vc.Credential) error
}

// Wallet is the holder credential collection.
type Wallet interface {
	Import(ctx context.Context, raw string) (wallet.ImportResult, error)
	Add(ctx context.Context, c *vc.Credential) error
	List() []*vc.Credential
	Get(id string) (*vc.Credential, error)
	Export(id string) (string, error)
	ExportCompact(id string) (string, error)
}

// Handler wires HTTP endpoints to the credential service, identities and wallet.
type Handler struct {
	service    Service
	identities degree.IdentityProvider
	wallet     Wallet
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

// New constructs a handler. A nil gatherer serves the default registry.
func New(service Service, identities degree.IdentityProvider, w Wallet, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:    service,
		identities: identities,
		wallet:     w,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Router returns a chi router with every endpoint mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Register(r)
	return r
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/identities/{scope}", h.HandleIdentity)
		r.Get("/identities/{scope}/document", h.HandleIdentityDocument)

		r.Post("/credentials/issue", h.HandleIssue)
		r.Post("/credentials/verify", h.HandleVerify)
		r.Post("/credentials/hash", h.HandleHash)
		r.Post("/credentials/revoke", h.HandleRevoke)

		r.Get("/wallet/credentials", h.HandleWalletList)
		r.Post("/wallet/credentials", h.HandleWalletImport)
		r.Get("/wallet/credentials/{id}", h.HandleWalletGet)
		r.Get("/wallet/credentials/{id}/export", h.HandleWalletExport)
		r.Post("/wallet/credentials/{id}/derive", h.HandleWalletDerive)
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleIdentity handles GET /v1/identities/{scope}.
func (h *Handler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, IdentityResponse{DID: id.DID(), Address: id.Address()})
}

// HandleIdentityDocument handles GET /v1/identities/{scope}/document.
func (h *Handler) HandleIdentityDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, id.Document())
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	scope, err := identity.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	id, err := h.identities.Get(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return id, true
}

// HandleIssue handles POST /v1/credentials/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req IssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	issueReq := degree.IssueRequest{
		SubjectDID: strings.TrimSpace(req.SubjectDID),
		Degree:     req.Degree,
		Anchor:     req.Anchor,
	}
	if req.Transcript != nil {
		issueReq.Transcript = &storage.Content{
			Name:        req.Transcript.Name,
			ContentType: req.Transcript.ContentType,
			Data:        req.Transcript.Data,
		}
	}

	result, err := h.service.Issue(r.Context(), issueReq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("credential issued",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("credential_id", result.Credential.ID),
		zap.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusCreated, FromIssueResult(result))
}

// HandleVerify handles POST /v1/credentials/verify. The body is the raw
// credential text as pasted or scanned.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := h.service.Verify(r.Context(), raw)
	h.logger.Debug("credential verified",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("status", string(result.Status)),
	)
	writeJSON(w, http.StatusOK, result)
}

// HandleHash handles POST /v1/credentials/hash.
func (h *Handler) HandleHash(w http.ResponseWriter, r *http.Request) {
	var c vc.Credential
	if err := decodeJSON(w, r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}

	hash, err := h.service.ComputeHash(&c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

// HandleRevoke handles POST /v1/credentials/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := vc.ParseCredential(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.Revoke(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWalletList handles GET /v1/wallet/credentials.
func (h *Handler) HandleWalletList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, WalletListResponse{Credentials: h.wallet.List()})
}

// HandleWalletImport handles POST /v1/wallet/credentials.
func (h *Handler) HandleWalletImport(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.wallet.Import(r.Context(), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Status == wallet.ImportDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// HandleWalletGet handles GET /v1/wallet/credentials/{id}.
func (h *Handler) HandleWalletGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.wallet.Get(credentialID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleWalletExport handles GET /v1/wallet/credentials/{id}/export.
func (h *Handler) HandleWalletExport(w http.ResponseWriter, r *http.Request) {
	id := credentialID(r)

	encoded, err := h.wallet.Export(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	compact, err := h.wallet.ExportCompact(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Encoded: encoded, Compact: compact})
}

// HandleWalletDerive handles POST /v1/wallet/credentials/{id}/derive. The
// derived credential is added to the wallet.
func (h *Handler) HandleWalletDerive(w http.ResponseWriter, r *http.Request) {
	var req DeriveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	fields, err := req.ParsedFields()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	source, err := h.wallet.Get(credentialID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	derived, err := h.service.Derive(r.Context(), source, fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.wallet.Add(r.Context(), derived); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("derived credential created",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("source_id", source.ID),
		zap.String("credential_id", derived.ID),
	)
	writeJSON(w, http.StatusCreated, derived)
}

func credentialID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return string(body), nil
}
