package httptransport

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/degree"
	"github.com/pilacorp/go-degree-credential/did/identity"
	"github.com/pilacorp/go-degree-credential/ledger"
	"github.com/pilacorp/go-degree-credential/wallet"
)

const (
	codeBadRequest          = "bad_request"
	codeNotFound            = "not_found"
	codeConflict            = "conflict"
	codeForbidden           = "forbidden"
	codeNotImplemented      = "not_implemented"
	codeIdentityUnavailable = "identity_unavailable"
	codeInternal            = "internal_error"
)

// errorStatus maps a domain error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, vc.ErrEmptySelection),
		errors.Is(err, vc.ErrUnknownDegreeField),
		errors.Is(err, vc.ErrInvalidIssueRequest),
		errors.Is(err, vc.ErrMalformedCredential),
		errors.Is(err, vc.ErrAlreadySigned),
		errors.Is(err, degree.ErrInvalidSignature):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, identity.ErrUnknownScope):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, wallet.ErrDuplicateCredential):
		return http.StatusConflict, codeConflict
	case errors.Is(err, degree.ErrNotIssuer):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, ledger.ErrRevocationUnsupported):
		return http.StatusNotImplemented, codeNotImplemented
	case errors.Is(err, identity.ErrIdentityLoad):
		return http.StatusInternalServerError, codeIdentityUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	resp := errorResponse{Error: code}
	switch code {
	case codeInternal:
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case codeIdentityUnavailable:
		h.logger.Error("identity unavailable",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		resp.ErrorDescription = "signing identity could not be loaded, cannot proceed"
	default:
		resp.ErrorDescription = err.Error()
	}

	writeJSON(w, status, resp)
}
