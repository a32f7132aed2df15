package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-degree-credential/credential/vc"
	"github.com/pilacorp/go-degree-credential/degree"
	"github.com/pilacorp/go-degree-credential/did"
	"github.com/pilacorp/go-degree-credential/did/identity"
	"github.com/pilacorp/go-degree-credential/kvstore"
	"github.com/pilacorp/go-degree-credential/ledger"
	"github.com/pilacorp/go-degree-credential/storage"
	"github.com/pilacorp/go-degree-credential/wallet"
)

const studentDID = "did:ethr:0x1111111111111111111111111111111111111111"

type testEnv struct {
	router     chi.Router
	identities *identity.Provider
	wallet     *wallet.Wallet
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := kvstore.NewMemory()
	identities := identity.NewProvider(store)
	reg := prometheus.NewRegistry()
	svc := degree.NewService(
		identities,
		ledger.NewSimulated(ledger.WithDelay(0)),
		storage.NewMockIPFS(storage.WithMockDelay(0)),
		degree.WithMetrics(degree.NewMetrics(reg)),
	)
	w, err := wallet.Open(ctx, store)
	require.NoError(t, err)

	h := New(svc, identities, w, reg, nil)
	return &testEnv{router: h.Router(), identities: identities, wallet: w}
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) issue(t *testing.T) IssueResponse {
	t.Helper()
	body := `{"subjectDid":"` + studentDID + `","degree":{"type":"Bachelor of Science","name":"Computer Science","major":"Software Engineering"}}`
	rec := e.do(t, http.MethodPost, "/v1/credentials/issue", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	env.issue(t)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "degree_credentials_issued_total 1")
}

func TestHandleIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/identities/institution", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IdentityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	inst, err := env.identities.Get(context.Background(), identity.ScopeInstitution)
	require.NoError(t, err)
	assert.Equal(t, inst.DID(), resp.DID)
	assert.Equal(t, inst.Address(), resp.Address)

	rec = env.do(t, http.MethodGet, "/v1/identities/holder/document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc did.DIDDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	holder, err := env.identities.Get(context.Background(), identity.ScopeHolder)
	require.NoError(t, err)
	assert.Equal(t, holder.DID(), doc.Id)

	rec = env.do(t, http.MethodGet, "/v1/identities/registrar", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decodeError(t, rec).Error)
}

func TestHandleIssue(t *testing.T) {
	env := newTestEnv(t)

	t.Run("with transcript and anchor", func(t *testing.T) {
		body, err := json.Marshal(IssueRequest{
			SubjectDID: studentDID,
			Degree:     vc.DegreeClaim{Type: "Bachelor of Science", Name: "Computer Science"},
			Transcript: &TranscriptFile{Name: "transcript.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
			Anchor:     true,
		})
		require.NoError(t, err)

		rec := env.do(t, http.MethodPost, "/v1/credentials/issue", string(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp IssueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Credential.Evidence, 1)
		assert.Equal(t, "transcript.pdf", resp.Credential.Evidence[0].Name)
		require.NotNil(t, resp.Anchor)
		assert.True(t, resp.Anchor.Success)
		assert.Empty(t, resp.AnchorError)
		assert.NotEmpty(t, resp.Encoded)
		assert.NotEmpty(t, resp.Hash)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"subjectDid":`},
		{name: "missing subject", body: `{"degree":{"type":"BSc","name":"CS"}}`},
		{name: "missing degree type", body: `{"subjectDid":"` + studentDID + `","degree":{"name":"CS"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/credentials/issue", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, codeBadRequest, decodeError(t, rec).Error)
		})
	}
}

type brokenIdentities struct{}

func (brokenIdentities) Get(context.Context, identity.Scope) (*identity.Identity, error) {
	return nil, errors.Join(identity.ErrIdentityLoad, errors.New("corrupt key"))
}

func TestHandleIssueIdentityUnavailable(t *testing.T) {
	svc := degree.NewService(brokenIdentities{}, ledger.NewSimulated(ledger.WithDelay(0)), storage.NewMockIPFS(storage.WithMockDelay(0)))
	w, err := wallet.Open(context.Background(), kvstore.NewMemory())
	require.NoError(t, err)
	router := New(svc, brokenIdentities{}, w, prometheus.NewRegistry(), nil).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/credentials/issue",
		strings.NewReader(`{"subjectDid":"`+studentDID+`","degree":{"type":"BSc","name":"CS"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, codeIdentityUnavailable, resp.Error)
	assert.Contains(t, resp.ErrorDescription, "cannot proceed")
	assert.NotContains(t, resp.ErrorDescription, "corrupt key")
}

func TestHandleVerify(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)

	tests := []struct {
		name       string
		body       string
		wantStatus degree.Status
	}{
		{name: "encoded", body: issued.Encoded, wantStatus: degree.StatusValid},
		{name: "garbage", body: "%%%", wantStatus: degree.StatusUndecodable},
		{name: "missing fields", body: `{"issuer":"did:ethr:0x1"}`, wantStatus: degree.StatusMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/credentials/verify", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var result degree.VerificationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestHandleHash(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)

	body, err := json.Marshal(issued.Credential)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/credentials/hash", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hash":"`+issued.Hash+`"}`, rec.Body.String())
}

func TestHandleRevoke(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)

	rec := env.do(t, http.MethodPost, "/v1/credentials/revoke", issued.Encoded)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/credentials/verify", issued.Encoded)
	var result degree.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, degree.StatusRevoked, result.Status)

	rec = env.do(t, http.MethodPost, "/v1/credentials/revoke", "not a credential")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRevokeRejectsTamperedCredential(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)

	forged := *issued.Credential
	forged.CredentialSubject.Degree.Name = "Forged"
	body, err := json.Marshal(&forged)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/credentials/revoke", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).ErrorDescription, "signature is invalid")

	rec = env.do(t, http.MethodPost, "/v1/credentials/verify", issued.Encoded)
	var result degree.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, degree.StatusValid, result.Status)
}

func TestWalletFlow(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)
	id := issued.Credential.ID
	base := "/v1/wallet/credentials/" + url.PathEscape(id)

	rec := env.do(t, http.MethodPost, "/v1/wallet/credentials", issued.Encoded)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var imported wallet.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imported))
	assert.Equal(t, wallet.ImportImported, imported.Status)

	rec = env.do(t, http.MethodPost, "/v1/wallet/credentials", issued.Encoded)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imported))
	assert.Equal(t, wallet.ImportDuplicate, imported.Status)
	assert.Equal(t, 1, env.wallet.Len())

	rec = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got vc.Credential
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)

	rec = env.do(t, http.MethodGet, base+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exported ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	assert.Equal(t, issued.Encoded, exported.Encoded)
	fromCompact, err := vc.ParseCredential(exported.Compact)
	require.NoError(t, err)
	assert.Equal(t, id, fromCompact.ID)

	rec = env.do(t, http.MethodPost, base+"/derive", `{"fields":["type","name"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var derived vc.Credential
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &derived))
	assert.True(t, derived.IsDerived())
	assert.Equal(t, "Computer Science", derived.CredentialSubject.Degree.Name)
	assert.Empty(t, derived.CredentialSubject.Degree.Major)

	rec = env.do(t, http.MethodGet, "/v1/wallet/credentials", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list WalletListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Credentials, 2)
	assert.Equal(t, id, list.Credentials[0].ID)
	assert.Equal(t, derived.ID, list.Credentials[1].ID)
}

func TestWalletErrors(t *testing.T) {
	env := newTestEnv(t)
	issued := env.issue(t)
	rec := env.do(t, http.MethodPost, "/v1/wallet/credentials", issued.Encoded)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/v1/wallet/credentials/" + url.PathEscape(issued.Credential.ID)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{name: "import garbage", method: http.MethodPost, path: "/v1/wallet/credentials", body: "???", wantCode: http.StatusBadRequest},
		{name: "get missing", method: http.MethodGet, path: "/v1/wallet/credentials/urn:uuid:missing", wantCode: http.StatusNotFound},
		{name: "export missing", method: http.MethodGet, path: "/v1/wallet/credentials/urn:uuid:missing/export", wantCode: http.StatusNotFound},
		{name: "derive empty selection", method: http.MethodPost, path: base + "/derive", body: `{"fields":[]}`, wantCode: http.StatusBadRequest},
		{name: "derive unknown field", method: http.MethodPost, path: base + "/derive", body: `{"fields":["gpa"]}`, wantCode: http.StatusBadRequest},
		{name: "derive missing source", method: http.MethodPost, path: "/v1/wallet/credentials/urn:uuid:missing/derive", body: `{"fields":["name"]}`, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, 1, env.wallet.Len())
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: vc.ErrEmptySelection, wantStatus: http.StatusBadRequest, wantCode: codeBadRequest},
		{err: vc.ErrMalformedCredential, wantStatus: http.StatusBadRequest, wantCode: codeBadRequest},
		{err: wallet.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: codeNotFound},
		{err: wallet.ErrDuplicateCredential, wantStatus: http.StatusConflict, wantCode: codeConflict},
		{err: degree.ErrInvalidSignature, wantStatus: http.StatusBadRequest, wantCode: codeBadRequest},
		{err: degree.ErrNotIssuer, wantStatus: http.StatusForbidden, wantCode: codeForbidden},
		{err: ledger.ErrRevocationUnsupported, wantStatus: http.StatusNotImplemented, wantCode: codeNotImplemented},
		{err: identity.ErrIdentityLoad, wantStatus: http.StatusInternalServerError, wantCode: codeIdentityUnavailable},
		{err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestInternalErrorOmitsDescription(t *testing.T) {
	h := New(nil, nil, nil, prometheus.NewRegistry(), nil)
	rec := httptest.NewRecorder()
	h.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("db failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, bytes.Contains(rec.Body.Bytes(), []byte("db failed")))
}
