package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/blues/ideamarket/internal/config"
	"github.com/blues/ideamarket/internal/content"
	"github.com/blues/ideamarket/internal/graphql"
	"github.com/blues/ideamarket/internal/handler"
	"github.com/blues/ideamarket/internal/logic"
	"github.com/blues/ideamarket/internal/repository"
	"github.com/blues/ideamarket/internal/storage"
	"github.com/blues/ideamarket/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "let-me-in"

type testServer struct {
	engine *gin.Engine
	chain  *testutil.FakeChain
	pinner *storage.MemoryPinner
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.AdminToken = adminToken
	cfg.IPFS.GatewayURL = "https://ipfs.filebase.io/ipfs/"

	sealer, err := content.NewSealer(strings.Repeat("ab", 32))
	require.NoError(t, err)

	fake := testutil.NewFakeChain()
	pinner := storage.NewMemoryPinner(cfg.IPFS.GatewayURL)
	engine := Setup(cfg, Dependencies{
		Store:   repository.NewStore(testutil.NewDB(t)),
		Chain:   fake,
		Pinner:  pinner,
		GraphQL: graphql.NewClient("", nil),
		Sealer:  sealer,
	})
	return &testServer{engine: engine, chain: fake, pinner: pinner}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, handler.Response) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, handler.Response) {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp handler.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"name":         "Captain Ledger",
		"bio":          "Ships audited contracts",
		"skills":       []string{"solidity"},
		"specialities": []string{"defi"},
		"userAddress":  "0x00000000000000000000000000000000000000aa",
	}
}

func TestGetSuperhero_UnknownAddressIsNotFound(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/superheroes/0x1111111111111111111111111111111111111111", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeNotFound, resp.Error.Code)
}

func TestGetSuperhero_InvalidAddress(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/superheroes/0xnothex/profile", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeInvalidAddress, resp.Error.Code)
}

func TestCreateSuperhero_NameTooLong(t *testing.T) {
	s := newTestServer(t)
	body := createBody()
	body["name"] = strings.Repeat("n", 32)

	w, resp := s.do(t, http.MethodPost, "/api/superheroes/create", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeValidation, resp.Error.Code)
	assert.Contains(t, w.Body.String(), `"field":"name"`)
	assert.Equal(t, 0, s.chain.Calls("CreateSuperhero"))
}

func TestCreateSuperhero_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/superheroes/create", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeInvalidJSON, resp.Error.Code)
}

func TestCreateSuperhero_ThenFetch(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/superheroes/create", createBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	w, resp = s.do(t, http.MethodGet, "/api/superheroes/0x00000000000000000000000000000000000000AA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Captain Ledger"`)

	w, resp = s.do(t, http.MethodGet, "/api/superheroes?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Pagination)
	assert.EqualValues(t, 1, resp.Pagination.Total)
	assert.False(t, resp.Pagination.HasMore)

	w, _ = s.do(t, http.MethodPost, "/api/superheroes/create", createBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), handler.CodeAlreadyExists)
}

func TestCreateSuperhero_GracefulFallback(t *testing.T) {
	s := newTestServer(t)
	s.chain.WriteErr = errors.New("failed to create superhero: connection refused")

	w, resp := s.do(t, http.MethodPost, "/api/superheroes/create", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, logic.PendingChainMessage, resp.Message)
	assert.Contains(t, w.Body.String(), `"pending":true`)
	assert.Contains(t, w.Body.String(), `"metadataUrl":"https://ipfs.filebase.io/ipfs/`)
}

func avatarRequest(t *testing.T, mime string, data []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/superheroes/upload-avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.serve(t, avatarRequest(t, "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeInvalidFileType, resp.Error.Code)

	w, resp = s.serve(t, avatarRequest(t, "image/png", make([]byte, handler.MaxAvatarSize+1)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeFileTooLarge, resp.Error.Code)

	w, resp = s.do(t, http.MethodPost, "/api/superheroes/upload-avatar", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeNoFile, resp.Error.Code)

	w, _ = s.serve(t, avatarRequest(t, "image/png", []byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ipfsHash":"bafkrei`)
	assert.Equal(t, 1, s.pinner.Len())
}

func TestGrantRole_RequiresAdminToken(t *testing.T) {
	s := newTestServer(t)
	path := "/api/superheroes/0x1111111111111111111111111111111111111111/grant-idea-registry-role"

	w, resp := s.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeUnauthorized, resp.Error.Code)
	assert.Equal(t, 0, s.chain.Calls("GrantIdeaRegistryRole"))

	w, _ = s.do(t, http.MethodPost, path, nil, handler.AdminTokenHeader, adminToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/superheroes/0x1111111111111111111111111111111111111111/is-superhero", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isSuperhero":true`)
}

func TestIsSuperhero_CheckError(t *testing.T) {
	s := newTestServer(t)
	s.chain.ReadErr = errors.New("failed to check role: timeout")

	w, resp := s.do(t, http.MethodGet, "/api/superheroes/0x1111111111111111111111111111111111111111/is-superhero", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeCheck, resp.Error.Code)
}

func TestIdeaRoutes(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/ideas/create", map[string]interface{}{
		"title":          "Intent solver",
		"content":        "batch auctions every block",
		"categories":     []string{"defi"},
		"price":          "50",
		"creatorAddress": "0x00000000000000000000000000000000000000aa",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodGet, "/api/ideas?available=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"datastore"`)
	assert.Contains(t, w.Body.String(), `"priceUsdc":"50"`)

	w, _ = s.do(t, http.MethodGet, "/api/ideas/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := s.do(t, http.MethodPost, "/api/ideas/1/content", map[string]string{
		"buyerAddress": "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeNotOwner, resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/ideas/1/content", map[string]string{
		"buyerAddress": "0x00000000000000000000000000000000000000aa",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "batch auctions every block")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"connected"`)

	w, _ = s.do(t, http.MethodGet, "/api/chain/block-number", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blockNumber":23452000`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ideamarket_http_requests_total")
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/chain/block-number", nil)
	assert.Len(t, w.Header().Get(handler.RequestIDHeader), 36)

	w, _ = s.do(t, http.MethodGet, "/api/chain/block-number", nil, handler.RequestIDHeader, "trace-123")
	assert.Equal(t, "trace-123", w.Header().Get(handler.RequestIDHeader))
}

func TestRecordPurchase_BindingErrorsListEveryField(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/purchases/record", map[string]interface{}{
		"ideaId":          0,
		"transactionHash": "0x1234",
		"buyerAddress":    "0x1111111111111111111111111111111111111111",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeValidation, resp.Error.Code)
	assert.Contains(t, w.Body.String(), `"field":"ideaId"`)
	assert.Contains(t, w.Body.String(), `"field":"transactionHash"`)
	assert.NotContains(t, w.Body.String(), `"field":"buyerAddress"`)
	assert.Equal(t, 0, s.chain.Calls("Receipt"))
}

func TestCreateIdea_TooManyCategories(t *testing.T) {
	s := newTestServer(t)
	categories := make([]string, 11)
	for i := range categories {
		categories[i] = "defi"
	}

	w, resp := s.do(t, http.MethodPost, "/api/ideas/create", map[string]interface{}{
		"title":          "Intent solver",
		"content":        "batch auctions",
		"categories":     categories,
		"price":          "5",
		"creatorAddress": "0x00000000000000000000000000000000000000aa",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, handler.CodeValidation, resp.Error.Code)
	assert.Contains(t, w.Body.String(), "must contain at most 10 items")
	assert.Equal(t, 0, s.chain.Calls("CreateIdea"))
	assert.Equal(t, 0, s.pinner.Len())
}
