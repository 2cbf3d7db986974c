package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spellingbee/internal/domain"
	"spellingbee/internal/http/middleware"
	"spellingbee/internal/identity"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitWriter(io.Discard, "error", false)
	gin.SetMode(gin.TestMode)
}

// flakyTransfer fails uploads for the listed words and keeps the rest in memory.
type flakyTransfer struct {
	mu      sync.Mutex
	fail    map[string]bool
	objects map[string][]byte
}

func (f *flakyTransfer) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if f.fail[string(b)] {
		return "", errors.New("bucket unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return "mem://" + key, nil
}

func (f *flakyTransfer) Download(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("%s: %w", key, domain.ErrNotFound)
}

type testServer struct {
	r     *gin.Engine
	coord *service.Coordinator
}

func newTestServer(t *testing.T, failWords ...string) *testServer {
	t.Helper()
	service.InitJWT("handler-secret", time.Hour)

	ft := &flakyTransfer{fail: map[string]bool{}, objects: map[string][]byte{}}
	for _, w := range failWords {
		ft.fail[w] = true
	}
	coord := service.NewCoordinator(repository.NewMemStore(), ft, service.CoordinatorConfig{})
	h := NewHandler(coord, identity.NewGateway(repository.NewMemCredentials(), identity.NewMemRevoker()), repository.NewMemPlayResults())

	r := gin.New()
	auth := middleware.JWT(nil)
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/sessions", auth, h.CreateSession)
	r.GET("/sessions/:id", auth, h.GetSession)
	r.POST("/sessions/:id/words", auth, h.SubmitWords)
	r.POST("/sessions/:id/start", auth, h.StartSession)
	r.GET("/users", auth, h.Users)
	return &testServer{r: r, coord: coord}
}

func (s *testServer) request(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path, token string, v any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	return s.request(http.MethodPost, path, token, bytes.NewReader(b), "application/json")
}

func (s *testServer) register(t *testing.T, name string) (string, string) {
	t.Helper()
	w := s.postJSON("/register", "", RegisterRequest{Username: name, Email: name + "@example.com", Password: "long-enough"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token, res.User.ID
}

func form(t *testing.T, words []string, levels []string, files int) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, w := range words {
		require.NoError(t, mw.WriteField("word", w))
	}
	for _, l := range levels {
		require.NoError(t, mw.WriteField("level", l))
	}
	for i := 0; i < files; i++ {
		fw, err := mw.CreateFormFile("audio", fmt.Sprintf("%d.m4a", i))
		require.NoError(t, err)
		// the body is the word so flakyTransfer can pick failures
		content := "x"
		if i < len(words) {
			content = words[i]
		}
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	token, id := s.register(t, "alice")
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, id)

	w := s.postJSON("/register", "", RegisterRequest{Username: "again", Email: "ALICE@example.com", Password: "long-enough"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.postJSON("/register", "", RegisterRequest{Username: "weak", Email: "weak@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postJSON("/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.postJSON("/login", "", LoginRequest{Email: "alice@example.com", Password: "long-enough"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/users", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"display_name":"alice"`)
}

func TestCreateSessionRejectsUnknownParticipant(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "alice")

	w := s.postJSON("/sessions", token, CreateSessionRequest{ParticipantIDs: []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/sessions/not-a-uuid", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitWordsPartialFailure(t *testing.T) {
	s := newTestServer(t, "pear")
	aliceToken, _ := s.register(t, "alice")
	bobToken, bobID := s.register(t, "bob")

	w := s.postJSON("/sessions", aliceToken, CreateSessionRequest{ParticipantIDs: []string{bobID}})
	require.Equal(t, http.StatusCreated, w.Code)
	var view SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	path := "/sessions/" + view.ID.String()

	body, ct := form(t, []string{"apple", "pear"}, []string{"3", "1"}, 2)
	w = s.request(http.MethodPost, path+"/words", bobToken, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Requested int              `json:"requested"`
		Added     int              `json:"added"`
		Failed    []map[string]any `json:"failed"`
		Session   SessionView      `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 1, report.Added)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "pear", report.Failed[0]["word"])
	require.Len(t, report.Session.Words, 1)
	assert.Equal(t, "apple", report.Session.Words[0].Text)
	assert.Equal(t, 3, report.Session.Words[0].Level)

	// everything failing is a bad gateway and adds nothing
	body, ct = form(t, []string{"pear"}, nil, 1)
	w = s.request(http.MethodPost, path+"/words", bobToken, body, ct)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	s2, err := s.coord.Session(view.ID)
	require.NoError(t, err)
	assert.Len(t, s2.Words, 1)
}

func TestSubmitWordsFormValidation(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "alice")

	w := s.postJSON("/sessions", token, CreateSessionRequest{})
	require.Equal(t, http.StatusCreated, w.Code)
	var view SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	path := "/sessions/" + view.ID.String() + "/words"

	tests := []struct {
		name   string
		words  []string
		levels []string
		files  int
	}{
		{"no words", nil, nil, 0},
		{"missing audio", []string{"apple", "pear"}, nil, 1},
		{"too many", []string{"a", "b", "c", "d", "e", "f"}, nil, 6},
		{"bad level", []string{"apple"}, []string{"hard"}, 1},
		{"partial levels", []string{"apple", "pear"}, []string{"1"}, 2},
		{"blank word", []string{"  "}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := form(t, tt.words, tt.levels, tt.files)
			w := s.request(http.MethodPost, path, token, body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w = s.request(http.MethodPost, path, token, strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartSessionCreatorOnly(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register(t, "alice")
	bobToken, bobID := s.register(t, "bob")
	carolToken, _ := s.register(t, "carol")

	w := s.postJSON("/sessions", aliceToken, CreateSessionRequest{ParticipantIDs: []string{bobID}})
	require.Equal(t, http.StatusCreated, w.Code)
	var view SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	path := "/sessions/" + view.ID.String() + "/start"

	assert.Equal(t, http.StatusNotFound, s.request(http.MethodPost, path, carolToken, nil, "").Code)
	assert.Equal(t, http.StatusForbidden, s.request(http.MethodPost, path, bobToken, nil, "").Code)
	assert.Equal(t, http.StatusOK, s.request(http.MethodPost, path, aliceToken, nil, "").Code)
	// starting twice is harmless
	assert.Equal(t, http.StatusOK, s.request(http.MethodPost, path, aliceToken, nil, "").Code)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("games/x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrAlreadyStarted, http.StatusConflict},
		{fmt.Errorf("bad word: %w", domain.ErrInvalidArgument), http.StatusBadRequest},
		{errors.Join(domain.ErrTransferFailure, errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestReadiness(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name  string
		store Pinger
		extra Pinger
		want  int
	}{
		{"all healthy", healthy, healthy, http.StatusOK},
		{"store down", down, healthy, http.StatusServiceUnavailable},
		{"redis down", healthy, down, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, "test", func() int { return 3 })
			h.AddCheck("redis", tt.extra)

			r := gin.New()
			r.GET("/readyz", h.Readiness)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.want, w.Code)
			var res HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "3", res.Checks["unflushed_records"])
			assert.Contains(t, res.Checks, "redis")
		})
	}
}

func TestHealthAndLiveness(t *testing.T) {
	h := NewHealthHandler(PingFunc(func(context.Context) error { return errors.New("down") }), "1.2.3", nil)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
