package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spellingbee/internal/blob"
	"spellingbee/internal/config"
	httpserver "spellingbee/internal/http"
	"spellingbee/internal/identity"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"
	"spellingbee/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitWriter(io.Discard, "error", false)
	gin.SetMode(gin.TestMode)
}

type app struct {
	srv   *httptest.Server
	coord *service.Coordinator
	docs  repository.DocumentStore
}

func newApp(t *testing.T, docs repository.DocumentStore) *app {
	t.Helper()
	service.InitJWT("test-secret", time.Hour)

	fs, err := blob.NewFSStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	coord := service.NewCoordinator(docs, fs, service.CoordinatorConfig{UploadTimeout: 5 * time.Second})
	require.NoError(t, coord.Load(ctx))

	plays := repository.NewMemPlayResults()
	hub := ws.NewHub(coord, plays)
	hub.Run(ctx)

	cfg := &config.Config{
		AppVersion:      "test",
		APIRateLimit:    1000,
		AuthRateLimit:   1000,
		SubmitRateLimit: 1000,
	}

	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		Config:      cfg,
		Coordinator: coord,
		Identity:    identity.NewGateway(repository.NewMemCredentials(), identity.NewMemRevoker()),
		Plays:       plays,
		Store:       docs,
		Hub:         hub,
		BlobRoot:    fs.Root(),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &app{srv: srv, coord: coord, docs: docs}
}

func (a *app) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (a *app) json(t *testing.T, method, path, token string, in, out any) int {
	t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	status, raw := a.do(t, method, path, token, body, "application/json")
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return status
}

func (a *app) register(t *testing.T, name string) (token, id string) {
	t.Helper()
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	status := a.json(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name,
		"email":    strings.ToLower(name) + "@example.com",
		"password": "password-" + name,
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	return res.Token, res.User.ID
}

func recordingsForm(t *testing.T, words ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, w := range words {
		require.NoError(t, mw.WriteField("word", w))
		require.NoError(t, mw.WriteField("level", "2"))
		fw, err := mw.CreateFormFile("audio", w+".m4a")
		require.NoError(t, err)
		_, err = fw.Write([]byte("audio of " + w))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type wsMsg struct {
	Type  string         `json:"type"`
	Value map[string]any `json:"value"`
}

func readMsg(t *testing.T, conn *websocket.Conn) wsMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m wsMsg
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func expectMsg(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	m := readMsg(t, conn)
	require.Equal(t, want, m.Type, "value: %v", m.Value)
	return m.Value
}

func TestE2E_SessionLifecycleAndPlay(t *testing.T) {
	a := newApp(t, repository.NewMemStore())

	aliceToken, aliceID := a.register(t, "Alice")
	bobToken, bobID := a.register(t, "Bob")
	carolToken, _ := a.register(t, "Carol")

	// alice creates a session with bob
	var created struct {
		ID               string   `json:"id"`
		CreatorName      string   `json:"creator_name"`
		ParticipantNames []string `json:"participant_names"`
	}
	status := a.json(t, http.MethodPost, "/api/v1/sessions", aliceToken,
		map[string]any{"participant_ids": []string{bobID}}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Alice", created.CreatorName)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, created.ParticipantNames)

	// carol is not involved and sees nothing
	status = a.json(t, http.MethodGet, "/api/v1/sessions/"+created.ID, carolToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// bob records two words
	body, ct := recordingsForm(t, "apple", "pear")
	status, raw := a.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/words", bobToken, body, ct)
	require.Equal(t, http.StatusOK, status, string(raw))
	var report struct {
		Requested int `json:"requested"`
		Added     int `json:"added"`
		Session   struct {
			Readiness map[string]int `json:"readiness"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 2, report.Session.Readiness[bobID])
	assert.Equal(t, 0, report.Session.Readiness[aliceID])

	var mine struct {
		Words    []map[string]any `json:"words"`
		NextSlot int              `json:"next_slot"`
	}
	status = a.json(t, http.MethodGet, "/api/v1/sessions/"+created.ID+"/words/mine", bobToken, nil, &mine)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, mine.Words, 2)
	assert.Equal(t, 2, mine.NextSlot)

	// only the creator starts
	status = a.json(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/start", bobToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var started struct {
		IsStarted bool `json:"is_started"`
	}
	status = a.json(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/start", aliceToken, nil, &started)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, started.IsStarted)

	// no more words once started
	body, ct = recordingsForm(t, "plum")
	status, _ = a.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/words", bobToken, body, ct)
	assert.Equal(t, http.StatusConflict, status)

	// alice plays bob's words
	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/play?token=" + aliceToken + "&session=" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	expectMsg(t, conn, "ready")
	word := expectMsg(t, conn, "word")
	assert.EqualValues(t, 0, word["index"])
	assert.EqualValues(t, 2, word["total"])
	audioURL, _ := word["audio_url"].(string)
	require.NotEmpty(t, audioURL)

	status, raw = a.do(t, http.MethodGet, audioURL, "", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "audio of apple", string(raw))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "played"}))
	expectMsg(t, conn, "recording")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "spell", "value": map[string]string{"text": " APPLE"}}))
	res := expectMsg(t, conn, "result")
	assert.Equal(t, true, res["correct"])
	assert.Greater(t, res["points"].(float64), float64(0))
	first := res["points"].(float64)

	expectMsg(t, conn, "word")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "played"}))
	expectMsg(t, conn, "recording")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "spell", "value": map[string]string{"text": "pare"}}))
	res = expectMsg(t, conn, "result")
	assert.Equal(t, false, res["correct"])
	assert.EqualValues(t, 0, res["points"])

	done := expectMsg(t, conn, "complete")
	assert.Equal(t, first, done["total"])

	var plays struct {
		Plays []struct {
			Total int `json:"total"`
		} `json:"plays"`
	}
	require.Eventually(t, func() bool {
		a.json(t, http.MethodGet, "/api/v1/me/plays", aliceToken, nil, &plays)
		return len(plays.Plays) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, int(first), plays.Plays[0].Total)

	// sign-out revokes the token
	status = a.json(t, http.MethodPost, "/api/v1/auth/signout", aliceToken, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	status = a.json(t, http.MethodGet, "/api/v1/me", aliceToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestE2E_EventsFeed(t *testing.T) {
	a := newApp(t, repository.NewMemStore())

	aliceToken, _ := a.register(t, "Alice")
	bobToken, bobID := a.register(t, "Bob")

	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/events?token=" + bobToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	// ready is sent after the watcher is registered
	expectMsg(t, conn, "ready")

	var created struct {
		ID string `json:"id"`
	}
	status := a.json(t, http.MethodPost, "/api/v1/sessions", aliceToken,
		map[string]any{"participant_ids": []string{bobID}}, &created)
	require.Equal(t, http.StatusCreated, status)

	ev := expectMsg(t, conn, "event")
	assert.Equal(t, string(service.EventSessionCreated), ev["type"])
}

func TestE2E_PlayRejectedBeforeStart(t *testing.T) {
	a := newApp(t, repository.NewMemStore())

	aliceToken, _ := a.register(t, "Alice")
	var created struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, a.json(t, http.MethodPost, "/api/v1/sessions", aliceToken,
		map[string]any{"participant_ids": []string{}}, &created))

	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/play?token=" + aliceToken + "&session=" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	expectMsg(t, conn, "ready")
	e := expectMsg(t, conn, "error")
	assert.Contains(t, e["message"], "not started")
}

func TestE2E_RejectsMissingToken(t *testing.T) {
	a := newApp(t, repository.NewMemStore())

	status := a.json(t, http.MethodGet, "/api/v1/sessions", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(a.srv.URL, "http")+"/ws/play", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
