package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"spellingbee/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ws_smoke drives one session end to end against a running server: two users
// register, the second records words, the creator starts and spells them.
func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := fmt.Sprintf("http://127.0.0.1:%s/api/v1", port)
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	suffix := uuid.NewString()[:8]
	tokenA, userA := c.register("smokeA", "smoke-a-"+suffix+"@example.com")
	tokenB, userB := c.register("smokeB", "smoke-b-"+suffix+"@example.com")
	logger.Info("users registered", "a", userA, "b", userB)

	var sess struct {
		ID string `json:"id"`
	}
	c.call(http.MethodPost, "/sessions", tokenA, map[string]any{"participant_ids": []string{userB}}, &sess)
	logger.Info("session created", "session_id", sess.ID)

	words := []string{"apple", "pear", "banana"}
	c.submit(sess.ID, tokenB, words)
	c.call(http.MethodPost, "/sessions/"+sess.ID+"/start", tokenA, nil, nil)

	wsURL := fmt.Sprintf("ws://127.0.0.1:%s/ws/play?token=%s&session=%s", port, tokenA, sess.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial play", "error", err)
	}
	defer conn.Close()

	for {
		typ, val := read(conn)
		switch typ {
		case "ready", "recording":
			continue
		case "word":
			write(conn, map[string]any{"type": "played"})
			expect(conn, "recording")
			time.Sleep(300 * time.Millisecond)
			// the order is the server's; a wrong guess still exercises scoring
			idx, _ := val["index"].(float64)
			guess := words[int(idx)%len(words)]
			write(conn, map[string]any{"type": "spell", "value": map[string]string{"text": guess}})
		case "result":
			logger.Info("scored", "target", val["target"], "correct", val["correct"], "points", val["points"])
		case "complete":
			logger.Info("smoke test finished", "total", val["total"], "words", val["words"])
			return
		case "error":
			logger.Fatal("server error", "message", val["message"])
		}
	}
}

type client struct {
	base string
	http *http.Client
}

func (c *client) register(name, email string) (token, userID string) {
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	c.call(http.MethodPost, "/auth/register", "", map[string]string{
		"username": name,
		"email":    email,
		"password": "smoke-password",
	}, &res)
	return res.Token, res.User.ID
}

func (c *client) call(method, path, token string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			logger.Fatal("encode body", "error", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		logger.Fatal("build request", "error", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.do(req, token, out)
}

// submit uploads a fake recording per word.
func (c *client) submit(sessionID, token string, words []string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, w := range words {
		_ = mw.WriteField("word", w)
		_ = mw.WriteField("level", "1")
		fw, err := mw.CreateFormFile("audio", w+".m4a")
		if err != nil {
			logger.Fatal("multipart", "error", err)
		}
		_, _ = fw.Write([]byte("smoke audio " + w))
	}
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, c.base+"/sessions/"+sessionID+"/words", &buf)
	if err != nil {
		logger.Fatal("build request", "error", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var report struct {
		Added int `json:"added"`
	}
	c.do(req, token, &report)
	logger.Info("words submitted", "added", report.Added)
}

func (c *client) do(req *http.Request, token string, out any) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Fatal("request failed", "path", req.URL.Path, "error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		logger.Fatal("unexpected status", "path", req.URL.Path, "status", resp.StatusCode, "error", e.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			logger.Fatal("decode response", "path", req.URL.Path, "error", err)
		}
	}
}

func read(conn *websocket.Conn) (string, map[string]any) {
	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	var msg struct {
		Type  string         `json:"type"`
		Value map[string]any `json:"value"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		logger.Fatal("read", "error", err)
	}
	return msg.Type, msg.Value
}

func expect(conn *websocket.Conn, want string) {
	if typ, val := read(conn); typ != want {
		logger.Fatal("unexpected message", "want", want, "got", typ, "value", val)
	}
}

func write(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		logger.Fatal("write", "error", err)
	}
}
