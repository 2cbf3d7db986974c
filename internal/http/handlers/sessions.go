package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"spellingbee/internal/domain"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

// SessionView is a session plus the names and readiness the client renders.
type SessionView struct {
	domain.Session
	CreatorName      string         `json:"creator_name"`
	ParticipantNames []string       `json:"participant_names"`
	Readiness        map[string]int `json:"readiness"`
}

func (h *Handler) view(s domain.Session) SessionView {
	name, _ := h.Coordinator.CreatorName(s)
	return SessionView{
		Session:          s,
		CreatorName:      name,
		ParticipantNames: h.Coordinator.ParticipantNames(s),
		Readiness:        s.Readiness(),
	}
}

// session loads the :id session and checks the caller takes part in it.
// Sessions of other users look like they do not exist.
func (h *Handler) session(c *gin.Context, user domain.User) (domain.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return domain.Session{}, false
	}
	s, err := h.Coordinator.Session(id)
	if err != nil {
		respondError(c, err)
		return domain.Session{}, false
	}
	if !s.Involves(user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return domain.Session{}, false
	}
	return s, true
}

func (h *Handler) CreateSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	participants := make([]domain.User, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		p, err := h.Coordinator.User(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown participant " + id})
			return
		}
		participants = append(participants, p)
	}

	s, err := h.Coordinator.CreateSession(c.Request.Context(), user, participants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(s))
}

func (h *Handler) ListSessions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessions := h.Coordinator.ListSessionsFor(user.ID)
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, h.view(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *Handler) GetSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	s, ok := h.session(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

// MyWords returns the caller's recordings and the next slot to fill.
func (h *Handler) MyWords(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	s, ok := h.session(c, user)
	if !ok {
		return
	}

	own, err := h.Coordinator.OwnWords(s.ID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, own)
}

// SubmitWords takes a multipart form with parallel "word", "level" and
// "audio" fields, one entry per recording.
func (h *Handler) SubmitWords(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	s, ok := h.session(c, user)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	recs, err := recordingsFromForm(form)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Coordinator.SubmitRecordings(c.Request.Context(), s.ID, user, recs)
	if err != nil {
		respondError(c, err)
		return
	}

	failed := make([]gin.H, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, gin.H{"word": f.Word, "error": "upload failed"})
	}

	status := http.StatusOK
	if report.Added == 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"requested": report.Requested,
		"added":     report.Added,
		"failed":    failed,
		"session":   h.view(report.Session),
	})
}

func recordingsFromForm(form *multipart.Form) ([]service.Recording, error) {
	words := form.Value["word"]
	levels := form.Value["level"]
	files := form.File["audio"]

	if len(words) == 0 {
		return nil, errors.New("at least one word is required")
	}
	if len(words) > domain.WordsPerParticipant {
		return nil, errors.New("at most " + strconv.Itoa(domain.WordsPerParticipant) + " words per submission")
	}
	if len(files) != len(words) {
		return nil, errors.New("every word needs exactly one audio file")
	}
	if len(levels) != 0 && len(levels) != len(words) {
		return nil, errors.New("level must be given for every word or none")
	}

	recs := make([]service.Recording, 0, len(words))
	for i, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			return nil, errors.New("empty word")
		}

		level := domain.DefaultWordLevel
		if len(levels) > 0 {
			n, err := strconv.Atoi(levels[i])
			if err != nil || n <= 0 {
				return nil, errors.New("invalid level for " + w)
			}
			level = n
		}

		fh := files[i]
		recs = append(recs, service.Recording{
			Word:  w,
			Level: level,
			Open:  func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return recs, nil
}

// StartSession is allowed for the creator only.
func (h *Handler) StartSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	s, ok := h.session(c, user)
	if !ok {
		return
	}
	if s.CreatorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can start the session"})
		return
	}

	started, err := h.Coordinator.StartSession(c.Request.Context(), s.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(started))
}

// Audio serves the recording of one word of the session.
func (h *Handler) Audio(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	s, ok := h.session(c, user)
	if !ok {
		return
	}

	word := c.Query("word")
	if word == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "word is required"})
		return
	}

	path, err := h.Coordinator.DownloadAudio(c.Request.Context(), s.ID, word)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "audio/mp4")
	c.File(path)
}
