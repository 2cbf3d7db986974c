package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"spellingbee/internal/blob"
	"spellingbee/internal/domain"
	"spellingbee/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Recording is one locally recorded word waiting for upload.
type Recording struct {
	Word  string
	Level int
	Open  func() (io.ReadCloser, error)
}

// FileRecording reads the audio from a local file.
func FileRecording(word string, level int, path string) Recording {
	return Recording{
		Word:  word,
		Level: level,
		Open:  func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FailedWord is a recording whose upload did not succeed. The caller may
// submit it again on its own.
type FailedWord struct {
	Word string `json:"word"`
	Err  error  `json:"-"`
}

// SubmissionReport tells the caller how many of the requested words made it.
type SubmissionReport struct {
	Requested int            `json:"requested"`
	Added     int            `json:"added"`
	Failed    []FailedWord   `json:"failed"`
	Session   domain.Session `json:"session"`
}

type uploadResult struct {
	entry domain.WordEntry
	err   error
}

// SubmitRecordings uploads a batch of recordings in parallel, waits for every
// upload to settle, and appends the successful ones with a single SubmitWords
// call. When every upload fails nothing is submitted.
func (c *Coordinator) SubmitRecordings(ctx context.Context, sessionID uuid.UUID, author domain.User, recs []Recording) (SubmissionReport, error) {
	if len(recs) == 0 || len(recs) > domain.WordsPerParticipant {
		return SubmissionReport{}, fmt.Errorf("batch of %d recordings, want 1..%d: %w", len(recs), domain.WordsPerParticipant, domain.ErrInvalidArgument)
	}
	for _, r := range recs {
		if strings.TrimSpace(r.Word) == "" || r.Open == nil {
			return SubmissionReport{}, fmt.Errorf("recording without word or audio: %w", domain.ErrInvalidArgument)
		}
	}

	s, err := c.Session(sessionID)
	if err != nil {
		return SubmissionReport{}, err
	}
	if s.IsStarted {
		return SubmissionReport{}, fmt.Errorf("submit recordings to %s: %w", sessionID, domain.ErrAlreadyStarted)
	}
	if !s.HasParticipant(author.ID) {
		return SubmissionReport{}, fmt.Errorf("author %q is not a participant of %s: %w", author.ID, sessionID, domain.ErrInvalidArgument)
	}

	log := logger.Session(sessionID.String()).With("user_id", author.ID)
	results := make([]uploadResult, len(recs))

	// every task reports through results and returns nil, so one failure
	// never cancels the rest of the batch
	var g errgroup.Group
	g.SetLimit(c.cfg.UploadConcurrency)
	for i, rec := range recs {
		g.Go(func() error {
			results[i] = c.upload(ctx, s, author.ID, rec)
			return nil
		})
	}
	_ = g.Wait()

	report := SubmissionReport{Requested: len(recs), Failed: []FailedWord{}}
	var entries []domain.WordEntry
	for i, res := range results {
		if res.err != nil {
			UploadsTotal.WithLabelValues("failed").Inc()
			log.Warn("upload failed", "word", recs[i].Word, "error", res.err)
			report.Failed = append(report.Failed, FailedWord{Word: recs[i].Word, Err: res.err})
			continue
		}
		UploadsTotal.WithLabelValues("ok").Inc()
		entries = append(entries, res.entry)
	}

	if len(entries) == 0 {
		log.Warn("no recordings uploaded, nothing submitted", "requested", len(recs))
		report.Session = s
		return report, nil
	}

	updated, err := c.SubmitWords(ctx, sessionID, entries)
	if err != nil {
		return report, err
	}
	report.Added = len(entries)
	report.Session = updated
	return report, nil
}

// upload resolves within UploadTimeout even when the transfer ignores its
// context; a stray transfer finishes into the buffered channel and is dropped.
func (c *Coordinator) upload(ctx context.Context, s domain.Session, authorID string, rec Recording) uploadResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	done := make(chan uploadResult, 1)
	go func() {
		done <- c.transferOne(ctx, s, authorID, rec)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return uploadResult{err: fmt.Errorf("upload %q: %w: %w", rec.Word, domain.ErrTransferFailure, ctx.Err())}
	}
}

// transferOne never panics into the caller; a panic resolves as a transfer
// failure.
func (c *Coordinator) transferOne(ctx context.Context, s domain.Session, authorID string, rec Recording) (res uploadResult) {
	defer func() {
		if r := recover(); r != nil {
			res = uploadResult{err: fmt.Errorf("upload %q panicked: %v: %w", rec.Word, r, domain.ErrTransferFailure)}
		}
	}()

	rc, err := rec.Open()
	if err != nil {
		return uploadResult{err: fmt.Errorf("open %q: %w", rec.Word, errors.Join(domain.ErrTransferFailure, err))}
	}
	defer rc.Close()

	uri, err := c.transfer.Upload(ctx, blob.Key(s.ID, rec.Word), rc)
	if err != nil {
		if !errors.Is(err, domain.ErrTransferFailure) {
			err = errors.Join(domain.ErrTransferFailure, err)
		}
		return uploadResult{err: fmt.Errorf("upload %q: %w", rec.Word, err)}
	}
	if uri == "" {
		return uploadResult{err: fmt.Errorf("upload %q returned no uri: %w", rec.Word, domain.ErrTransferFailure)}
	}

	return uploadResult{entry: domain.NewWordEntry(s.ID, authorID, rec.Word, uri, rec.Level)}
}
