package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bepview/internal/artifact"
	"bepview/internal/storage"
	"bepview/internal/transport"
)

// Mirrors the server-side limits so obviously bad submissions fail
// before any network round trip.
const (
	defaultMaxFileSize = 20_000_000
)

var defaultContentTypes = []string{"application/json", "application/octet-stream"}

// File is the artifact the user selected for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

type Config struct {
	BaseURL      string
	PollInterval time.Duration
	// MaxPollDuration fails a session whose job never reaches a terminal
	// status. Zero polls forever, matching the original behavior.
	MaxPollDuration     time.Duration
	MaxFileSize         int64
	AllowedContentTypes []string
	// FallbackTarget is used when the init response names no upload
	// destination, which happens against a local stack where the client
	// writes straight to MinIO.
	FallbackTarget storage.Target
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = 3 * time.Second
	}
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = defaultMaxFileSize
	}
	if len(out.AllowedContentTypes) == 0 {
		out.AllowedContentTypes = defaultContentTypes
	}
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	return out
}

// Manager owns the single active session. Starting a new upload cancels
// any outstanding one first, so a stale poll can never deliver artifacts
// on top of a newer session's.
type Manager struct {
	cfg     Config
	tc      *transport.Client
	fetcher *artifact.Fetcher
	store   *artifact.Store
	logger  *zap.Logger

	mu      sync.Mutex
	current *Session
}

func NewManager(cfg Config, tc *transport.Client, fetcher *artifact.Fetcher, store *artifact.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		tc:      tc,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

// Start begins a new upload session, superseding and cancelling the
// previous one. Phase observers are registered up front so none of the
// early transitions are missed.
func (m *Manager) Start(ctx context.Context, file File, observers ...func(Phase)) *Session {
	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:       m.cfg,
		tc:        m.tc,
		fetcher:   m.fetcher,
		store:     m.store,
		logger:    m.logger,
		file:      file,
		ctx:       sessionCtx,
		cancelFn:  cancel,
		phase:     PhaseIdle,
		observers: observers,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	go s.run()
	return s
}

// Current returns the active session, if any.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Session is one artifact submission working its way through the state
// machine. All mutation happens through transition/fail/Cancel, which
// enforce the terminal and cancellation rules.
type Session struct {
	cfg     Config
	tc      *transport.Client
	fetcher *artifact.Fetcher
	store   *artifact.Store
	logger  *zap.Logger
	file    File

	ctx      context.Context
	cancelFn context.CancelFunc

	mu        sync.Mutex
	fileID    string
	phase     Phase
	lastErr   *SessionError
	cancelled bool
	observers []func(Phase)

	done chan struct{}
}

// FileID is the opaque session handle assigned by the server at init;
// empty until init succeeds.
func (s *Session) FileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastError returns the failure diagnostic, or an ArtifactFetchError
// recorded against a still-Completed session.
func (s *Session) LastError() *SessionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Done closes once the session goroutine exits, whether by completion,
// failure, or cancellation.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes or ctx expires.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the session from any non-terminal phase: the polling
// loop's ticker is torn down via context, the phase returns to Idle, and
// any in-flight response is dropped when it arrives because transition
// refuses to touch a cancelled session.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.phase.Terminal() || s.cancelled {
		s.mu.Unlock()
		s.cancelFn()
		return
	}
	s.cancelled = true
	s.phase = PhaseIdle
	observers := s.observerSnapshot()
	s.mu.Unlock()

	s.cancelFn()
	for _, fn := range observers {
		fn(PhaseIdle)
	}
}

// must be called with s.mu held
func (s *Session) observerSnapshot() []func(Phase) {
	out := make([]func(Phase), len(s.observers))
	copy(out, s.observers)
	return out
}

// transition advances the state machine. It refuses to act on a
// cancelled or terminal session, which is what makes late responses
// harmless: the identity check happens before any state mutation.
func (s *Session) transition(to Phase) bool {
	s.mu.Lock()
	if s.cancelled || s.phase.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.phase = to
	observers := s.observerSnapshot()
	s.mu.Unlock()

	for _, fn := range observers {
		fn(to)
	}
	return true
}

func (s *Session) fail(kind ErrorKind, detail string, err error) {
	s.mu.Lock()
	if s.cancelled || s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	from := s.phase
	s.phase = PhaseFailed
	s.lastErr = &SessionError{Kind: kind, Phase: from, Detail: detail, Err: err}
	observers := s.observerSnapshot()
	s.mu.Unlock()

	s.logger.Error("upload session failed",
		zap.String("kind", string(kind)),
		zap.String("phase", from.String()),
		zap.String("detail", detail),
		zap.Error(err))
	for _, fn := range observers {
		fn(PhaseFailed)
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancelFn()

	if !s.transition(PhaseInitializing) {
		return
	}
	if err := s.validateFile(); err != nil {
		s.fail(KindInit, err.Error(), nil)
		return
	}

	init, err := s.initUpload()
	if err != nil {
		s.fail(KindInit, "could not obtain an upload destination", err)
		return
	}
	s.mu.Lock()
	s.fileID = init.FileID
	s.mu.Unlock()

	target, err := s.uploadTarget(init)
	if err != nil {
		s.fail(KindInit, "could not obtain an upload destination", err)
		return
	}

	if !s.transition(PhaseUploadingToStorage) {
		return
	}
	if err := storage.Upload(s.ctx, s.tc, target, s.file.Name, s.file.ContentType, s.file.Data); err != nil {
		s.fail(KindStorageUpload, "writing to the upload destination failed", err)
		return
	}

	if !s.transition(PhaseFinalizing) {
		return
	}
	status, err := s.completeUpload(init.FileID)
	if err != nil {
		s.fail(KindCompletionNotify, "completion notice was not accepted", err)
		return
	}

	// Terminal-at-Finalizing shortcut: no polling when the server
	// already knows the outcome.
	switch status.Status {
	case StatusCompleted:
		s.finish()
		return
	case StatusFailed:
		s.fail(KindProcessing, status.failureDetail(), nil)
		return
	}

	if !s.transition(PhaseProcessing) {
		return
	}
	s.poll(init.FileID)
}

func (s *Session) validateFile() error {
	if len(s.file.Data) == 0 {
		return fmt.Errorf("file %q is empty", s.file.Name)
	}
	if s.file.Size() > s.cfg.MaxFileSize {
		return fmt.Errorf("file %q is %d bytes, limit is %d", s.file.Name, s.file.Size(), s.cfg.MaxFileSize)
	}
	for _, ct := range s.cfg.AllowedContentTypes {
		if strings.EqualFold(ct, s.file.ContentType) {
			return nil
		}
	}
	return fmt.Errorf("unsupported content type %q", s.file.ContentType)
}

// uploadTarget prefers the destination presigned by the server; absent
// one, a configured direct target takes over with the object key derived
// from the session's file id.
func (s *Session) uploadTarget(init *initResponse) (storage.Target, error) {
	if t := init.target(); t.Kind() != storage.KindUnknown {
		return t, nil
	}
	fallback := s.cfg.FallbackTarget
	fallback.Key = "uploads/" + init.FileID + "/" + s.file.Name
	if fallback.Kind() == storage.KindS3Direct {
		return fallback, nil
	}
	return storage.Target{}, fmt.Errorf("init response carries no upload destination")
}

func (s *Session) initUpload() (*initResponse, error) {
	var resp initResponse
	err := s.tc.PostJSON(s.ctx, s.cfg.BaseURL+"/upload/init", initRequest{
		Filename:    s.file.Name,
		ContentType: s.file.ContentType,
		Size:        s.file.Size(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Session) completeUpload(fileID string) (*statusResponse, error) {
	var resp statusResponse
	err := s.tc.PostJSON(s.ctx, s.cfg.BaseURL+"/upload/complete", completeRequest{FileID: fileID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Session) fetchStatus(fileID string) (*statusResponse, error) {
	var resp statusResponse
	if err := s.tc.GetJSON(s.ctx, s.cfg.BaseURL+"/upload/status/"+fileID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// poll queries processing status on a fixed interval. The ticker is
// owned here and dies with the session context, so a superseded or
// cancelled session can never fire another query. Transient fetch
// failures model flaky connectivity: logged, then retried next tick.
func (s *Session) poll(fileID string) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if s.cfg.MaxPollDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxPollDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-deadline:
			s.fail(KindProcessing, fmt.Sprintf("processing did not finish within %s", s.cfg.MaxPollDuration), nil)
			return
		case <-ticker.C:
			// Cancellation wins over a tick that raced it.
			if s.ctx.Err() != nil {
				return
			}
			status, err := s.fetchStatus(fileID)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn("status poll failed, retrying next tick",
					zap.String("file_id", fileID),
					zap.Error(err))
				continue
			}
			switch status.Status {
			case StatusCompleted:
				s.finish()
				return
			case StatusFailed:
				s.fail(KindProcessing, status.failureDetail(), nil)
				return
			default:
				// uploading/processing/unknown: still in progress
			}
		}
	}
}

// finish transitions to Completed, then retrieves the manifest and the
// artifacts it names. Fetch failures degrade gracefully: the phase stays
// Completed and whatever was retrieved is published.
func (s *Session) finish() {
	if !s.transition(PhaseCompleted) {
		return
	}

	fileID := s.FileID()
	var resp artifactsResponse
	if err := s.tc.GetJSON(s.ctx, s.cfg.BaseURL+"/upload/artifacts/"+fileID, &resp); err != nil {
		s.recordFetchError("artifact manifest could not be retrieved", err)
		return
	}

	set, errs := s.fetcher.FetchSet(s.ctx, resp.manifest())
	for _, err := range errs {
		s.recordFetchError("one or more artifacts could not be retrieved", err)
	}
	if set.Empty() {
		return
	}

	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()
	if cancelled || s.ctx.Err() != nil {
		return
	}
	s.store.Replace(set)
	s.logger.Info("artifact set published",
		zap.String("file_id", fileID),
		zap.Bool("summary", set.Summary != nil),
		zap.Bool("graph", set.Graph != nil),
		zap.Bool("resource_usage", set.ResourceUsage != nil))
}

// recordFetchError notes a partial artifact failure without reverting
// the Completed phase.
func (s *Session) recordFetchError(detail string, err error) {
	s.mu.Lock()
	if !s.cancelled && s.lastErr == nil {
		s.lastErr = &SessionError{Kind: KindArtifactFetch, Phase: PhaseCompleted, Detail: detail, Err: err}
	}
	s.mu.Unlock()
	s.logger.Warn("artifact retrieval degraded", zap.String("detail", detail), zap.Error(err))
}
