// Package builds is the job orchestrator: it accepts a build request,
// assigns it an identity, writes the initial ledger record synchronously, and
// runs the acquire-then-package pipeline as a detached background task.
// Completion is communicated solely through the ledger; the submitting
// request never waits for the pipeline.
package builds

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/apkbuilder/internal/capacitor"
	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
	"git.home.luguber.info/inful/apkbuilder/internal/events"
	"git.home.luguber.info/inful/apkbuilder/internal/eventstore"
	"git.home.luguber.info/inful/apkbuilder/internal/git"
	"git.home.luguber.info/inful/apkbuilder/internal/ledger"
	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
	"git.home.luguber.info/inful/apkbuilder/internal/metrics"
	"git.home.luguber.info/inful/apkbuilder/internal/workspace"
)

// Request is a validated build submission.
type Request struct {
	URL      string
	Name     string
	Version  string
	ClientIP string
	// BaseURL is the externally visible server root for download locators,
	// derived from the submitting request.
	BaseURL string
}

// Acquirer materializes a remote source tree into the build workspace.
type Acquirer interface {
	Acquire(ctx context.Context, repoURL string, ws *workspace.Workspace, notify func(git.Strategy)) (string, error)
}

// Packager turns a source tree into an installable artifact.
type Packager interface {
	Build(ctx context.Context, sourceRoot, appName, appVersion string, ws *workspace.Workspace, baseURL string) (*capacitor.Artifact, error)
}

// Options configures a Service.
type Options struct {
	AllowedHost string
	TempDir     string
	DataDir     string
	Workers     int
	Journal     eventstore.Store
	Publisher   *events.Publisher
	Metrics     metrics.Recorder
}

// Service orchestrates build pipelines.
type Service struct {
	ledger      *ledger.Ledger
	acquirer    Acquirer
	packager    Packager
	journal     eventstore.Store
	publisher   *events.Publisher
	metrics     metrics.Recorder
	allowedHost string
	tempDir     string
	dataDir     string

	slots   chan struct{}
	workers WorkerGroup
	active  atomic.Int64
}

// NewService creates the orchestrator.
func NewService(l *ledger.Ledger, acquirer Acquirer, packager Packager, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Journal == nil {
		opts.Journal = eventstore.NoopStore{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	return &Service{
		ledger:      l,
		acquirer:    acquirer,
		packager:    packager,
		journal:     opts.Journal,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		allowedHost: opts.AllowedHost,
		tempDir:     opts.TempDir,
		dataDir:     opts.DataDir,
		slots:       make(chan struct{}, opts.Workers),
	}
}

// ValidateSourceURL checks that raw names a repository on the allowed hosting
// domain. Rejections happen synchronously, before any ledger entry exists.
func ValidateSourceURL(raw, allowedHost string) error {
	if raw == "" {
		return apkerrors.ValidationError("url parameter is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apkerrors.ValidationError("url parameter is not a valid URL")
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != allowedHost {
		return apkerrors.ValidationError(fmt.Sprintf("url must reference %s", allowedHost))
	}
	return nil
}

// Submit validates the request, writes the initial processing record, and
// detaches the pipeline. It returns the created record; the caller responds
// immediately without waiting for any later transition.
func (s *Service) Submit(req Request) (ledger.Record, error) {
	if err := ValidateSourceURL(req.URL, s.allowedHost); err != nil {
		return ledger.Record{}, err
	}

	rec := ledger.Record{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Name:      req.Name,
		Version:   req.Version,
		Status:    ledger.StatusProcessing,
		Message:   "Starting build process",
		Timestamp: time.Now().UTC().Format(ledger.TimestampFormat),
		IP:        req.ClientIP,
	}

	// The record must exist before the response is sent so a status query
	// can never race ahead of it.
	if err := s.ledger.Append(rec); err != nil {
		return ledger.Record{}, apkerrors.Wrap(err, apkerrors.CategoryInternal, "failed to record build")
	}
	s.recordTransition(rec.ID, rec.Status, rec.Message)

	if !s.workers.Go(func() { s.runPipeline(rec, req.BaseURL) }) {
		s.fail(rec.ID, apkerrors.InternalError("server is shutting down"))
	}

	slog.Info("Build accepted",
		logfields.BuildID(rec.ID), logfields.URL(req.URL),
		logfields.Name(req.Name), logfields.Version(req.Version))
	return rec, nil
}

// Shutdown stops accepting pipelines and waits for in-flight ones, bounded by
// ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.workers.StopAndWait(ctx)
}

// ActiveBuilds returns the number of pipelines currently holding a slot.
func (s *Service) ActiveBuilds() int { return int(s.active.Load()) }

// runPipeline executes acquire then package for one build. It runs to
// completion or failure; there is no cancellation once started.
func (s *Service) runPipeline(rec ledger.Record, baseURL string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Build pipeline panic", logfields.BuildID(rec.ID), slog.Any("panic", r))
			s.fail(rec.ID, fmt.Errorf("internal pipeline failure: %v", r))
		}
	}()

	// Wait for a worker slot; the record sits in processing until one frees.
	s.slots <- struct{}{}
	defer func() { <-s.slots; s.metrics.SetActiveBuilds(int(s.active.Add(-1))) }()
	s.metrics.SetActiveBuilds(int(s.active.Add(1)))

	start := time.Now()
	ctx := context.Background()

	ws := workspace.New(s.tempDir, s.dataDir, rec.ID)
	if err := ws.Prepare(); err != nil {
		s.fail(rec.ID, err)
		return
	}
	// Clone path and archive are removed on success and failure alike.
	defer ws.CleanupEphemeral()

	sourceRoot, err := s.acquirer.Acquire(ctx, rec.URL, ws, func(strategy git.Strategy) {
		switch strategy {
		case git.StrategyClone:
			s.transition(rec.ID, ledger.StatusCloning, "Cloning repository")
		case git.StrategySnapshot:
			s.transition(rec.ID, ledger.StatusDownloading, "Downloading repository snapshot")
		}
	})
	if err != nil {
		s.fail(rec.ID, apkerrors.Wrap(err, apkerrors.CategoryAcquisition, "failed to acquire repository"))
		return
	}

	s.transition(rec.ID, ledger.StatusBuilding, "Building APK")

	artifact, err := s.packager.Build(ctx, sourceRoot, rec.Name, rec.Version, ws, baseURL)
	if err != nil {
		s.fail(rec.ID, err)
		return
	}

	s.succeed(rec.ID, artifact)
	s.metrics.ObserveBuildDuration(time.Since(start))
	slog.Info("Build succeeded",
		logfields.BuildID(rec.ID),
		slog.String("filename", artifact.Filename),
		slog.Int64("size_bytes", artifact.Size),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

// transition records a non-terminal state change.
func (s *Service) transition(id string, status ledger.Status, message string) {
	if err := s.ledger.Update(id, func(r *ledger.Record) {
		r.Status = status
		r.Message = message
	}); err != nil {
		slog.Warn("Failed to persist transition", logfields.BuildID(id), logfields.Error(err))
	}
	s.recordTransition(id, status, message)
	slog.Debug("Build transition", logfields.BuildID(id), logfields.Status(string(status)))
}

// succeed records the terminal success state with artifact metadata.
func (s *Service) succeed(id string, artifact *capacitor.Artifact) {
	if err := s.ledger.Update(id, func(r *ledger.Record) {
		r.Status = ledger.StatusSucceeded
		r.Message = "Build succeeded"
		r.DownloadURL = artifact.DownloadURL
		r.Filename = artifact.Filename
		r.APKSize = artifact.Size
	}); err != nil {
		slog.Warn("Failed to persist success", logfields.BuildID(id), logfields.Error(err))
	}
	s.recordTransition(id, ledger.StatusSucceeded, "Build succeeded")
	s.metrics.IncBuildOutcome(string(ledger.StatusSucceeded))
}

// fail records the terminal failure state, preserving the error message
// verbatim so it is observable via the status surface.
func (s *Service) fail(id string, err error) {
	message := err.Error()
	if uerr := s.ledger.Update(id, func(r *ledger.Record) {
		r.Status = ledger.StatusFailed
		r.Message = message
	}); uerr != nil {
		slog.Warn("Failed to persist failure", logfields.BuildID(id), logfields.Error(uerr))
	}
	s.recordTransition(id, ledger.StatusFailed, message)
	s.metrics.IncBuildOutcome(string(ledger.StatusFailed))
	slog.Warn("Build failed", logfields.BuildID(id), logfields.Error(err))
}

// recordTransition mirrors a state change into the journal and the event
// publisher. Both are best-effort.
func (s *Service) recordTransition(id string, status ledger.Status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.Append(ctx, id, string(status), message); err != nil {
		slog.Warn("Failed to journal transition", logfields.BuildID(id), logfields.Error(err))
	}
	s.publisher.Publish(id, string(status), message)
}
