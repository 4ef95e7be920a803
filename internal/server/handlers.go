package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/apkbuilder/internal/builds"
	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
	"git.home.luguber.info/inful/apkbuilder/internal/eventstore"
	"git.home.luguber.info/inful/apkbuilder/internal/ledger"
	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
)

const defaultLogsLimit = 50

// Handlers holds the HTTP handlers over the orchestrator and the read
// surfaces. Status, download, and logs are pure reads and never block on
// pipeline completion.
type Handlers struct {
	service      *builds.Service
	ledger       *ledger.Ledger
	journal      eventstore.Store
	dataDir      string
	publicHost   string
	startTime    time.Time
	errorAdapter *apkerrors.HTTPErrorAdapter
}

// NewHandlers wires the handler set.
func NewHandlers(service *builds.Service, l *ledger.Ledger, journal eventstore.Store, dataDir, publicHost string) *Handlers {
	if journal == nil {
		journal = eventstore.NoopStore{}
	}
	return &Handlers{
		service:      service,
		ledger:       l,
		journal:      journal,
		dataDir:      dataDir,
		publicHost:   publicHost,
		startTime:    time.Now(),
		errorAdapter: apkerrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleSubmit accepts a build request. Validation failures return
// synchronously; an accepted request gets a 202 with the tracking identity
// before any pipeline work happens.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = "WebApp"
	}
	version := q.Get("version")
	if version == "" {
		version = "1.0.0"
	}

	baseURL := h.baseURL(r)
	rec, err := h.service.Submit(builds.Request{
		URL:      q.Get("url"),
		Name:     name,
		Version:  version,
		ClientIP: clientIP(r),
		BaseURL:  baseURL,
	})
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Success:     true,
		Message:     "Build in progress",
		BuildID:     rec.ID,
		URL:         rec.URL,
		Name:        rec.Name,
		Version:     rec.Version,
		Status:      string(rec.Status),
		CheckStatus: fmt.Sprintf("%s/status/%s", baseURL, rec.ID),
		DownloadURL: nil,
		Timestamp:   rec.Timestamp,
	})
}

// HandleStatus returns the full current record for a build id.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := h.ledger.Get(id)
	if !ok {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.NotFoundError("build id not found"))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Success: true, Data: rec})
}

// HandleDownload streams an artifact. The path is constructed from the id
// and filename only; the ledger is not consulted.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename := r.PathValue("filename")

	path := filepath.Join(h.dataDir, id, filename)
	// Path segments never contain separators with pattern routing, but the
	// artifact root boundary is enforced anyway.
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(h.dataDir)+string(os.PathSeparator)) {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.NotFoundError("file not found"))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.NotFoundError("file not found"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.NotFoundError("file not found"))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("Artifact download interrupted", logfields.BuildID(id), logfields.Error(err))
	}
}

// HandleLogs returns the total build count and the newest-first page bounded
// by the limit query parameter.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errorAdapter.WriteErrorResponse(w, r, apkerrors.ValidationError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	total, builds := h.ledger.List(limit)
	if builds == nil {
		builds = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Success: true, Data: LogsData{Total: total, Builds: builds}})
}

// HandleEvents returns the transition journal for a build.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	transitions, err := h.journal.ByBuild(r.Context(), id)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.Wrap(err, apkerrors.CategoryInternal, "failed to read transition journal"))
		return
	}
	if len(transitions) == 0 {
		h.errorAdapter.WriteErrorResponse(w, r, apkerrors.NotFoundError("build id not found"))
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{Success: true, Data: transitions})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Seconds(),
		ActiveBuilds: h.service.ActiveBuilds(),
	})
}

// baseURL derives the externally visible server root for locators.
func (h *Handlers) baseURL(r *http.Request) string {
	host := h.publicHost
	if host == "" {
		host = r.Host
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + host
}

// clientIP extracts the best-effort requester address, informational only.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to encode JSON response", logfields.Error(err))
	}
}
