// Package capacitor drives the external packaging toolchain (npm, the
// Capacitor CLI, gradle) through a fixed stage sequence to turn a static
// website tree into an installable APK.
package capacitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
	"git.home.luguber.info/inful/apkbuilder/internal/metrics"
	"git.home.luguber.info/inful/apkbuilder/internal/workspace"
)

// Stage names, used in logs, metrics, and tool-failure messages.
const (
	StagePrepare    = "prepare"
	StageEntryPoint = "entrypoint"
	StageManifest   = "manifest"
	StageNPMInstall = "npm_install"
	StageCapInit    = "cap_init"
	StageCapAdd     = "cap_add"
	StageCapSync    = "cap_sync"
	StageGradle     = "gradle"
	StageCollect    = "collect"
)

// Artifact describes the produced binary.
type Artifact struct {
	Path        string
	Filename    string
	Size        int64
	DownloadURL string
}

// Builder runs the packaging stage sequence. Any stage failure aborts the
// whole operation and propagates upward; there is no partial retry.
type Builder struct {
	runner  CommandRunner
	metrics metrics.Recorder
}

// NewBuilder creates a builder using the given command runner. A nil recorder
// falls back to the noop implementation.
func NewBuilder(runner CommandRunner, rec metrics.Recorder) *Builder {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Builder{runner: runner, metrics: rec}
}

// Build packages the source tree into an APK inside the build workspace and
// returns the artifact metadata. baseURL is the externally visible server
// root used to construct the download locator.
func (b *Builder) Build(ctx context.Context, sourceRoot, appName, appVersion string, ws *workspace.Workspace, baseURL string) (*Artifact, error) {
	out := ws.OutputDir()
	www := ws.WWWDir()

	err := b.stage(ws.BuildID(), StagePrepare, func() error {
		if err := os.MkdirAll(www, 0o750); err != nil {
			return fmt.Errorf("failed to create content root: %w", err)
		}
		return copyTree(sourceRoot, www)
	})
	if err != nil {
		return nil, err
	}

	if err := b.stage(ws.BuildID(), StageEntryPoint, func() error {
		return checkEntryPoint(www)
	}); err != nil {
		return nil, err
	}

	if err := b.stage(ws.BuildID(), StageManifest, func() error {
		return writePackageManifest(out, appName, appVersion)
	}); err != nil {
		return nil, err
	}

	toolStages := []struct {
		name string
		run  func() error
	}{
		{StageNPMInstall, func() error {
			return b.runner.Run(ctx, out, "npm", "install", "--silent")
		}},
		{StageCapInit, func() error {
			if err := b.runner.Run(ctx, out, "npx", "cap", "init", appName, AppID(appName), "--web-dir=www"); err != nil {
				return err
			}
			return updateCapacitorConfig(out, appName, appVersion)
		}},
		{StageCapAdd, func() error {
			return b.runner.Run(ctx, out, "npx", "cap", "add", "android")
		}},
		{StageCapSync, func() error {
			return b.runner.Run(ctx, out, "npx", "cap", "sync", "android")
		}},
		{StageGradle, func() error {
			return b.assembleDebug(ctx, ws.AndroidDir())
		}},
	}
	for _, st := range toolStages {
		if err := b.stage(ws.BuildID(), st.name, st.run); err != nil {
			return nil, apkerrors.Wrap(err, apkerrors.CategoryTool, fmt.Sprintf("stage %s failed", st.name))
		}
	}

	var artifact *Artifact
	err = b.stage(ws.BuildID(), StageCollect, func() error {
		var cerr error
		artifact, cerr = b.collect(ws, appName, appVersion, baseURL)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// stage runs one pipeline stage with logging and duration metrics.
func (b *Builder) stage(buildID, name string, fn func() error) error {
	slog.Debug("Running build stage", logfields.BuildID(buildID), logfields.Stage(name))
	start := time.Now()
	err := fn()
	b.metrics.ObserveStageDuration(name, time.Since(start))
	if err != nil {
		slog.Warn("Build stage failed", logfields.BuildID(buildID), logfields.Stage(name), logfields.Error(err))
	}
	return err
}

// assembleDebug invokes the native toolchain's debug-assembly command.
func (b *Builder) assembleDebug(ctx context.Context, androidDir string) error {
	if runtime.GOOS == "windows" {
		return b.runner.Run(ctx, androidDir, "gradlew", "assembleDebug", "--quiet")
	}
	if err := os.Chmod(filepath.Join(androidDir, "gradlew"), 0o755); err != nil {
		return fmt.Errorf("failed to make gradlew executable: %w", err)
	}
	return b.runner.Run(ctx, androidDir, "./gradlew", "assembleDebug", "--quiet")
}

// collect locates the produced APK, renames it to its stable name, and
// computes the artifact metadata.
func (b *Builder) collect(ws *workspace.Workspace, appName, appVersion, baseURL string) (*Artifact, error) {
	debugDir := filepath.Join(ws.AndroidDir(), "app", "build", "outputs", "apk", "debug")
	entries, err := os.ReadDir(debugDir)
	if err != nil {
		return nil, apkerrors.Wrap(err, apkerrors.CategoryArtifact, "APK output directory missing after build")
	}

	var produced string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".apk") {
			produced = filepath.Join(debugDir, e.Name())
			break
		}
	}
	if produced == "" {
		return nil, apkerrors.New(apkerrors.CategoryArtifact, "APK not found after build")
	}

	filename := ArtifactFilename(appName, appVersion)
	finalPath := filepath.Join(ws.OutputDir(), filename)
	if err := copyFile(produced, finalPath); err != nil {
		return nil, fmt.Errorf("failed to place artifact: %w", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return &Artifact{
		Path:        finalPath,
		Filename:    filename,
		Size:        info.Size(),
		DownloadURL: fmt.Sprintf("%s/download/%s/%s", strings.TrimRight(baseURL, "/"), ws.BuildID(), filename),
	}, nil
}
