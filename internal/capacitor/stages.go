package capacitor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
)

// entryPointFile must exist at the web content root for the source to be a
// valid static site.
const entryPointFile = "index.html"

// copyTree copies the source tree into dest, skipping version-control
// metadata. Symlinks are skipped: the content root is handed to external
// tools and must not point outside the workspace.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// checkEntryPoint verifies the content root holds the required entry point.
// Its absence is a user-facing failure, not a generic I/O error.
func checkEntryPoint(wwwDir string) error {
	if _, err := os.Stat(filepath.Join(wwwDir, entryPointFile)); err != nil {
		if os.IsNotExist(err) {
			return apkerrors.New(apkerrors.CategoryEntryPoint,
				fmt.Sprintf("%s not found in repository", entryPointFile))
		}
		return fmt.Errorf("failed to check for %s: %w", entryPointFile, err)
	}
	return nil
}

// packageManifest is the minimal project descriptor declaring the packaging
// toolchain as a dependency.
type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Private      bool              `json:"private"`
	Dependencies map[string]string `json:"dependencies"`
}

// writePackageManifest generates package.json in the project root.
func writePackageManifest(outputDir, appName, appVersion string) error {
	manifest := packageManifest{
		Name:    NormalizeIdentifier(appName),
		Version: appVersion,
		Private: true,
		Dependencies: map[string]string{
			"@capacitor/core":    "^5.0.0",
			"@capacitor/cli":     "^5.0.0",
			"@capacitor/android": "^5.0.0",
		},
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal package.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "package.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write package.json: %w", err)
	}
	return nil
}

// updateCapacitorConfig rewrites the toolchain config generated by `cap init`
// with the final identifiers and version.
func updateCapacitorConfig(outputDir, appName, appVersion string) error {
	configPath := filepath.Join(outputDir, "capacitor.config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read capacitor config: %w", err)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse capacitor config: %w", err)
	}
	cfg["appId"] = AppID(appName)
	cfg["appName"] = appName
	cfg["version"] = appVersion

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal capacitor config: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write capacitor config: %w", err)
	}
	return nil
}
