// Package updater provides self-update from GitHub releases.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	githubRepo      = "hochfrequenz/recipe-build-orchestrator"
	releaseAPIURL   = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	releaseBaseURL  = "https://github.com/" + githubRepo + "/releases/download"
	binaryName      = "recipe-orch"
	checkTimeout    = 10 * time.Second
	downloadTimeout = 5 * time.Minute
)

type release struct {
	TagName string `json:"tag_name"`
}

// LatestVersion fetches the latest release tag from GitHub
func LatestVersion() (string, error) {
	client := &http.Client{Timeout: checkTimeout}

	resp, err := client.Get(releaseAPIURL)
	if err != nil {
		return "", fmt.Errorf("checking for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", fmt.Errorf("parsing release info: %w", err)
	}
	return rel.TagName, nil
}

// NeedsUpdate reports whether latest is newer than current. Versions
// are "vX.Y.Z" or "X.Y.Z"; a "dev" build always wants the update.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" {
		return latest != "dev"
	}

	cur, lat := parseVersion(current), parseVersion(latest)
	for i := 0; i < 3; i++ {
		if lat[i] != cur[i] {
			return lat[i] > cur[i]
		}
	}
	return false
}

func parseVersion(v string) [3]int {
	var parts [3]int
	fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])
	return parts
}

// SelfUpdate downloads the release archive for the current platform and
// replaces the running binary.
func SelfUpdate(targetVersion string) error {
	versionNum := strings.TrimPrefix(targetVersion, "v")
	archiveName := fmt.Sprintf("%s_%s_%s_%s.tar.gz", binaryName, versionNum, runtime.GOOS, runtime.GOARCH)
	url := fmt.Sprintf("%s/%s/%s", releaseBaseURL, targetVersion, archiveName)

	tmpDir, err := os.MkdirTemp("", binaryName+"-update-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, archiveName)
	if err := download(url, archivePath); err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}

	if err := extractBinary(archivePath, tmpDir); err != nil {
		return fmt.Errorf("extracting update: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}

	return replaceBinary(exe, filepath.Join(tmpDir, binaryName))
}

func download(url, dest string) error {
	client := &http.Client{Timeout: downloadTimeout}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractBinary pulls the binary out of the tar.gz archive, wherever it
// sits inside it.
func extractBinary(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if filepath.Base(header.Name) != binaryName || header.Typeflag != tar.TypeReg {
			continue
		}

		out, err := os.OpenFile(filepath.Join(destDir, binaryName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, tr)
		return err
	}
	return fmt.Errorf("binary %s not found in archive", binaryName)
}

// replaceBinary swaps the running executable, keeping a .old backup so
// a botched update can be rolled back by hand.
func replaceBinary(currentPath, newPath string) error {
	info, err := os.Stat(currentPath)
	if err != nil {
		return err
	}

	backupPath := currentPath + ".old"
	os.Remove(backupPath)

	if err := os.Rename(currentPath, backupPath); err != nil {
		return err
	}
	if err := copyFile(newPath, currentPath, info.Mode()); err != nil {
		// put the old binary back
		os.Rename(backupPath, currentPath)
		return err
	}
	os.Remove(backupPath)
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
