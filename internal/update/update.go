// Package update checks for and installs newer chartfold releases.
package update

import (
	"context"
	"fmt"
	"runtime"

	"github.com/creativeprojects/go-selfupdate"
)

// GitHub repository the release binaries publish to.
const (
	repoOwner = "chartfold"
	repoName  = "chartfold"
)

// Release describes one published release.
type Release struct {
	Version     string
	ReleaseURL  string
	PublishedAt string
	Changelog   string
}

// CheckForUpdate reports the newest release when it is ahead of
// currentVersion.
func CheckForUpdate(currentVersion string) (*Release, bool, error) {
	_, latest, err := detectLatest()
	if err != nil {
		return nil, false, err
	}
	if latest == nil || latest.LessOrEqual(currentVersion) {
		return nil, false, nil
	}
	return newRelease(latest), true, nil
}

// Update replaces the running binary with the newest release. A nil
// Release without an error means the build was already current.
func Update(currentVersion string) (*Release, error) {
	updater, latest, err := detectLatest()
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("no releases found for %s/%s", repoOwner, repoName)
	}
	if latest.LessOrEqual(currentVersion) {
		return nil, nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	if err := updater.UpdateTo(context.Background(), latest, exe); err != nil {
		return nil, fmt.Errorf("install update: %w", err)
	}
	return newRelease(latest), nil
}

// GetPlatformInfo returns the os/arch pair of this build.
func GetPlatformInfo() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}

// detectLatest resolves the newest published release. A nil release with
// a nil error means the repository has no releases yet.
func detectLatest() (*selfupdate.Updater, *selfupdate.Release, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("create update source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return nil, nil, fmt.Errorf("create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(context.Background(), selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, nil, fmt.Errorf("detect latest version: %w", err)
	}
	if !found {
		return updater, nil, nil
	}
	return updater, latest, nil
}

func newRelease(latest *selfupdate.Release) *Release {
	return &Release{
		Version:     latest.Version(),
		ReleaseURL:  latest.URL,
		PublishedAt: latest.PublishedAt.Format("2006-01-02"),
		Changelog:   latest.ReleaseNotes,
	}
}
