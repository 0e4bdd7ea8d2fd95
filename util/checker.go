package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/google/go-github/v63/github"
	"golang.org/x/mod/semver"
)

const (
	githubOwner = "dixieflatline76"
	githubRepo  = config.AppName
)

// CheckForUpdatesResult holds the outcome of the update check.
type CheckForUpdatesResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
}

// ReleaseFetcher returns the tag and page URL of the latest stable release.
type ReleaseFetcher func(ctx context.Context) (tag, url string, err error)

// GitHubReleases fetches the latest release of the project from GitHub.
func GitHubReleases(client *github.Client) ReleaseFetcher {
	return func(ctx context.Context) (string, string, error) {
		release, _, err := client.Repositories.GetLatestRelease(ctx, githubOwner, githubRepo)
		if err != nil {
			return "", "", err
		}
		return release.GetTagName(), release.GetHTMLURL(), nil
	}
}

// CheckForUpdates compares config.AppVersion with the latest published release.
func CheckForUpdates(ctx context.Context, fetch ReleaseFetcher) (*CheckForUpdatesResult, error) {
	if fetch == nil {
		fetch = GitHubReleases(github.NewClient(nil))
	}
	tag, url, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest GitHub release: %w", err)
	}

	current := canonicalVersion(config.AppVersion)
	latest := canonicalVersion(tag)
	if !semver.IsValid(latest) {
		return nil, fmt.Errorf("latest release tag %q is not a semantic version", tag)
	}

	return &CheckForUpdatesResult{
		UpdateAvailable: semver.Compare(latest, current) > 0,
		CurrentVersion:  current,
		LatestVersion:   latest,
		ReleaseURL:      url,
	}, nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
