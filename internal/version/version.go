package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags "-X ...version.Version=vX.Y.Z".
var Version = "v0.0.0"

const (
	defaultAPIURL = "https://api.github.com"
	checkTimeout  = 2 * time.Second
)

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// Checker asks GitHub for the latest release of a repository.
type Checker struct {
	client  *http.Client
	apiURL  string
	logger  *zap.Logger
	current string
}

func NewChecker(current string, logger *zap.Logger) *Checker {
	if current == "" {
		current = Version
	}
	return &Checker{
		client:  &http.Client{Timeout: checkTimeout},
		apiURL:  defaultAPIURL,
		logger:  logger,
		current: current,
	}
}

// Latest returns the tag of the newest release of repository ("owner/name").
func (c *Checker) Latest(ctx context.Context, repository string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(c.apiURL, "/"), repository)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup for %s: status %d", repository, resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("decoding release: %w", err)
	}
	return release.TagName, nil
}

// IsOutdated reports whether current is an older version than latest.
func IsOutdated(current, latest string) (bool, error) {
	cur, err := goversion.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("parsing current version %q: %w", current, err)
	}
	lat, err := goversion.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("parsing latest version %q: %w", latest, err)
	}
	return cur.LessThan(lat), nil
}

// Check logs a warning when a newer release exists. Lookup failures are only
// logged at debug level; an update check never blocks start-up.
func (c *Checker) Check(ctx context.Context, repository string) {
	latest, err := c.Latest(ctx, repository)
	if err != nil {
		c.logger.Debug("Update check failed", zap.Error(err))
		return
	}

	outdated, err := IsOutdated(c.current, latest)
	if err != nil {
		c.logger.Debug("Update check failed", zap.Error(err))
		return
	}

	if outdated {
		c.logger.Warn("You are running an outdated version",
			zap.String("current", c.current),
			zap.String("latest", latest))
	}
}
