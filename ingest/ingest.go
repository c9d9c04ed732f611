// Package ingest fetches the static archive (and its station-transfer side
// feeds) and loads it into a store.Store, via a conditional-fetch-then-parse
// pipeline.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nationalrail/journeycore/parse"
	"github.com/nationalrail/journeycore/store"
)

// Sentinel file names left under CacheDir to record which stage aborted a
// previous run, so the next Run forces that stage even if the conditional
// fetch would otherwise skip it.
const (
	downloadSentinel = "download"
	parseSentinel    = "parse"
	archiveFile      = "static.zip"
	versionFile      = "feed-version"
)

// Ingestor conditionally downloads the static archive, extracts it, and
// reloads the Store from its contents.
type Ingestor struct {
	URL      string
	CacheDir string

	// StationTransferURL and PlacesURL are optional; when both are set,
	// Run also loads the station-transfer side feed (see sidefeed.go).
	StationTransferURL string
	PlacesURL          string

	Store store.Store

	Client *http.Client

	lastVersion string
}

// NewIngestor returns an Ingestor with a default 60s HTTP client timeout.
func NewIngestor(url, cacheDir string, s store.Store) *Ingestor {
	return &Ingestor{
		URL:      url,
		CacheDir: cacheDir,
		Store:    s,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Run conditionally fetches and extracts the static archive, then reloads
// the Store from it. On success all sentinels are cleared; on failure the
// sentinel for the stage that aborted is written.
func (in *Ingestor) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	archivePath := filepath.Join(in.CacheDir, archiveFile)

	needsDownload, err := in.needsDownload(ctx, archivePath)
	if err != nil {
		in.writeSentinel(downloadSentinel)
		return fmt.Errorf("checking freshness: %w", err)
	}

	if needsDownload {
		fmt.Println("ingest: downloading static archive")
		if err := in.download(ctx, archivePath); err != nil {
			in.writeSentinel(downloadSentinel)
			return fmt.Errorf("downloading static archive: %w", err)
		}
		in.clearSentinel(downloadSentinel)
	} else {
		fmt.Println("ingest: static archive is up to date")
	}

	buf, err := os.ReadFile(archivePath)
	if err != nil {
		in.writeSentinel(parseSentinel)
		return fmt.Errorf("reading archive: %w", err)
	}

	var metadata *parse.Metadata
	err = in.Store.ReloadStatic(ctx, func(w store.FeedWriter) error {
		var parseErr error
		metadata, parseErr = parse.ParseStatic(w, buf)
		if parseErr != nil {
			return parseErr
		}

		if in.StationTransferURL != "" && in.PlacesURL != "" {
			if err := in.loadTransfers(ctx, w, metadata.StopNumericIDs); err != nil {
				return fmt.Errorf("loading station transfers: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		in.writeSentinel(parseSentinel)
		return fmt.Errorf("parsing static archive: %w", err)
	}
	in.clearSentinel(parseSentinel)

	if err := in.Store.AssignEventIDs(); err != nil {
		return fmt.Errorf("assigning event ids: %w", err)
	}

	if err := os.WriteFile(filepath.Join(in.CacheDir, versionFile), []byte(metadata.FeedVersion), 0o644); err != nil {
		return fmt.Errorf("writing feed version: %w", err)
	}
	in.lastVersion = metadata.FeedVersion

	fmt.Printf(
		"ingest: loaded feed, version=%s timezone=%s calendar=[%s,%s]\n",
		metadata.FeedVersion, metadata.Timezone, metadata.CalendarStartDate, metadata.CalendarEndDate,
	)

	return nil
}

// FeedVersion returns the content hash of the most recently loaded static
// feed, for keying a timetable.Cache. It falls back to CacheDir's persisted
// version file when Run hasn't executed in this process (a warm restart
// against an already-populated store), and returns "" before any feed has
// ever been loaded.
func (in *Ingestor) FeedVersion() string {
	if in.lastVersion != "" {
		return in.lastVersion
	}

	data, err := os.ReadFile(filepath.Join(in.CacheDir, versionFile))
	if err != nil {
		return ""
	}
	return string(data)
}

// needsDownload decides whether the archive should be fetched again: the
// sentinels force a re-run regardless of freshness; otherwise a HEAD
// request's Last-Modified header is compared against the cached archive's
// mtime. A failure to parse the remote timestamp also forces a download.
func (in *Ingestor) needsDownload(ctx context.Context, archivePath string) (bool, error) {
	if in.sentinelPresent(downloadSentinel) || in.sentinelPresent(parseSentinel) {
		return true, nil
	}

	info, err := os.Stat(archivePath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat archive: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, in.URL, nil)
	if err != nil {
		return false, fmt.Errorf("building HEAD request: %w", err)
	}

	resp, err := in.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("issuing HEAD request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HEAD status %d", resp.StatusCode)
	}

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		return true, nil
	}

	remote, err := http.ParseTime(lastModified)
	if err != nil {
		return true, nil
	}

	return remote.After(info.ModTime()), nil
}

func (in *Ingestor) download(ctx context.Context, archivePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := in.Client.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	return nil
}

func (in *Ingestor) sentinelPresent(name string) bool {
	_, err := os.Stat(filepath.Join(in.CacheDir, name))
	return err == nil
}

func (in *Ingestor) writeSentinel(name string) {
	_ = os.WriteFile(filepath.Join(in.CacheDir, name), nil, 0o644)
}

func (in *Ingestor) clearSentinel(name string) {
	_ = os.Remove(filepath.Join(in.CacheDir, name))
}
