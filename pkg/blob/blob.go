package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/metrics"
	"github.com/cuemby/isvactl/pkg/result"
	"github.com/cuemby/isvactl/pkg/types"
)

const (
	// SharedVolumePath is the root of the shared volume
	SharedVolumePath = "/shared_volume"
	// DownloadsPath is the root of the appliance file downloads
	DownloadsPath = "/isam/downloads"
)

// Categories are the shared volume directories that can be transferred
var Categories = []string{"fixpacks", "snapshots", "support"}

// Transfer directions, used as the metrics direction label
const (
	DirectionDownload = "download"
	DirectionUpload   = "upload"
	DirectionFetch    = "fetch"
)

// File states reported in transfer diffs
const (
	StateAbsent = "absent"
	StateFile   = "file"
)

// CheckCategory rejects shared volume categories outside Categories
func CheckCategory(category string) error {
	for _, c := range Categories {
		if c == category {
			return nil
		}
	}
	return isvaerr.Validation("invalid path %q provided, expected one of %v", category, Categories)
}

// Manager transfers files between the appliance and a local filesystem
type Manager struct {
	client client.ApplianceClient
	fs     afero.Fs
	logger zerolog.Logger
}

// NewManager creates a transfer manager writing to fs
func NewManager(c client.ApplianceClient, fs afero.Fs, logger zerolog.Logger) *Manager {
	return &Manager{client: c, fs: fs, logger: logger}
}

// DownloadRequest names a shared volume file and its local destination
type DownloadRequest struct {
	Category string
	Name     string
	Dest     string
}

// UploadRequest names a local file and its shared volume target. Name
// defaults to the base name of Src.
type UploadRequest struct {
	Category  string
	Name      string
	Src       string
	Overwrite bool
}

// FetchRequest names a file of the downloads area and its destination
type FetchRequest struct {
	Path string
	Dest string
}

// ListSharedVolumes returns the recursive listing of one category, or of
// the whole shared volume when category is empty
func (m *Manager) ListSharedVolumes(ctx context.Context, category string) ([]Entry, error) {
	target := SharedVolumePath
	if category != "" {
		if err := CheckCategory(category); err != nil {
			return nil, err
		}
		target = SharedVolumePath + "/" + category
	}
	return m.list(ctx, target)
}

// ListDownloads returns the recursive listing of the downloads area
func (m *Manager) ListDownloads(ctx context.Context) ([]Entry, error) {
	return m.list(ctx, DownloadsPath)
}

func (m *Manager) list(ctx context.Context, target string) ([]Entry, error) {
	resp, err := m.client.Send(ctx, target+"?recursive=true", http.MethodGet, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, isvaerr.AppStatus(resp.Code, resp.Contents)
	}
	return ParseListing(resp.Contents)
}

func (m *Manager) sharedIndex(ctx context.Context) (Index, error) {
	entries, err := m.ListSharedVolumes(ctx, "")
	if err != nil {
		return nil, err
	}
	return BuildIndex("", entries), nil
}

// DownloadShared downloads shared volume files. A file is skipped when the
// local copy already has the remote checksum, and every transferred file is
// verified against it. With dryRun nothing is transferred.
func (m *Manager) DownloadShared(ctx context.Context, reqs []DownloadRequest, dryRun bool) (types.Result, error) {
	for _, r := range reqs {
		if err := CheckCategory(r.Category); err != nil {
			return types.Result{}, err
		}
	}

	idx, err := m.sharedIndex(ctx)
	if err != nil {
		return types.Result{}, err
	}

	var before, after []any
	changed := false
	for _, r := range reqs {
		state, err := m.downloadShared(ctx, idx, r, dryRun)
		if err != nil {
			metrics.BlobTransfersTotal.WithLabelValues(DirectionDownload, metrics.OutcomeFailed).Inc()
			return types.Result{}, err
		}
		transferred := state == StateAbsent
		metrics.BlobTransfersTotal.WithLabelValues(DirectionDownload, outcome(transferred)).Inc()
		changed = changed || transferred
		before = append(before, fileState(r.Dest, state))
		after = append(after, fileState(r.Dest, StateFile))
	}
	return transferResult(changed, before, after, nil), nil
}

// downloadShared returns StateFile when the destination was already up to
// date and StateAbsent when it had to be transferred
func (m *Manager) downloadShared(ctx context.Context, idx Index, r DownloadRequest, dryRun bool) (string, error) {
	remote := path.Join(r.Category, r.Name)
	entry, ok := idx.Lookup(remote)
	if !ok || entry.IsDir() {
		return "", isvaerr.Validation("the requested file does not exist %s", remote)
	}
	if entry.SHA256 == "" {
		return "", isvaerr.Mapping("listing of %s carries no sha256", remote)
	}

	have, exists, err := m.checksum(r.Dest)
	if err != nil {
		return "", err
	}
	if exists && have == entry.SHA256 {
		m.logger.Debug().Str("file", remote).Msg("local copy is up to date")
		return StateFile, nil
	}
	if dryRun {
		m.logger.Info().Str("file", remote).Str("dest", r.Dest).Msg("dry run, skipping download")
		return StateAbsent, nil
	}

	dir := filepath.Dir(r.Dest)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := m.download(ctx, fmt.Sprintf("%s/%s?type=File&export", SharedVolumePath, remote), dir, r.Dest, map[string]string{})
	if err != nil {
		return "", err
	}
	defer func() { _ = m.fs.Remove(tmp) }()

	got, _, err := m.checksum(tmp)
	if err != nil {
		return "", err
	}
	if got != entry.SHA256 {
		return "", isvaerr.Integrity("the downloaded file checksum doesn't match the remote one: %s - %s", entry.SHA256, got)
	}
	if err := m.fs.Rename(tmp, r.Dest); err != nil {
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	m.logger.Info().Str("file", remote).Str("dest", r.Dest).Msg("downloaded shared volume file")
	return StateAbsent, nil
}

// UploadShared uploads local files to the shared volume. A file whose
// remote checksum already matches is skipped; a differing remote file is
// only replaced when Overwrite is set, otherwise a warning is reported.
func (m *Manager) UploadShared(ctx context.Context, reqs []UploadRequest, dryRun bool) (types.Result, error) {
	for _, r := range reqs {
		if err := CheckCategory(r.Category); err != nil {
			return types.Result{}, err
		}
		if ok, err := afero.Exists(m.fs, r.Src); err != nil || !ok {
			return types.Result{}, isvaerr.Validation("the source file is not valid %s", r.Src)
		}
	}

	idx, err := m.sharedIndex(ctx)
	if err != nil {
		return types.Result{}, err
	}

	var before, after []any
	var warnings []string
	changed := false
	for _, r := range reqs {
		name := r.Name
		if name == "" {
			name = filepath.Base(r.Src)
		}
		remote := path.Join(r.Category, name)

		state, warning, err := m.uploadShared(ctx, idx, r, remote, dryRun)
		if err != nil {
			metrics.BlobTransfersTotal.WithLabelValues(DirectionUpload, metrics.OutcomeFailed).Inc()
			return types.Result{}, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		transferred := state != "" && warning == ""
		metrics.BlobTransfersTotal.WithLabelValues(DirectionUpload, outcome(transferred)).Inc()
		changed = changed || transferred

		before = append(before, fileState(remote, beforeState(idx, remote)))
		after = append(after, fileState(remote, StateFile))
	}
	return transferResult(changed, before, after, warnings), nil
}

// uploadShared returns the state the remote file had before a transfer, or
// "" when nothing was sent
func (m *Manager) uploadShared(ctx context.Context, idx Index, r UploadRequest, remote string, dryRun bool) (string, string, error) {
	local, _, err := m.checksum(r.Src)
	if err != nil {
		return "", "", err
	}

	state := StateAbsent
	if entry, ok := idx.Lookup(remote); ok {
		if entry.SHA256 == local {
			m.logger.Debug().Str("file", remote).Msg("remote copy is up to date")
			return "", "", nil
		}
		if !r.Overwrite {
			return "", fmt.Sprintf("%s differs from %s on the appliance and overwrite is not set", r.Src, remote), nil
		}
		state = StateFile
	}
	if dryRun {
		m.logger.Info().Str("file", remote).Str("src", r.Src).Msg("dry run, skipping upload")
		return state, "", nil
	}

	f, err := m.fs.Open(r.Src)
	if err != nil {
		return "", "", fmt.Errorf("failed to open %s: %w", r.Src, err)
	}
	defer f.Close()

	target := SharedVolumePath + "/" + remote
	resp, err := m.client.Upload(ctx, target,
		map[string]string{"force": strconv.FormatBool(r.Overwrite)},
		client.FilePart{Field: "file", Filename: path.Base(remote), Content: f})
	if err != nil {
		return "", "", err
	}
	if resp.Code != http.StatusOK {
		return "", "", isvaerr.WriteRejected(http.MethodPost, target, resp.Code, resp.Contents)
	}

	// the listing is the only place the appliance reports checksums
	fresh, err := m.sharedIndex(ctx)
	if err != nil {
		return "", "", err
	}
	entry, ok := fresh.Lookup(remote)
	if !ok || entry.SHA256 != local {
		return "", "", isvaerr.Integrity("the uploaded file checksum doesn't match the local one: %s - %s", local, entry.SHA256)
	}

	m.logger.Info().Str("file", remote).Str("src", r.Src).Msg("uploaded shared volume file")
	return state, "", nil
}

func beforeState(idx Index, remote string) string {
	if _, ok := idx.Lookup(remote); ok {
		return StateFile
	}
	return StateAbsent
}

// FetchDownloads copies files from the downloads area. The appliance
// publishes no checksum there, so each file is fetched to a temporary
// location and only copied over the destination when the contents differ.
// With dryRun the destination is never written.
func (m *Manager) FetchDownloads(ctx context.Context, reqs []FetchRequest, dryRun bool) (types.Result, error) {
	entries, err := m.ListDownloads(ctx)
	if err != nil {
		return types.Result{}, err
	}
	idx := BuildIndex("", entries)

	var before, after []any
	changed := false
	for _, r := range reqs {
		differs, err := m.fetch(ctx, idx, r, dryRun)
		if err != nil {
			metrics.BlobTransfersTotal.WithLabelValues(DirectionFetch, metrics.OutcomeFailed).Inc()
			return types.Result{}, err
		}
		metrics.BlobTransfersTotal.WithLabelValues(DirectionFetch, outcome(differs)).Inc()
		changed = changed || differs

		state := StateFile
		if differs {
			state = StateAbsent
		}
		before = append(before, fileState(r.Dest, state))
		after = append(after, fileState(r.Dest, StateFile))
	}
	return transferResult(changed, before, after, nil), nil
}

func (m *Manager) fetch(ctx context.Context, idx Index, r FetchRequest, dryRun bool) (bool, error) {
	entry, ok := idx.Lookup(r.Path)
	if !ok || entry.IsDir() {
		return false, isvaerr.Validation("the requested file does not exist %s", r.Path)
	}

	// the temporary copy lives outside the destination tree so a dry run
	// leaves it untouched
	tmp, err := m.download(ctx, DownloadsPath+"/"+path.Clean("/" + r.Path)[1:], "", r.Dest, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = m.fs.Remove(tmp) }()

	same, err := m.identical(tmp, r.Dest)
	if err != nil || same {
		return false, err
	}
	if dryRun {
		m.logger.Info().Str("file", r.Path).Str("dest", r.Dest).Msg("dry run, destination left untouched")
		return true, nil
	}

	src, err := m.fs.Open(tmp)
	if err != nil {
		return false, fmt.Errorf("failed to open download: %w", err)
	}
	defer src.Close()
	if err := afero.WriteReader(m.fs, r.Dest, src); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", r.Dest, err)
	}

	m.logger.Info().Str("file", r.Path).Str("dest", r.Dest).Msg("fetched download")
	return true, nil
}

// download streams remote into a temporary file in dir, or in the
// filesystem's temporary directory when dir is empty, and returns its name.
// dest only names the temporary file.
func (m *Manager) download(ctx context.Context, remote, dir, dest string, headers map[string]string) (string, error) {
	f, err := afero.TempFile(m.fs, dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := f.Name()

	ok, err := m.client.DownloadFile(ctx, remote, f, headers)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write temporary file: %w", cerr)
	}
	if err == nil && !ok {
		err = isvaerr.AppStatus(http.StatusNotFound, fmt.Sprintf("couldn't download the file %s", remote))
	}
	if err != nil {
		_ = m.fs.Remove(name)
		return "", err
	}
	return name, nil
}

// checksum returns the hex SHA-256 of a local file and whether it exists
func (m *Manager) checksum(name string) (string, bool, error) {
	f, err := m.fs.Open(name)
	if err != nil {
		if ok, _ := afero.Exists(m.fs, name); !ok {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", true, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), true, nil
}

func (m *Manager) identical(a, b string) (bool, error) {
	ha, _, err := m.checksum(a)
	if err != nil {
		return false, err
	}
	hb, exists, err := m.checksum(b)
	if err != nil || !exists {
		return false, err
	}
	return ha == hb, nil
}

func fileState(p, state string) map[string]any {
	return map[string]any{"path": p, "state": state}
}

func transferResult(changed bool, before, after []any, warnings []string) types.Result {
	if before == nil {
		before = []any{}
	}
	if after == nil {
		after = []any{}
	}
	return result.Assemble(changed, types.Record{"files": before}, types.Record{"files": after}, warnings)
}

func outcome(transferred bool) string {
	if transferred {
		return metrics.OutcomeChanged
	}
	return metrics.OutcomeUnchanged
}
