package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/client/fake"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/types"
)

const sharedListing = SharedVolumePath + "?recursive=true"

func sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

func file(name, content string) map[string]any {
	return map[string]any{"name": name, "type": TypeFile, "sha256": sum(content), "size": len(content)}
}

func dir(name string, children ...map[string]any) map[string]any {
	list := make([]any, 0, len(children))
	for _, c := range children {
		list = append(list, c)
	}
	return map[string]any{"name": name, "type": TypeDirectory, "children": list}
}

func newManager(a *fake.Appliance) (*Manager, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewManager(a, fs, zerolog.Nop()), fs
}

func files(t *testing.T, rec types.Record) []any {
	t.Helper()
	list, ok := rec["files"].([]any)
	require.True(t, ok, "files is a list")
	return list
}

func TestCheckCategory(t *testing.T) {
	for _, c := range Categories {
		assert.NoError(t, CheckCategory(c))
	}
	for _, c := range []string{"", "etc", "../fixpacks", "Fixpacks"} {
		assert.True(t, isvaerr.Is(CheckCategory(c), isvaerr.KindValidation), c)
	}
}

func TestInvalidCategoryRejectedBeforeNetwork(t *testing.T) {
	a := fake.New()
	m, fs := newManager(a)
	require.NoError(t, afero.WriteFile(fs, "/src/fp1.fixpack", []byte("x"), 0o644))
	ctx := context.Background()

	_, err := m.ListSharedVolumes(ctx, "etc")
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	_, err = m.DownloadShared(ctx, []DownloadRequest{{Category: "etc", Name: "passwd", Dest: "/tmp/passwd"}}, false)
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	_, err = m.UploadShared(ctx, []UploadRequest{{Category: "etc", Src: "/src/fp1.fixpack"}}, false)
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	_, err = m.UploadShared(ctx, []UploadRequest{{Category: "fixpacks", Src: "/src/missing"}}, false)
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	assert.Empty(t, a.Calls)
}

func TestParseListing(t *testing.T) {
	tests := []struct {
		name     string
		contents any
		wantKeys []string
		wantErr  bool
	}{
		{
			name:     "list of directories",
			contents: []any{dir("fixpacks", file("fp1.fixpack", "a")), dir("snapshots")},
			wantKeys: []string{"fixpacks", "fixpacks/fp1.fixpack", "snapshots"},
		},
		{
			name:     "directory object with contents",
			contents: map[string]any{"name": "root", "type": TypeDirectory, "contents": []any{file("a.txt", "a")}},
			wantKeys: []string{"a.txt"},
		},
		{
			name:     "nested directories",
			contents: []any{dir("support", dir("2024", file("dump.zip", "z")))},
			wantKeys: []string{"support", "support/2024", "support/2024/dump.zip"},
		},
		{name: "entry without a name", contents: []any{map[string]any{"type": TypeFile}}, wantErr: true},
		{name: "scalar", contents: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParseListing(tt.contents)
			if tt.wantErr {
				assert.True(t, isvaerr.Is(err, isvaerr.KindMapping))
				return
			}
			require.NoError(t, err)

			idx := BuildIndex("", entries)
			keys := make([]string, 0, len(idx))
			for k := range idx {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
		})
	}
}

func TestIndexLookup(t *testing.T) {
	entries, err := ParseListing([]any{dir("fixpacks", file("fp1.fixpack", "abc"))})
	require.NoError(t, err)
	idx := BuildIndex("", entries)

	e, ok := idx.Lookup("/fixpacks/fp1.fixpack")
	require.True(t, ok)
	assert.Equal(t, sum("abc"), e.SHA256)
	assert.Equal(t, int64(3), e.Size)
	assert.False(t, e.IsDir())

	e, ok = idx.Lookup("fixpacks/")
	require.True(t, ok)
	assert.True(t, e.IsDir())
}

func TestDownloadShared(t *testing.T) {
	const content = "fixpack content"
	remote := SharedVolumePath + "/fixpacks/fp1.fixpack?type=File&export"
	req := []DownloadRequest{{Category: "fixpacks", Name: "fp1.fixpack", Dest: "/work/fp1.fixpack"}}

	a := fake.New().
		Respond(http.MethodGet, sharedListing, http.StatusOK, []any{dir("fixpacks", file("fp1.fixpack", content))}).
		File(remote, []byte(content))
	m, fs := newManager(a)
	ctx := context.Background()

	res, err := m.DownloadShared(ctx, req, true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, a.CallsTo(http.MethodGet, remote), "dry run never transfers")
	exists, _ := afero.Exists(fs, "/work/fp1.fixpack")
	assert.False(t, exists)

	res, err = m.DownloadShared(ctx, req, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []any{map[string]any{"path": "/work/fp1.fixpack", "state": StateAbsent}}, files(t, res.Diff.Before))
	assert.Equal(t, []any{map[string]any{"path": "/work/fp1.fixpack", "state": StateFile}}, files(t, res.Diff.After))

	data, err := afero.ReadFile(fs, "/work/fp1.fixpack")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	names, err := afero.ReadDir(fs, "/work")
	require.NoError(t, err)
	assert.Len(t, names, 1, "temporary files are cleaned up")

	res, err = m.DownloadShared(ctx, req, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, a.CallsTo(http.MethodGet, remote), 1, "matching local checksum skips the transfer")
}

func TestDownloadSharedChecksumMismatch(t *testing.T) {
	remote := SharedVolumePath + "/snapshots/isva.snapshot?type=File&export"
	a := fake.New().
		Respond(http.MethodGet, sharedListing, http.StatusOK, []any{dir("snapshots", file("isva.snapshot", "expected"))}).
		File(remote, []byte("corrupted"))
	m, fs := newManager(a)

	_, err := m.DownloadShared(context.Background(),
		[]DownloadRequest{{Category: "snapshots", Name: "isva.snapshot", Dest: "/work/isva.snapshot"}}, false)
	require.Error(t, err)
	assert.True(t, isvaerr.Is(err, isvaerr.KindIntegrity))

	exists, _ := afero.Exists(fs, "/work/isva.snapshot")
	assert.False(t, exists, "a file that fails verification is not kept")
}

func TestDownloadSharedMissingFile(t *testing.T) {
	a := fake.New().Respond(http.MethodGet, sharedListing, http.StatusOK, []any{dir("fixpacks")})
	m, _ := newManager(a)

	_, err := m.DownloadShared(context.Background(),
		[]DownloadRequest{{Category: "fixpacks", Name: "fp9.fixpack", Dest: "/work/fp9.fixpack"}}, false)
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))
	assert.Contains(t, err.Error(), "fixpacks/fp9.fixpack")
}

func TestListingFailure(t *testing.T) {
	a := fake.New().Respond(http.MethodGet, sharedListing, http.StatusInternalServerError, map[string]any{"message": "boom"})
	m, _ := newManager(a)

	_, err := m.ListSharedVolumes(context.Background(), "")
	assert.True(t, isvaerr.Is(err, isvaerr.KindAppStatus))
	assert.Equal(t, http.StatusInternalServerError, isvaerr.CodeOf(err))
}

// volume is a shared volume whose listing reflects uploads
type volume struct {
	files map[string]string
}

func (v *volume) install(a *fake.Appliance, corrupt bool) {
	a.Handle(http.MethodGet, sharedListing, func(fake.Call) (*client.Response, error) {
		children := make([]map[string]any, 0, len(v.files))
		for name, content := range v.files {
			children = append(children, file(name, content))
		}
		return &client.Response{Code: http.StatusOK, Contents: []any{dir("fixpacks", children...)}}, nil
	})
	a.Handle(http.MethodPost, SharedVolumePath+"/fixpacks/fp1.fixpack", func(call fake.Call) (*client.Response, error) {
		content := string(call.File)
		if corrupt {
			content += "!"
		}
		v.files["fp1.fixpack"] = content
		return &client.Response{Code: http.StatusOK, Contents: map[string]any{"message": "ok"}}, nil
	})
}

func TestUploadShared(t *testing.T) {
	const content = "new fixpack"
	upload := SharedVolumePath + "/fixpacks/fp1.fixpack"

	tests := []struct {
		name        string
		remote      map[string]string
		overwrite   bool
		dryRun      bool
		corrupt     bool
		wantChanged bool
		wantUpload  bool
		wantBefore  string
		wantWarning bool
		wantKind    isvaerr.Kind
	}{
		{name: "new file", remote: map[string]string{}, wantChanged: true, wantUpload: true, wantBefore: StateAbsent},
		{name: "remote checksum matches", remote: map[string]string{"fp1.fixpack": content}, wantBefore: StateFile},
		{name: "remote differs without overwrite", remote: map[string]string{"fp1.fixpack": "old"}, wantBefore: StateFile, wantWarning: true},
		{name: "remote differs with overwrite", remote: map[string]string{"fp1.fixpack": "old"}, overwrite: true, wantChanged: true, wantUpload: true, wantBefore: StateFile},
		{name: "dry run", remote: map[string]string{}, dryRun: true, wantChanged: true, wantBefore: StateAbsent},
		{name: "verification fails", remote: map[string]string{}, corrupt: true, wantKind: isvaerr.KindIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := fake.New()
			(&volume{files: tt.remote}).install(a, tt.corrupt)
			m, fs := newManager(a)
			require.NoError(t, afero.WriteFile(fs, "/src/fp1.fixpack", []byte(content), 0o644))

			res, err := m.UploadShared(context.Background(),
				[]UploadRequest{{Category: "fixpacks", Src: "/src/fp1.fixpack", Overwrite: tt.overwrite}}, tt.dryRun)
			if tt.wantKind != "" {
				assert.True(t, isvaerr.Is(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantChanged, res.Changed)
			posts := a.CallsTo(http.MethodPost, upload)
			if tt.wantUpload {
				require.Len(t, posts, 1)
				assert.Equal(t, content, string(posts[0].File))
				assert.Equal(t, map[string]string{"force": boolString(tt.overwrite)}, posts[0].Fields)
			} else {
				assert.Empty(t, posts)
			}
			assert.Equal(t, []any{map[string]any{"path": "fixpacks/fp1.fixpack", "state": tt.wantBefore}}, files(t, res.Diff.Before))
			if tt.wantWarning {
				require.Len(t, res.Warnings, 1)
				assert.Contains(t, res.Warnings[0], "overwrite is not set")
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestFetchDownloads(t *testing.T) {
	const content = "agent installer"
	remote := DownloadsPath + "/agents/installer.zip"
	req := []FetchRequest{{Path: "/agents/installer.zip", Dest: "/work/installer.zip"}}

	a := fake.New().
		Respond(http.MethodGet, DownloadsPath+"?recursive=true", http.StatusOK, []any{
			map[string]any{"name": "agents", "type": TypeDirectory, "children": []any{
				map[string]any{"name": "installer.zip", "type": TypeFile},
			}},
		}).
		File(remote, []byte(content))
	m, fs := newManager(a)
	ctx := context.Background()

	res, err := m.FetchDownloads(ctx, req, true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	exists, _ := afero.Exists(fs, "/work/installer.zip")
	assert.False(t, exists, "dry run leaves the destination untouched")
	dirExists, _ := afero.DirExists(fs, "/work")
	assert.False(t, dirExists, "dry run creates no destination directory")

	res, err = m.FetchDownloads(ctx, req, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	data, err := afero.ReadFile(fs, "/work/installer.zip")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	res, err = m.FetchDownloads(ctx, req, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []any{map[string]any{"path": "/work/installer.zip", "state": StateFile}}, files(t, res.Diff.Before))

	names, err := afero.ReadDir(fs, "/work")
	require.NoError(t, err)
	assert.Len(t, names, 1)

	_, err = m.FetchDownloads(ctx, []FetchRequest{{Path: "/agents/missing.zip", Dest: "/work/missing.zip"}}, false)
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))
}
