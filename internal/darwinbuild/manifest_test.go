package darwinbuild

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>build</key>
	<string>19A583</string>
	<key>projects</key>
	<dict>
		<key>xnu</key>
		<dict>
			<key>version</key>
			<string>6153.11.26</string>
		</dict>
		<key>Libc</key>
		<dict>
			<key>version</key>
			<string>1353.11.2</string>
		</dict>
	</dict>
	<key>groups</key>
	<dict>
		<key>kernel</key>
		<array>
			<string>xnu</string>
		</array>
	</dict>
</dict>
</plist>
`

func newTestAcquirer() *Acquirer {
	return &Acquirer{Client: http.DefaultClient}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAcquireLocal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "19A583.plist")
	require.NoError(t, os.WriteFile(src, []byte(testManifest), 0o600))
	dest := t.TempDir()

	path, err := newTestAcquirer().Acquire(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "19A583.plist"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestAcquireLocalNotAFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "19A583.plist")
	require.NoError(t, os.Mkdir(src, 0o755))
	dest := t.TempDir()

	_, err := newTestAcquirer().Acquire(context.Background(), src, dest)
	var nf *NotAFileError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, src, nf.Path)
	assert.Empty(t, dirNames(t, dest))
}

func TestAcquireLocalMissing(t *testing.T) {
	src := filepath.Join(t.TempDir(), "19A583.plist")

	_, err := newTestAcquirer().Acquire(context.Background(), src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), src)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAcquireExistingDestination(t *testing.T) {
	src := filepath.Join(t.TempDir(), "19A583.plist")
	require.NoError(t, os.WriteFile(src, []byte(testManifest), 0o644))
	dest := t.TempDir()
	existing := filepath.Join(dest, "19A583.plist")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	a := newTestAcquirer()
	path, err := a.Acquire(context.Background(), src, dest)
	assert.ErrorIs(t, err, ErrDestinationExists)
	assert.Equal(t, existing, path)
	data, _ := os.ReadFile(existing)
	assert.Equal(t, "old", string(data))

	a.Overwrite = true
	_, err = a.Acquire(context.Background(), src, dest)
	require.NoError(t, err)
	data, _ = os.ReadFile(existing)
	assert.Equal(t, testManifest, string(data))
}

func TestAcquireRemoteShellUnsupported(t *testing.T) {
	dest := t.TempDir()
	_, err := newTestAcquirer().Acquire(context.Background(), "builder@buildhost:/srv/19A583.plist", dest)
	assert.ErrorIs(t, err, ErrRemoteShellUnsupported)
	assert.Contains(t, err.Error(), "not supported yet")
	assert.Empty(t, dirNames(t, dest))
}

func TestAcquireHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/plists/19A583.plist", r.URL.Path)
		io.WriteString(w, testManifest)
	}))
	defer srv.Close()
	dest := t.TempDir()

	path, err := newTestAcquirer().Acquire(context.Background(), srv.URL+"/plists/19A583.plist", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(data))
	assert.Equal(t, []string{"19A583.plist"}, dirNames(t, dest))
}

func TestAcquireHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	dest := t.TempDir()

	_, err := newTestAcquirer().Acquire(context.Background(), srv.URL+"/19A583.plist", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), srv.URL)
	assert.Empty(t, dirNames(t, dest))
}

func TestAcquireHTTPInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		io.WriteString(w, testManifest[:40])
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()
	dest := t.TempDir()

	_, err := newTestAcquirer().Acquire(context.Background(), srv.URL+"/19A583.plist", dest)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dest, "19A583.plist"))
	assert.Empty(t, dirNames(t, dest), "pending file must be cleaned up")
}

func TestAcquireHTTPCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testManifest)
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAcquirer().Acquire(ctx, srv.URL+"/19A583.plist", t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireGzipOverHTTP(t *testing.T) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := io.WriteString(zw, testManifest)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()
	dest := t.TempDir()

	path, err := newTestAcquirer().Acquire(context.Background(), srv.URL+"/19A583.plist.gz", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "19A583.plist"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(data))
	assert.Equal(t, []string{"19A583.plist"}, dirNames(t, dest))
}

func TestAcquireCorruptGzip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "19A583.plist.gz")
	require.NoError(t, os.WriteFile(src, []byte("not gzip at all"), 0o644))
	dest := t.TempDir()

	_, err := newTestAcquirer().Acquire(context.Background(), src, dest)
	require.Error(t, err)
	assert.Empty(t, dirNames(t, dest))
}

type fakeObjectStore struct {
	objects map[string]string
	bucket  string
}

func (f *fakeObjectStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	f.bucket = bucket
	body, ok := f.objects[key]
	if !ok {
		return nil, 0, errors.New("NoSuchKey: s3://" + bucket + "/" + key)
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func TestAcquireObjectStoreZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(testManifest), nil)
	require.NoError(t, enc.Close())

	store := &fakeObjectStore{objects: map[string]string{"10.15/19A583.plist.zst": string(compressed)}}
	created := 0
	a := &Acquirer{NewStore: func(context.Context) (ObjectStore, error) {
		created++
		return store, nil
	}}
	dest := t.TempDir()

	path, err := a.Acquire(context.Background(), "s3://darwin-plists/10.15/19A583.plist.zst", dest)
	require.NoError(t, err)
	assert.Equal(t, "darwin-plists", store.bucket)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testManifest, string(data))

	_, err = a.Acquire(context.Background(), "s3://darwin-plists/10.15/missing.plist", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.plist")
	assert.Equal(t, 1, created)
}

func TestManifestSearch(t *testing.T) {
	work := t.TempDir()
	data := t.TempDir()
	s := ManifestSearch{WorkDir: work, DataDir: data, Site: "http://plists.example.com/"}

	assert.Equal(t, []string{
		filepath.Join(work, "19A583.plist"),
		filepath.Join(data, "plists", "19A583.plist"),
		"http://plists.example.com/19A583.plist",
	}, s.Candidates("19A583"))

	loc, err := s.Locate("19A583")
	require.NoError(t, err)
	assert.Equal(t, "http://plists.example.com/19A583.plist", loc)

	require.NoError(t, os.MkdirAll(filepath.Join(data, "plists"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "plists", "19A583.plist"), []byte(testManifest), 0o644))
	loc, err = s.Locate("19A583")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "plists", "19A583.plist"), loc)

	require.NoError(t, os.WriteFile(filepath.Join(work, "19A583.plist"), []byte(testManifest), 0o644))
	loc, err = s.Locate("19A583")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "19A583.plist"), loc)

	s.Site = ""
	_, err = s.Locate("20A1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "20A1")
}
