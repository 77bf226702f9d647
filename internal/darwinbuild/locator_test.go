package darwinbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLocator(t *testing.T) {
	tests := []struct {
		in       string
		kind     LocatorKind
		manifest string
	}{
		{"/dir/19A583.plist", LocalPath, "19A583.plist"},
		{"19A583.plist", LocalPath, "19A583.plist"},
		{"./plists/19A583.plist.gz", LocalPath, "19A583.plist"},
		{"http://example.com/plists/19A583.plist", HTTPURL, "19A583.plist"},
		{"HTTPS://example.com/19A583.plist.xz", HTTPURL, "19A583.plist"},
		{"builder@buildhost:/srv/plists/19A583.plist", RemoteShellRef, "19A583.plist"},
		{"s3://darwin-plists/10.15/19A583.plist.zst", ObjectStoreRef, "19A583.plist"},
		{"ftp://example.com/19A583.plist", LocalPath, "19A583.plist"},
		{"C:weird", LocalPath, "C:weird"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			loc := ClassifyLocator(tt.in)
			assert.Equal(t, tt.kind, loc.Kind)
			assert.Equal(t, tt.in, loc.Raw)
			assert.Equal(t, tt.manifest, loc.ManifestName())
		})
	}
}

func TestClassifyLocatorParts(t *testing.T) {
	rs := ClassifyLocator("builder@buildhost:/srv/plists/19A583.plist")
	assert.Equal(t, "builder", rs.User)
	assert.Equal(t, "buildhost", rs.Host)
	assert.Equal(t, "/srv/plists/19A583.plist", rs.Path)

	s3 := ClassifyLocator("s3://darwin-plists/10.15/19A583.plist")
	assert.Equal(t, "darwin-plists", s3.Bucket)
	assert.Equal(t, "10.15/19A583.plist", s3.Key)

	h := ClassifyLocator("https://example.com:8443/p/19A583.plist?x=1")
	assert.Equal(t, "example.com:8443", h.Host)
	assert.Equal(t, "/p/19A583.plist", h.Path)
}

func TestBuildFromManifestName(t *testing.T) {
	assert.Equal(t, "19A583", BuildFromManifestName("19A583.plist"))
	assert.Equal(t, "19A583", BuildFromManifestName("19A583.plist.gz"))
	assert.Equal(t, "19A583", BuildFromManifestName("19A583"))
}

func TestLooksLikeLocator(t *testing.T) {
	assert.False(t, looksLikeLocator("19A583"))
	assert.True(t, looksLikeLocator("19A583.plist"))
	assert.True(t, looksLikeLocator("./19A583"))
	assert.True(t, looksLikeLocator("http://example.com/19A583.plist"))
	assert.True(t, looksLikeLocator("user@host:19A583.plist"))
}
