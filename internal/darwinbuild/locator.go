package darwinbuild

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// LocatorKind tells where a build manifest comes from.
type LocatorKind int

const (
	LocalPath LocatorKind = iota
	HTTPURL
	RemoteShellRef
	ObjectStoreRef
)

func (k LocatorKind) String() string {
	switch k {
	case HTTPURL:
		return "http"
	case RemoteShellRef:
		return "remote-shell"
	case ObjectStoreRef:
		return "object-store"
	default:
		return "local"
	}
}

var (
	httpURLPattern     = regexp.MustCompile(`(?i)^https?://[^\s/?#]+[^\s]*$`)
	remoteShellPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.-]*)@([A-Za-z0-9][A-Za-z0-9_.-]*):(.*)$`)
	objectStorePattern = regexp.MustCompile(`^s3://([^/\s]+)/(\S+)$`)
)

// ManifestLocator is a classified manifest source.
type ManifestLocator struct {
	Kind LocatorKind
	Raw  string

	User   string // remote shell
	Host   string // remote shell, http
	Path   string // local, remote shell, http path
	Bucket string // object store
	Key    string // object store
}

// ClassifyLocator never fails: anything that is not a URL, an s3:// object
// or a user@host:path reference is a local path.
func ClassifyLocator(s string) ManifestLocator {
	loc := ManifestLocator{Kind: LocalPath, Raw: s, Path: s}
	switch {
	case httpURLPattern.MatchString(s):
		loc.Kind = HTTPURL
		if u, err := url.Parse(s); err == nil {
			loc.Host = u.Host
			loc.Path = u.Path
		}
	case objectStorePattern.MatchString(s):
		m := objectStorePattern.FindStringSubmatch(s)
		loc.Kind = ObjectStoreRef
		loc.Bucket, loc.Key, loc.Path = m[1], m[2], m[2]
	case remoteShellPattern.MatchString(s):
		m := remoteShellPattern.FindStringSubmatch(s)
		loc.Kind = RemoteShellRef
		loc.User, loc.Host, loc.Path = m[1], m[2], m[3]
	}
	return loc
}

// BaseName is the last path element of the source.
func (l ManifestLocator) BaseName() string {
	switch l.Kind {
	case LocalPath:
		return filepath.Base(l.Path)
	default:
		if l.Path == "" {
			return ""
		}
		return path.Base(l.Path)
	}
}

// ManifestName is the file name the manifest gets in the state directory,
// with any compression suffix removed.
func (l ManifestLocator) ManifestName() string {
	name := l.BaseName()
	if codec := codecFor(name); codec != nil {
		name = strings.TrimSuffix(name, codec.ext)
	}
	return name
}

// BuildFromManifestName maps "19A583.plist" to "19A583".
func BuildFromManifestName(name string) string {
	if codec := codecFor(name); codec != nil {
		name = strings.TrimSuffix(name, codec.ext)
	}
	return strings.TrimSuffix(name, ".plist")
}

// looksLikeLocator separates "-init 19A583" from "-init /dir/19A583.plist".
func looksLikeLocator(target string) bool {
	if ClassifyLocator(target).Kind != LocalPath {
		return true
	}
	if strings.ContainsRune(target, filepath.Separator) || strings.Contains(target, "/") {
		return true
	}
	return BuildFromManifestName(target) != target
}
