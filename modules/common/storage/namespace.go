package storage

import (
	"fmt"
	"path"
	"strings"
)

// Namespace - one of the three managed artifact areas
type Namespace int

const (
	Uploaded Namespace = iota
	GeneratedImage
	GeneratedVideo
)

var (
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	videoExtensions = []string{".mp4"}
)

// Namespaces lists every namespace in declaration order.
func Namespaces() []Namespace {
	return []Namespace{Uploaded, GeneratedImage, GeneratedVideo}
}

func (n Namespace) String() string {
	switch n {
	case Uploaded:
		return "uploaded"
	case GeneratedImage:
		return "generated-image"
	case GeneratedVideo:
		return "generated-video"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	return n >= Uploaded && n <= GeneratedVideo
}

// DefaultDir - on-disk directory name; the directory name is the namespace identity
func (n Namespace) DefaultDir() string {
	switch n {
	case Uploaded:
		return "uploaded_images"
	case GeneratedImage:
		return "generated_images"
	case GeneratedVideo:
		return "generated_videos"
	}
	return ""
}

// AllowedExtensions - the extension allow-list for the namespace
func (n Namespace) AllowedExtensions() []string {
	if n == GeneratedVideo {
		return videoExtensions
	}
	if n.Valid() {
		return imageExtensions
	}
	return nil
}

// Allows reports whether ext (with leading dot, any case) is on the allow-list.
func (n Namespace) Allows(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range n.AllowedExtensions() {
		if allowed == ext {
			return true
		}
	}
	return false
}

// IsImageExtension reports whether ext is one of the raster image formats.
func IsImageExtension(ext string) bool {
	return Uploaded.Allows(ext)
}

// MediaType - content type served for an extension
func MediaType(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	}
	return "application/octet-stream"
}

// Reference - parsed form of a client supplied artifact path
//
// A reference either names its namespace ("/generated_images/a.png") or is a
// bare filename ("a.png") that callers resolve against an ordered search list.
type Reference struct {
	Namespace    Namespace
	HasNamespace bool
	Filename     string
}

// Ext - lower-cased extension of the filename
func (r Reference) Ext() string {
	return strings.ToLower(path.Ext(r.Filename))
}

func (r Reference) String() string {
	if r.HasNamespace {
		return "/" + r.Namespace.DefaultDir() + "/" + r.Filename
	}
	return r.Filename
}

// ParseReference - turn a client path into a Reference, rejecting malformed input
//
// Accepted: "/<dir>/<file>", "<dir>/<file>" and "<file>". Anything with an
// unknown directory, nested segments or traversal is rejected with ErrRejected.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: path is required", ErrRejected)
	}
	if strings.ContainsAny(trimmed, "\\\x00") {
		return Reference{}, fmt.Errorf("%w: invalid path %q", ErrRejected, raw)
	}

	segments := strings.Split(strings.TrimPrefix(trimmed, "/"), "/")
	switch len(segments) {
	case 1:
		if err := validateFilename(segments[0]); err != nil {
			return Reference{}, err
		}
		return Reference{Filename: segments[0]}, nil
	case 2:
		for _, ns := range Namespaces() {
			if segments[0] == ns.DefaultDir() {
				if err := validateFilename(segments[1]); err != nil {
					return Reference{}, err
				}
				return Reference{Namespace: ns, HasNamespace: true, Filename: segments[1]}, nil
			}
		}
	}
	return Reference{}, fmt.Errorf("%w: invalid path %q", ErrRejected, raw)
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid filename %q", ErrRejected, name)
	}
	return nil
}
