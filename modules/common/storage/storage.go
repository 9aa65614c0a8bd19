package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"media-studio-server/modules/common/config"
)

var (
	// ErrNotFound - the reference does not resolve to an existing artifact
	ErrNotFound = errors.New("artifact not found")
	// ErrRejected - the reference is malformed or outside the allow-list
	ErrRejected = errors.New("artifact reference rejected")
)

// deleteSearchOrder - namespaces probed when a delete names only a filename
var deleteSearchOrder = []Namespace{GeneratedImage, Uploaded, GeneratedVideo}

// Replica - secondary copy of the artifact tree (see Mirror)
type Replica interface {
	Upload(ctx context.Context, a Artifact) error
	Remove(ctx context.Context, a Artifact) error
}

// Artifact - a stored media file
type Artifact struct {
	Namespace Namespace
	Filename  string
	Path      string // absolute or data-dir relative filesystem path
}

// Reference - the client facing path ("/generated_images/<file>")
func (a Artifact) Reference() string {
	return "/" + a.Namespace.DefaultDir() + "/" + a.Filename
}

// Ext - lower-cased extension
func (a Artifact) Ext() string {
	return strings.ToLower(filepath.Ext(a.Filename))
}

// Store - filesystem backed artifact store across the three namespaces
type Store struct {
	dirs    map[Namespace]string
	replica Replica
}

// NewStore - build a store rooted at cfg.DataDir using the configured directory names
func NewStore(cfg *config.Config) *Store {
	return NewStoreWithDirs(map[Namespace]string{
		Uploaded:       filepath.Join(cfg.DataDir, cfg.UploadDir),
		GeneratedImage: filepath.Join(cfg.DataDir, cfg.GeneratedImageDir),
		GeneratedVideo: filepath.Join(cfg.DataDir, cfg.GeneratedVideoDir),
	})
}

// NewStoreAt - store using the default directory names under root
func NewStoreAt(root string) *Store {
	dirs := make(map[Namespace]string, 3)
	for _, ns := range Namespaces() {
		dirs[ns] = filepath.Join(root, ns.DefaultDir())
	}
	return NewStoreWithDirs(dirs)
}

// NewStoreWithDirs - store with explicit per-namespace directories
func NewStoreWithDirs(dirs map[Namespace]string) *Store {
	copied := make(map[Namespace]string, len(dirs))
	for ns, dir := range dirs {
		copied[ns] = dir
	}
	return &Store{dirs: copied}
}

// WithReplica - mirror every put/delete to r; replica failures never fail the primary call
func (s *Store) WithReplica(r Replica) *Store {
	s.replica = r
	return s
}

// EnsureDirs - create the namespace directories if missing
func (s *Store) EnsureDirs() error {
	for _, ns := range Namespaces() {
		if err := os.MkdirAll(s.Dir(ns), 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", ns, err)
		}
	}
	return nil
}

// Dir - filesystem directory of a namespace
func (s *Store) Dir(ns Namespace) string {
	return s.dirs[ns]
}

func (s *Store) artifact(ns Namespace, filename string) Artifact {
	return Artifact{Namespace: ns, Filename: filename, Path: filepath.Join(s.Dir(ns), filename)}
}

// Resolve - locate ref by filename in order, first existing match wins
//
// The namespace named by ref (if any) does not narrow the search; collisions
// across namespaces are settled by order alone.
func (s *Store) Resolve(ref Reference, order ...Namespace) (Artifact, error) {
	for _, ns := range order {
		candidate := s.artifact(ns, ref.Filename)
		info, err := os.Stat(candidate.Path)
		if err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// ResolvePath - ParseReference + Resolve
func (s *Store) ResolvePath(raw string, order ...Namespace) (Artifact, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return Artifact{}, err
	}
	return s.Resolve(ref, order...)
}

// Put - persist data as a new artifact named <uuid><ext>
func (s *Store) Put(ctx context.Context, ns Namespace, data []byte, ext string) (Artifact, error) {
	pending, err := s.Create(ns, "", ext)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.WriteFile(pending.TempPath(), data, 0o644); err != nil {
		pending.Abort()
		return Artifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	return pending.Commit(ctx)
}

// Create - reserve a new artifact named <prefix><uuid><ext> for an external writer
//
// The writer fills TempPath(); Commit renames it into place so listings and
// resolution never observe a partially written file.
func (s *Store) Create(ns Namespace, prefix, ext string) (*Pending, error) {
	if !ns.Valid() {
		return nil, fmt.Errorf("%w: unknown namespace %s", ErrRejected, ns)
	}
	ext = strings.ToLower(ext)
	if !ns.Allows(ext) {
		return nil, fmt.Errorf("%w: extension %q not allowed in %s", ErrRejected, ext, ns)
	}
	dir := s.Dir(ns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", ns, err)
	}

	id := uuid.New().String()
	final := s.artifact(ns, prefix+id+ext)
	return &Pending{
		store:    s,
		artifact: final,
		tempPath: filepath.Join(dir, ".tmp-"+id+ext),
	}, nil
}

// Pending - an artifact reserved by Create and not yet visible
type Pending struct {
	store    *Store
	artifact Artifact
	tempPath string
	done     bool
}

// TempPath - where the writer must put the content
func (p *Pending) TempPath() string { return p.tempPath }

// Commit - publish the content written to TempPath
func (p *Pending) Commit(ctx context.Context) (Artifact, error) {
	if p.done {
		return Artifact{}, fmt.Errorf("artifact %s already finalized", p.artifact.Filename)
	}
	p.done = true

	info, err := os.Stat(p.tempPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact content missing: %w", err)
	}
	if err := os.Rename(p.tempPath, p.artifact.Path); err != nil {
		os.Remove(p.tempPath)
		return Artifact{}, fmt.Errorf("failed to publish artifact: %w", err)
	}
	log.Printf("💾 [Storage] Saved %s (%d bytes)", p.artifact.Reference(), info.Size())

	p.store.mirrorUpload(ctx, p.artifact)
	return p.artifact, nil
}

// Abort - discard the reservation; safe to call after Commit
func (p *Pending) Abort() {
	if p.done {
		return
	}
	p.done = true
	if err := os.Remove(p.tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️  [Storage] Failed to remove temp file %s: %v", filepath.Base(p.tempPath), err)
	}
}

// Delete - remove the artifact named by raw
//
// Returns ErrRejected for malformed paths and disallowed extensions, and
// ErrNotFound when nothing matches. Both checks run before any removal.
func (s *Store) Delete(ctx context.Context, raw string) (Artifact, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return Artifact{}, err
	}

	if !ref.HasNamespace {
		found := false
		for _, ns := range deleteSearchOrder {
			if _, err := os.Stat(s.artifact(ns, ref.Filename).Path); err == nil {
				ref.Namespace, ref.HasNamespace, found = ns, true, true
				break
			}
		}
		if !found {
			if !IsImageExtension(ref.Ext()) && !GeneratedVideo.Allows(ref.Ext()) {
				return Artifact{}, fmt.Errorf("%w: unsupported file type %q", ErrRejected, ref.Ext())
			}
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
	}

	if !ref.Namespace.Allows(ref.Ext()) {
		return Artifact{}, fmt.Errorf("%w: unsupported file type %q", ErrRejected, ref.Ext())
	}

	target := s.artifact(ref.Namespace, ref.Filename)
	info, err := os.Stat(target.Path)
	if err != nil || !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err := os.Remove(target.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return Artifact{}, fmt.Errorf("failed to delete %s: %w", target.Reference(), err)
	}
	log.Printf("🗑️  [Storage] Deleted %s", target.Reference())

	s.mirrorRemove(ctx, target)
	return target, nil
}

// List - artifacts in ns filtered by the namespace allow-list, sorted by filename
func (s *Store) List(ns Namespace) ([]Artifact, error) {
	entries, err := os.ReadDir(s.Dir(ns))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Artifact{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", ns, err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if !ns.Allows(filepath.Ext(name)) {
			continue
		}
		artifacts = append(artifacts, s.artifact(ns, name))
	}
	return artifacts, nil
}

// Open - open an artifact for reading; ref must name its namespace
func (s *Store) Open(ref Reference) (*os.File, Artifact, error) {
	if !ref.HasNamespace {
		return nil, Artifact{}, fmt.Errorf("%w: namespace required", ErrRejected)
	}
	if !ref.Namespace.Allows(ref.Ext()) {
		return nil, Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	a := s.artifact(ref.Namespace, ref.Filename)
	f, err := os.Open(a.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, Artifact{}, err
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return f, a, nil
}

// ReadFile - whole artifact content
func (s *Store) ReadFile(a Artifact) ([]byte, error) {
	return os.ReadFile(a.Path)
}

func (s *Store) mirrorUpload(ctx context.Context, a Artifact) {
	if s.replica == nil {
		return
	}
	if err := s.replica.Upload(ctx, a); err != nil {
		log.Printf("⚠️  [Mirror] Upload of %s failed: %v", a.Reference(), err)
	}
}

func (s *Store) mirrorRemove(ctx context.Context, a Artifact) {
	if s.replica == nil {
		return
	}
	if err := s.replica.Remove(ctx, a); err != nil {
		log.Printf("⚠️  [Mirror] Remove of %s failed: %v", a.Reference(), err)
	}
}
