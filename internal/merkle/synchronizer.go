package merkle

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Synchronizer tracks a source tree against a persisted snapshot and reports
// which files were added, removed, or modified since the last check. It owns
// the in-memory path->hash map and the Merkle DAG for one repository root.
type Synchronizer struct {
	root           string
	ignorePatterns []string
	fileHashes     map[string]string
	dag            *DAG
	logger         *slog.Logger
}

// Changes partitions the paths that differ between two scans. The three lists
// are disjoint and sorted.
type Changes struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether no changes were detected.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// NewSynchronizer creates a synchronizer for the given repository root.
// Ignore patterns support literal names, "*.ext" suffix globs, directory
// patterns with a trailing slash, and path patterns containing a slash.
func NewSynchronizer(root string, ignorePatterns []string) *Synchronizer {
	return &Synchronizer{
		root:           root,
		ignorePatterns: ignorePatterns,
		fileHashes:     make(map[string]string),
		dag:            NewDAG(),
		logger:         slog.Default(),
	}
}

// snapshotDir returns the directory holding persisted snapshots.
func snapshotDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".context", "merkle"), nil
}

// SnapshotPath returns the snapshot file path for a repository root. The name
// is the MD5 digest of the absolute root so distinct checkouts never collide.
func SnapshotPath(root string) (string, error) {
	dir, err := snapshotDir()
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	sum := md5.Sum([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".json"), nil
}

// snapshotFile is the persisted JSON form of a synchronizer's state.
type snapshotFile struct {
	FileHashes [][2]string     `json:"fileHashes"`
	MerkleDAG  json.RawMessage `json:"merkleDAG"`
}

// Initialize loads the persisted snapshot if one exists; otherwise it walks
// the root, hashes every file, and writes a fresh snapshot.
func (s *Synchronizer) Initialize() error {
	path, err := SnapshotPath(s.root)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if loadErr := s.loadSnapshot(data); loadErr == nil {
			s.logger.Debug("snapshot loaded", "root", s.root, "files", len(s.fileHashes))
			return nil
		} else {
			s.logger.Warn("snapshot unreadable, rebuilding", "path", path, "error", loadErr)
		}
	} else if !os.IsNotExist(err) {
		s.logger.Warn("snapshot read failed, rebuilding", "path", path, "error", err)
	}

	hashes, err := s.hashTree()
	if err != nil {
		return err
	}
	s.fileHashes = hashes
	s.dag = buildDAG(hashes)

	if err := s.saveSnapshot(); err != nil {
		s.logger.Warn("snapshot write failed", "root", s.root, "error", err)
	}
	return nil
}

// CheckForChanges rescans the root, diffs against the in-memory state, then
// atomically replaces the in-memory map and rewrites the snapshot. The
// returned lists are sorted.
func (s *Synchronizer) CheckForChanges() (Changes, error) {
	newHashes, err := s.hashTree()
	if err != nil {
		return Changes{}, err
	}

	changes := diffHashes(s.fileHashes, newHashes)

	newDAG := buildDAG(newHashes)
	s.fileHashes = newHashes
	s.dag = newDAG

	if !changes.Empty() {
		if err := s.saveSnapshot(); err != nil {
			s.logger.Warn("snapshot write failed", "root", s.root, "error", err)
		}
	}
	return changes, nil
}

// GetFileHash returns the recorded content hash for a relative path.
func (s *Synchronizer) GetFileHash(relPath string) (string, bool) {
	h, ok := s.fileHashes[relPath]
	return h, ok
}

// FileCount returns the number of tracked files.
func (s *Synchronizer) FileCount() int {
	return len(s.fileHashes)
}

// TrackedPaths returns all tracked relative paths, sorted.
func (s *Synchronizer) TrackedPaths() []string {
	paths := make([]string, 0, len(s.fileHashes))
	for p := range s.fileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DAG returns the current Merkle DAG.
func (s *Synchronizer) DAG() *DAG {
	return s.dag
}

// DeleteSnapshot removes the persisted snapshot for a root. A missing file is
// not an error; other I/O failures are surfaced.
func DeleteSnapshot(root string) error {
	path, err := SnapshotPath(root)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot %s: %w", path, err)
	}
	return nil
}

// HashFileContent returns the hex-encoded SHA-256 digest of file content.
func HashFileContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *Synchronizer) loadSnapshot(data []byte) error {
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	hashes := make(map[string]string, len(snap.FileHashes))
	for _, pair := range snap.FileHashes {
		hashes[pair[0]] = pair[1]
	}

	dag := NewDAG()
	if len(snap.MerkleDAG) > 0 {
		var err error
		dag, err = Deserialize(snap.MerkleDAG)
		if err != nil {
			return err
		}
	}

	s.fileHashes = hashes
	s.dag = dag
	return nil
}

func (s *Synchronizer) saveSnapshot() error {
	path, err := SnapshotPath(s.root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	pairs := make([][2]string, 0, len(s.fileHashes))
	for rel, h := range s.fileHashes {
		pairs = append(pairs, [2]string{rel, h})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	dagJSON, err := s.dag.Serialize()
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshotFile{FileHashes: pairs, MerkleDAG: dagJSON})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// hashTree walks the root and returns relative path -> content hash for every
// file that survives the ignore rules. Unreadable entries are skipped.
func (s *Synchronizer) hashTree() (map[string]string, error) {
	hashes := make(map[string]string)
	if err := s.walkDir(s.root, hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *Synchronizer) walkDir(dir string, hashes map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == s.root {
			return fmt.Errorf("read root %s: %w", dir, err)
		}
		s.logger.Warn("directory unreadable, skipping", "path", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if s.isIgnored(rel, name, entry.IsDir()) {
			continue
		}

		if entry.IsDir() {
			if err := s.walkDir(full, hashes); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		content, err := os.ReadFile(full)
		if err != nil {
			s.logger.Warn("file unreadable, skipping", "path", full, "error", err)
			continue
		}
		hashes[rel] = HashFileContent(content)
	}
	return nil
}

// isIgnored matches a relative path against the configured ignore patterns.
func (s *Synchronizer) isIgnored(relPath, name string, isDir bool) bool {
	for _, pattern := range s.ignorePatterns {
		if pattern == "" {
			continue
		}
		switch {
		case strings.HasSuffix(pattern, "/"):
			if isDir && name == strings.TrimSuffix(pattern, "/") {
				return true
			}
		case strings.Contains(pattern, "/"):
			if ok, _ := doublestar.Match(pattern, relPath); ok {
				return true
			}
		case strings.Contains(pattern, "*"):
			if ok, _ := doublestar.Match(pattern, name); ok {
				return true
			}
		default:
			if name == pattern {
				return true
			}
		}
	}
	return false
}

// buildDAG constructs the Merkle DAG for a hash map: one root node derived
// from the sorted path:hash lines, with one child node per file.
func buildDAG(hashes map[string]string) *DAG {
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		lines = append(lines, p+":"+hashes[p])
	}

	dag := NewDAG()
	rootID := dag.Add(strings.Join(lines, "\n"), "")
	for _, line := range lines {
		dag.Add(line, rootID)
	}
	return dag
}

// diffHashes partitions paths by how they changed between two scans.
func diffHashes(old, new map[string]string) Changes {
	changes := Changes{Added: []string{}, Removed: []string{}, Modified: []string{}}
	for path, newHash := range new {
		oldHash, ok := old[path]
		if !ok {
			changes.Added = append(changes.Added, path)
		} else if oldHash != newHash {
			changes.Modified = append(changes.Modified, path)
		}
	}
	for path := range old {
		if _, ok := new[path]; !ok {
			changes.Removed = append(changes.Removed, path)
		}
	}
	sort.Strings(changes.Added)
	sort.Strings(changes.Removed)
	sort.Strings(changes.Modified)
	return changes
}
