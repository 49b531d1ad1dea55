package download

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// artifactExtensions lists the file types the bot may have produced. Both
// are scanned so a format change in config does not orphan old artifacts.
var artifactExtensions = []string{".pdf", ".cbz"}

// FindArtifact returns the path of the finished artifact for an identifier,
// or "" when none exists. Artifacts are named "<id>-<title><ext>" or just
// "<id><ext>" when the album had no title.
func (m *Manager) FindArtifact(id string) string {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return ""
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if artifactID(entry.Name()) == id {
			return filepath.Join(m.outputDir, entry.Name())
		}
	}
	return ""
}

// HasArtifact reports whether a finished artifact exists for the identifier
func (m *Manager) HasArtifact(id string) bool {
	return m.FindArtifact(id) != ""
}

// ListArtifacts returns the file names of all finished artifacts, sorted
func (m *Manager) ListArtifacts() []string {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if artifactID(entry.Name()) == "" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// DeleteArtifact removes the finished artifact for an identifier. It
// returns false when no artifact exists. An in-flight job is untouched;
// its artifact does not exist yet, so there is nothing to remove.
func (m *Manager) DeleteArtifact(id string) (bool, error) {
	path := m.FindArtifact(id)
	if path == "" {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}

// artifactID extracts the identifier from an artifact file name, or ""
// when the name is not an artifact
func artifactID(name string) string {
	ext := filepath.Ext(name)
	matched := false
	for _, e := range artifactExtensions {
		if strings.EqualFold(ext, e) {
			matched = true
			break
		}
	}
	if !matched {
		return ""
	}

	base := strings.TrimSuffix(name, ext)
	if i := strings.Index(base, "-"); i >= 0 {
		base = base[:i]
	}
	return base
}
