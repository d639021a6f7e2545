// Package store persists the index artifact with an atomic-replace protocol
// and loads it back, accepting both the artifact object form and the legacy
// bare-array form.
package store

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmercato/catalog-search/internal/catalog"
	"github.com/openmercato/catalog-search/pkg/errors"
)

// Paths names the four files the persistence protocol touches. Temp must be
// on the same volume as Canonical so the final rename is atomic.
type Paths struct {
	Canonical string
	Backup    string
	Old       string
	Temp      string
}

// PathsFor derives the sibling backup, old, and temp paths for an index
// file.
func PathsFor(canonical string) Paths {
	return Paths{
		Canonical: canonical,
		Backup:    canonical + ".backup",
		Old:       canonical + ".old",
		Temp:      canonical + ".tmp",
	}
}

// Persist writes the artifact to Paths.Canonical using the five-step
// protocol: backup the current canonical, write the new artifact to a temp
// file, re-read and validate the temp file, atomically rename it over the
// canonical, then rotate backups. Failure at any step leaves the canonical
// file fully valid-old or fully valid-new, never partial.
//
// The protocol assumes a single writer per canonical path; concurrent
// builders targeting the same path must be serialized by the caller.
func Persist(artifact *catalog.Artifact, paths Paths) error {
	log := slog.Default().With("component", "store")

	// Step 1: preserve the current canonical file, if any.
	if _, err := os.Stat(paths.Canonical); err == nil {
		if err := copyFile(paths.Canonical, paths.Backup); err != nil {
			return fmt.Errorf("%w: backing up %s: %v", errors.ErrPersistFailed, paths.Canonical, err)
		}
	}

	// Step 2: serialize into the temp file on the canonical volume.
	if err := writeTemp(artifact, paths.Temp); err != nil {
		return cleanupAndRestore(paths, log, err)
	}

	// Step 3: re-read the temp file and validate its structure before it can
	// become the canonical artifact.
	reread, err := Load(paths.Temp)
	if err == nil {
		err = Validate(reread)
	}
	if err != nil {
		return cleanupAndRestore(paths, log,
			fmt.Errorf("%w: validating temp artifact: %v", errors.ErrPersistFailed, err))
	}

	// Step 4: atomic replace. A concurrent reader observes either the
	// complete old file or the complete new file.
	if err := os.Rename(paths.Temp, paths.Canonical); err != nil {
		return cleanupAndRestore(paths, log,
			fmt.Errorf("%w: renaming temp over canonical: %v", errors.ErrPersistFailed, err))
	}

	// Step 5: rotate backups, keeping at most two historical snapshots.
	if _, err := os.Stat(paths.Backup); err == nil {
		if err := os.Remove(paths.Old); err != nil && !os.IsNotExist(err) {
			log.Warn("removing old backup failed", "path", paths.Old, "error", err)
		}
		if err := os.Rename(paths.Backup, paths.Old); err != nil {
			log.Warn("rotating backup failed", "path", paths.Backup, "error", err)
		}
	}

	log.Info("artifact persisted",
		"path", paths.Canonical,
		"products", artifact.Metadata.TotalProducts,
	)
	return nil
}

// cleanupAndRestore deletes a leftover temp file and, if the canonical file
// vanished while a backup exists (crash mid-rename), restores the canonical
// from backup best-effort. The original error is always surfaced.
func cleanupAndRestore(paths Paths, log *slog.Logger, cause error) error {
	if err := os.Remove(paths.Temp); err != nil && !os.IsNotExist(err) {
		log.Warn("removing temp artifact failed", "path", paths.Temp, "error", err)
	}
	_, canonicalErr := os.Stat(paths.Canonical)
	_, backupErr := os.Stat(paths.Backup)
	if os.IsNotExist(canonicalErr) && backupErr == nil {
		if err := copyFile(paths.Backup, paths.Canonical); err != nil {
			log.Error("restoring canonical from backup failed", "error", err)
		} else {
			log.Warn("canonical restored from backup after failed persist")
		}
	}
	return cause
}

func writeTemp(artifact *catalog.Artifact, tempPath string) error {
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return fmt.Errorf("%w: creating index directory: %v", errors.ErrPersistFailed, err)
	}
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("%w: creating temp artifact: %v", errors.ErrPersistFailed, err)
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(artifact); err != nil {
		f.Close()
		return fmt.Errorf("%w: encoding artifact: %v", errors.ErrPersistFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: syncing temp artifact: %v", errors.ErrPersistFailed, err)
	}
	return f.Close()
}

// Load reads an artifact file. It accepts either the artifact object form or
// a bare product array; in the latter case metadata is absent and treated as
// unknown rather than fatal.
func Load(path string) (*catalog.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	var artifact catalog.Artifact
	objErr := json.Unmarshal(data, &artifact)
	if objErr == nil && artifact.Products != nil {
		return &artifact, nil
	}

	var products []catalog.Product
	if arrErr := json.Unmarshal(data, &products); arrErr == nil {
		return &catalog.Artifact{
			Products: products,
			Metadata: catalog.Metadata{
				TotalProducts: len(products),
				Vendors:       []string{},
				ProductTypes:  []string{},
			},
		}, nil
	}

	if objErr == nil {
		objErr = stderrors.New("object form lacks a products array")
	}
	return nil, fmt.Errorf("%w: parsing %s: %v", errors.ErrArtifactCorrupt, path, objErr)
}

// Validate structurally checks an artifact: a non-empty product collection,
// record identity fields present, and metadata consistent with the
// collection.
func Validate(artifact *catalog.Artifact) error {
	if artifact == nil || len(artifact.Products) == 0 {
		return fmt.Errorf("%w: empty product collection", errors.ErrArtifactCorrupt)
	}
	for i := range artifact.Products {
		if artifact.Products[i].ID == "" || artifact.Products[i].Title == "" {
			return fmt.Errorf("%w: record %d missing id or title", errors.ErrArtifactCorrupt, i)
		}
	}
	if artifact.Metadata.TotalProducts != len(artifact.Products) {
		return fmt.Errorf("%w: metadata count %d does not match %d products",
			errors.ErrArtifactCorrupt, artifact.Metadata.TotalProducts, len(artifact.Products))
	}
	return nil
}

// IsMissing reports whether err means the artifact file does not exist.
func IsMissing(err error) bool {
	return stderrors.Is(err, errors.ErrArtifactMissing)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
