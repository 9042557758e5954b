package decompose

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// decomposeArchive unpacks a zip and expands every usable entry. Children
// carry the archive's ID as parent; macOS metadata entries are skipped. An
// archive with unusable entries reports each child's failure rather than one
// opaque archive error; an archive with no entries at all contributes
// nothing to the batch.
func (d *Decomposer) decomposeArchive(ctx context.Context, parent *domain.SourceFile, path string) []*domain.SourceFile {
	r, err := zip.OpenReader(path)
	if err != nil {
		parent.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile, "open zip archive", err)
		parent.Status = domain.StatusFailed
		return []*domain.SourceFile{parent}
	}
	defer r.Close()

	dir, err := d.unitDir(parent.ID)
	if err != nil {
		parent.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile, "prepare extraction directory", err)
		parent.Status = domain.StatusFailed
		return []*domain.SourceFile{parent}
	}

	var children []*domain.SourceFile
	for i, entry := range r.File {
		if ctx.Err() != nil {
			break
		}
		if skipArchiveEntry(entry) {
			continue
		}

		childName := parent.Name + "/" + entry.Name
		extracted, err := extractEntry(entry, dir, i)
		if err != nil {
			child := domain.NewSourceFile(childName, "")
			child.ParentID = parent.ID
			child.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile,
				fmt.Sprintf("extract archive entry %s", entry.Name), err)
			child.Status = domain.StatusFailed
			children = append(children, child)
			continue
		}

		kind, ok := DetectKind(entry.Name)
		if !ok || kind == domain.KindArchive {
			child := domain.NewSourceFile(childName, "")
			child.ParentID = parent.ID
			child.DecompositionErr = domain.DecompositionError(domain.FailUnsupportedFormat,
				fmt.Sprintf("unsupported archive entry %q", entry.Name), nil)
			child.Status = domain.StatusFailed
			children = append(children, child)
			continue
		}

		for _, child := range d.Decompose(ctx, Input{Name: childName, Path: extracted, Size: int64(entry.UncompressedSize64)}) {
			child.ParentID = parent.ID
			children = append(children, child)
		}
	}

	if len(children) == 0 {
		d.logger.Debug().Str("file", parent.Name).Msg("archive has no processable entries, skipped")
		return nil
	}

	d.logger.Debug().Str("file", parent.Name).Int("children", len(children)).Msg("archive decomposed")
	return children
}

// skipArchiveEntry filters directories and macOS metadata entries.
func skipArchiveEntry(entry *zip.File) bool {
	name := entry.Name
	base := filepath.Base(name)
	return entry.FileInfo().IsDir() ||
		strings.HasPrefix(name, "__MACOSX/") ||
		strings.HasPrefix(base, "._") ||
		base == ".DS_Store"
}

// extractEntry writes one archive entry under dir, refusing paths that
// escape it. The entry index keeps same-named entries from different
// archive directories apart.
func extractEntry(entry *zip.File, dir string, index int) (string, error) {
	cleaned := filepath.Clean(entry.Name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("entry path %q escapes extraction directory", entry.Name)
	}
	dest := filepath.Join(dir, fmt.Sprintf("%03d_%s", index, filepath.Base(cleaned)))

	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return "", err
	}
	return dest, nil
}
