/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Sources
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package kbsource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbtypes"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/textextract"
)

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Scan walks root for documents in a supported format, sorted by relative
// path. Hidden files and directories are skipped. A missing root yields an
// error wrapping fs.ErrNotExist.
func Scan(root string) ([]kbtypes.SourceFile, error) {
	root, err := ExpandPath(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("documents path %s: %w", root, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat documents path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents path is not a directory: %s", root)
	}

	var files []kbtypes.SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !textextract.IsSupported(name) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = name
		}
		files = append(files, kbtypes.SourceFile{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents path: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}

// Checksum returns the hex SHA256 of content
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
