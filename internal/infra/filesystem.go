package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// atomicWrite replaces path with data (write to a sibling temp file + rename),
// so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// ExpandHome expands a leading ~ to the real user's home directory.
func ExpandHome(path string) string {
	return expandHomeIn(GetRealUserHome(), path)
}

func expandHomeIn(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}
