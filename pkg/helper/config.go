package helper

import (
	"os"
	"path/filepath"

	"github.com/amoylab/janus/internal/common/cnst"
)

// SystemCfgDir is the last place a relative configuration file is looked up.
var SystemCfgDir = filepath.Join("/etc", cnst.AppName)

// localCfgDirs are tried in order, relative to the working directory.
var localCfgDirs = []string{".", "configs"}

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/janus/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if p := findLocal(filename); p != "" {
		return p
	}
	return filepath.Join(SystemCfgDir, filename)
}

// CfgExists reports whether filename resolves to an existing file.
func CfgExists(filename string) bool {
	if filename == "" {
		return false
	}
	info, err := os.Stat(GetCfgPath(filename))
	return err == nil && !info.IsDir()
}

func findLocal(filename string) string {
	wd, err := os.Getwd()
	if err != nil || wd == "" {
		return ""
	}
	for _, dir := range localCfgDirs {
		candidate := filepath.Join(wd, dir, filename)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}
	return ""
}
