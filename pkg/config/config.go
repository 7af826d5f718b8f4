// Package config holds the version, defaults and the lookup of function
// table files for the NWScript tools.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// Version is the nwscript-go version string
	Version = "0.3.0"

	// DefaultGame is the game assumed when none is given
	DefaultGame = "nwn"

	// DefaultEncoding is the code page of string literals
	DefaultEncoding = "CP1252"

	// TableFile is the function table shared by every game
	TableFile = "nwscript.yaml"

	// EnvTables lists extra table directories, separated like $PATH
	EnvTables = "NWSCRIPT_TABLES"
)

// TableDirs returns the directories searched for table files, most
// specific first: each entry of $NWSCRIPT_TABLES, tables/ next to the
// executable, the user config directory and ~/.nwscript.
func TableDirs() []string {
	var dirs []string
	for _, d := range filepath.SplitList(os.Getenv(EnvTables)) {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "tables"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "nwscript"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".nwscript"))
	}
	return dirs
}

// FindTable resolves a table file name. Paths with a directory part are
// used as given; bare names are looked up in TableDirs.
func FindTable(name string) (string, bool) {
	if filepath.Base(name) != name {
		return name, isFile(name)
	}
	for _, d := range TableDirs() {
		if p := filepath.Join(d, name); isFile(p) {
			return p, true
		}
	}
	return "", false
}

// GameTableFile names the table holding one game's functions.
func GameTableFile(game string) string {
	return strings.ToLower(game) + ".yaml"
}

// DefaultTables returns the shared table and the game's own table, in
// that order, skipping those that do not exist.
func DefaultTables(game string) []string {
	var out []string
	for _, name := range []string{TableFile, GameTableFile(game)} {
		if p, ok := FindTable(name); ok {
			out = append(out, p)
		}
	}
	return out
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
