// Package db opens the per-workspace observation store. Each workspace keeps
// its state under a .safeline directory next to the data it describes.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const storeFile = "safeline.db"

type Config struct {
	Workspace string
}

func storePath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".safeline", storeFile)
}

// EnsureWorkspace creates the .safeline directory when it does not exist yet
// and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, ".safeline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open connects to the workspace store. Foreign keys are enforced and a busy
// timeout covers writers racing for the single SQLite file.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		storePath(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path reports where the workspace store lives without opening it.
func Path(workspace string) string {
	return storePath(workspace)
}
