package config

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the directory where vidpress stores its data (bucket
// registry). Priority: VIDPRESS_DATA_DIR environment variable > "./data".
// The environment is read on every call so tests and operators can change it
// without restarting the process.
func GetDataDir() string {
	if dir := os.Getenv("VIDPRESS_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetCredentialsDBPath returns the full path to the bucket registry database.
// The registry maps bucket names to storage backend credentials.
// Path: {data dir}/buckets.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "buckets.db")
}

// GetTempDir returns the directory holding per-job temporary files (uploaded
// inputs and encoder outputs). Every file vidpress creates here is removed when
// its job ends; the sweeper removes leftovers from crashed processes.
// Configurable via VIDPRESS_TEMP_DIR, defaults to {os.TempDir()}/vidpress.
func GetTempDir() string {
	if dir := os.Getenv("VIDPRESS_TEMP_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "vidpress")
}

// GetDirectServeBaseDir returns the base directory for the directServe backend.
// Files written there are served by vidpress under /files/.
// Configurable via VIDPRESS_SERVE_DIR, defaults to "./serve".
func GetDirectServeBaseDir() string {
	if dir := os.Getenv("VIDPRESS_SERVE_DIR"); dir != "" {
		return dir
	}
	return "./serve"
}
