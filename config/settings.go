package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const megabyte = 1024 * 1024

// getEnv returns the value of key, or def when it is unset or empty.
func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

// GetPort returns the HTTP listen port. VIDPRESS_PORT wins over the generic
// PORT variable set by most hosting platforms.
func GetPort() string {
	if p := os.Getenv("VIDPRESS_PORT"); p != "" {
		return p
	}
	return getEnv("PORT", "3000")
}

// GetMaxUploadBytes returns the largest accepted upload (VIDPRESS_MAX_UPLOAD_MB, default 200).
func GetMaxUploadBytes() int64 {
	mb := getInt("VIDPRESS_MAX_UPLOAD_MB", 200)
	if mb <= 0 {
		mb = 200
	}
	return int64(mb) * megabyte
}

// GetSizeCeilingBytes returns the largest acceptable compressed output
// (VIDPRESS_MAX_OUTPUT_MB, default 45). Outputs above it are never uploaded.
func GetSizeCeilingBytes() int64 {
	mb := getInt("VIDPRESS_MAX_OUTPUT_MB", 45)
	if mb <= 0 {
		mb = 45
	}
	return int64(mb) * megabyte
}

// GetFFmpegPath returns the encoder binary (VIDPRESS_FFMPEG_PATH, default "ffmpeg").
func GetFFmpegPath() string {
	return getEnv("VIDPRESS_FFMPEG_PATH", "ffmpeg")
}

// GetEncodeTimeout bounds a single encoder run. Zero or negative disables the bound.
func GetEncodeTimeout() time.Duration {
	return getDuration("VIDPRESS_ENCODE_TIMEOUT", 30*time.Minute)
}

// GetMaxConcurrentJobs returns how many encoders may run at once.
func GetMaxConcurrentJobs() int {
	n := getInt("VIDPRESS_MAX_CONCURRENT_JOBS", 2)
	if n < 1 {
		return 1
	}
	return n
}

// GetDefaultBucket is used when a request does not name a bucket.
func GetDefaultBucket() string {
	return getEnv("VIDPRESS_DEFAULT_BUCKET", "videos")
}

// GetDefaultFolder is used when a request does not name a folder.
func GetDefaultFolder() string {
	return getEnv("VIDPRESS_DEFAULT_FOLDER", "interviews")
}

// GetAdminSecret returns the HS256 secret for admin tokens. Empty disables the
// admin endpoints.
func GetAdminSecret() string {
	return os.Getenv("VIDPRESS_ADMIN_SECRET")
}

// GetCORSOrigins returns the allowed CORS origins; "*" allows every origin.
func GetCORSOrigins() []string {
	raw := getEnv("VIDPRESS_CORS_ORIGINS", "*")
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetRateLimitPerMinute returns the per-IP limit for /compress. Zero disables it.
func GetRateLimitPerMinute() int {
	n := getInt("VIDPRESS_RATE_LIMIT_PER_MINUTE", 30)
	if n < 0 {
		return 0
	}
	return n
}

// GetSweepInterval returns how often orphaned temp files are swept.
func GetSweepInterval() time.Duration {
	return getDuration("VIDPRESS_SWEEP_INTERVAL", time.Hour)
}

// GetSweepMaxAge returns the age after which a temp file is considered orphaned.
// It must stay above the encode timeout so running jobs are never swept.
func GetSweepMaxAge() time.Duration {
	age := getDuration("VIDPRESS_SWEEP_MAX_AGE", 6*time.Hour)
	if t := GetEncodeTimeout(); t > 0 && age <= t {
		return 2 * t
	}
	return age
}

// GetLogLevel returns the configured log level name (debug, info, warn, error).
func GetLogLevel() string {
	return getEnv("VIDPRESS_LOG_LEVEL", "info")
}

// GetLogFile returns an optional path for a JSON log file.
func GetLogFile() string {
	return os.Getenv("VIDPRESS_LOG_FILE")
}

// GetPublicBaseURL returns the externally visible base URL used to build
// public links for backends that cannot derive one (sftp, directServe).
func GetPublicBaseURL() string {
	return strings.TrimRight(getEnv("VIDPRESS_PUBLIC_BASE_URL", "http://localhost:"+GetPort()), "/")
}
