package job

import (
	"fmt"
	"path"
	"strings"
	"time"

	"vidpress/utils"

	"github.com/gosimple/slug"
)

const (
	maxNameLength = 80
	keySuffixLen  = 6
)

// UploadKey builds the object key for a published video:
//
//	{folder}/{unix millis}-{slugged original name}-{6 random chars}{ext}
//
// The random suffix keeps two uploads of the same file in the same
// millisecond from colliding. Keys never start with "/" and never contain
// "." or ".." segments.
func UploadKey(folder, originalName, ext string, now time.Time) (string, error) {
	suffix, err := utils.GenerateRNS(keySuffixLen)
	if err != nil {
		return "", fmt.Errorf("failed to generate key suffix: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s%s", now.UnixMilli(), baseSlug(originalName), suffix, ext)
	if f := cleanFolder(folder); f != "" {
		return f + "/" + name, nil
	}
	return name, nil
}

// baseSlug strips directories and the extension from a client file name and
// reduces it to a URL-safe slug.
func baseSlug(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	s := slug.Make(base)
	if len(s) > maxNameLength {
		s = strings.Trim(s[:maxNameLength], "-")
	}
	if s == "" {
		return "video"
	}
	return s
}

func cleanFolder(folder string) string {
	var parts []string
	for _, seg := range strings.Split(strings.ReplaceAll(folder, "\\", "/"), "/") {
		if s := slug.Make(seg); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
