package media

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/newsharvest/internal/model"
)

// maxImageSize bounds how much of a file is read for EXIF extraction.
const maxImageSize = 5 * 1024 * 1024

// interestingTags are the EXIF tags copied into model.ImageInfo.
var interestingTags = map[string]bool{
	"Make":               true,
	"Model":              true,
	"Software":           true,
	"DateTime":           true,
	"DateTimeOriginal":   true,
	"Artist":             true,
	"Copyright":          true,
	"GPSLatitude":        true,
	"GPSLongitude":       true,
	"GPSLatitudeRef":     true,
	"GPSLongitudeRef":    true,
	"ImageDescription":   true,
	"ProcessingSoftware": true,
}

// Inspect reads the image at path and returns its metadata.
// A file without EXIF data is not an error.
func Inspect(path string) (model.ImageInfo, error) {
	info := model.ImageInfo{Path: path}

	st, err := os.Stat(path)
	if err != nil {
		return info, fmt.Errorf("failed to stat image: %w", err)
	}
	info.Size = st.Size()

	f, err := os.Open(path) //nolint:gosec // path comes from the images directory
	if err != nil {
		return info, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data := make([]byte, min(st.Size(), maxImageSize))
	if _, err := io.ReadFull(f, data); err != nil {
		return info, fmt.Errorf("failed to read image: %w", err)
	}

	info.Tags = Tags(data)
	info.HasEXIF = len(info.Tags) > 0
	return info, nil
}

// Tags extracts the interesting EXIF tags from image bytes.
// It returns nil when the data carries no EXIF block.
func Tags(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var tags map[string]string
	for _, entry := range entries {
		if !interestingTags[entry.TagName] {
			continue
		}
		value := strings.TrimSpace(entry.Formatted)
		if value == "" {
			continue
		}
		if tags == nil {
			tags = make(map[string]string)
		}
		tags[entry.TagName] = value
	}
	return tags
}

// InspectDir inspects every regular file below dir, sorted by path.
// Files that cannot be read are skipped.
func InspectDir(ctx context.Context, dir string) ([]model.ImageInfo, error) {
	var images []model.ImageInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, inspectErr := Inspect(path)
		if inspectErr != nil {
			return nil //nolint:nilerr // unreadable files are left out of the report
		}
		images = append(images, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect images: %w", err)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path < images[j].Path
	})
	return images, nil
}
