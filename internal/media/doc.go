// Package media inspects downloaded article images.
//
// Images are read back from disk before they are archived. The inspection
// records file sizes and a small set of EXIF tags (camera, software,
// timestamps, authorship and GPS) so the run report can show where pictures
// came from.
package media
