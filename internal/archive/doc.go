// Package archive packs downloaded images into a zip file and removes the
// images directory afterwards.
package archive
