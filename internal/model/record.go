package model

import (
	"encoding/hex"
	"sort"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// NewsRecord is one article extracted from the search results.
// Two records are the same record when every field is equal.
type NewsRecord struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	Date                  Date   `json:"date"`
	ImagePath             string `json:"picture"`
	TitleMatchCount       int    `json:"search_text_in_title"`
	DescriptionMatchCount int    `json:"search_text_in_description"`
	ContainsAmount        bool   `json:"is_contains_amount"`
}

// Fingerprint returns a hex SHA3-256 digest over all fields of r.
// Equal records always produce equal fingerprints.
func (r NewsRecord) Fingerprint() string {
	h := sha3.New256()
	for _, field := range []string{
		r.Title,
		r.Description,
		r.Date.String(),
		r.ImagePath,
		strconv.Itoa(r.TitleMatchCount),
		strconv.Itoa(r.DescriptionMatchCount),
		strconv.FormatBool(r.ContainsAmount),
	} {
		// Length prefix keeps ("ab","c") and ("a","bc") apart.
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{':'})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ResultSet is an unordered collection of unique records.
// It remembers the extraction index at which each record was first seen so
// that the exported order is deterministic for records sharing a date.
type ResultSet struct {
	index map[NewsRecord]int
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[NewsRecord]int)}
}

// Add inserts r, seen at the given extraction index. It reports whether r was
// new; adding an equal record again keeps the first index.
func (s *ResultSet) Add(r NewsRecord, extractionIndex int) bool {
	if _, ok := s.index[r]; ok {
		return false
	}
	s.index[r] = extractionIndex
	return true
}

// Contains reports whether an equal record is in the set.
func (s *ResultSet) Contains(r NewsRecord) bool {
	_, ok := s.index[r]
	return ok
}

// Len returns the number of unique records.
func (s *ResultSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}

// IsEmpty reports whether the set holds no records.
func (s *ResultSet) IsEmpty() bool {
	return s.Len() == 0
}

// Sorted returns the records ordered by date, newest first. Records with the
// same date keep their extraction order.
func (s *ResultSet) Sorted() []NewsRecord {
	if s == nil {
		return nil
	}

	type entry struct {
		record NewsRecord
		index  int
	}
	entries := make([]entry, 0, len(s.index))
	for r, idx := range s.index {
		entries = append(entries, entry{record: r, index: idx})
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].record.Date.Compare(entries[j].record.Date); c != 0 {
			return c > 0
		}
		return entries[i].index < entries[j].index
	})

	records := make([]NewsRecord, len(entries))
	for i, e := range entries {
		records[i] = e.record
	}
	return records
}
