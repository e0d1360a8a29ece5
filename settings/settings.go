// Package settings holds the switches that shape an export.
//
// A Settings value is immutable once handed to an exporter: callers load
// it, change it with Set, and persist it with Save explicitly.
package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// ExportMode selects how "export all" lays out its outputs.
type ExportMode int

const (
	// MergeAll renders every record into one output file.
	MergeAll ExportMode = iota
	// Individual delivers one output file per record.
	Individual
	// Archive bundles one output file per record into a zip.
	Archive
)

func (m ExportMode) String() string {
	switch m {
	case MergeAll:
		return "merge"
	case Individual:
		return "individual"
	case Archive:
		return "archive"
	}
	return "ExportMode(" + strconv.Itoa(int(m)) + ")"
}

// CellAction is what happens when a single value is exported.
type CellAction int

const (
	CellNone CellAction = iota
	CellDownload
	CellCopy
)

func (a CellAction) String() string {
	switch a {
	case CellNone:
		return "none"
	case CellDownload:
		return "download"
	case CellCopy:
		return "copy"
	}
	return "CellAction(" + strconv.Itoa(int(a)) + ")"
}

// Table formats used when ExportAsCSV is set.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// DefaultCompressionLevel matches flate.DefaultCompression.
const DefaultCompressionLevel = -1

type Settings struct {
	// KeepBinary keeps raw binary payloads instead of eliding them.
	KeepBinary bool `yaml:"keepBinary"`
	// ExportAsCSV picks the table renderer over JSON.
	ExportAsCSV bool `yaml:"exportAsCsv"`
	// MultipleExportType drives "export all".
	MultipleExportType ExportMode `yaml:"multipleExportType"`

	DownloadAlbumArt bool       `yaml:"downloadAlbumArt"`
	CellAction       CellAction `yaml:"cellAction"`
	// TableFormat is "csv" or "parquet"; only read when ExportAsCSV is set.
	TableFormat        string `yaml:"tableFormat"`
	ParquetCompression string `yaml:"parquetCompression"`
	PrettyJSON         bool   `yaml:"prettyJSON"`
	// CompressionLevel is the deflate level of archive entries (-1..9).
	CompressionLevel int `yaml:"compressionLevel"`
}

// Default returns the settings of a fresh install.
func Default() Settings {
	return Settings{
		MultipleExportType: MergeAll,
		CellAction:         CellNone,
		TableFormat:        FormatCSV,
		CompressionLevel:   DefaultCompressionLevel,
	}
}

func applyDefaults(s *Settings) {
	if s.TableFormat == "" {
		s.TableFormat = FormatCSV
	}
}

// Keys lists the settable keys in their persisted spelling.
func Keys() []string {
	return []string{
		"keepBinary", "exportAsCsv", "multipleExportType", "downloadAlbumArt",
		"cellAction", "tableFormat", "parquetCompression", "prettyJSON", "compressionLevel",
	}
}

// Set returns a copy of s with key changed to value. The result is
// validated.
func (s Settings) Set(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	var err error
	switch strings.ToLower(key) {
	case "keepbinary":
		s.KeepBinary, err = strconv.ParseBool(value)
	case "exportascsv":
		s.ExportAsCSV, err = strconv.ParseBool(value)
	case "multipleexporttype":
		var n int
		n, err = strconv.Atoi(value)
		s.MultipleExportType = ExportMode(n)
	case "downloadalbumart":
		s.DownloadAlbumArt, err = strconv.ParseBool(value)
	case "cellaction":
		var n int
		n, err = strconv.Atoi(value)
		s.CellAction = CellAction(n)
	case "tableformat":
		s.TableFormat = strings.ToLower(value)
	case "parquetcompression":
		s.ParquetCompression = strings.ToLower(value)
	case "prettyjson":
		s.PrettyJSON, err = strconv.ParseBool(value)
	case "compressionlevel":
		s.CompressionLevel, err = strconv.Atoi(value)
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return s, fmt.Errorf("setting %s: %w", key, err)
	}
	if err := Validate(s); err != nil {
		return s, err
	}
	return s, nil
}
