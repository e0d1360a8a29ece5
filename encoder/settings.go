package encoder

import (
	"github.com/baldanca/metadata-export/record"
	"github.com/baldanca/metadata-export/settings"
)

// ForSettings returns the record encoder selected by s: JSON unless
// ExportAsCSV is set, then CSV or Parquet per TableFormat.
func ForSettings(s settings.Settings) Encoder {
	if !s.ExportAsCSV {
		return JSONEncoder{KeepBinary: s.KeepBinary, Pretty: s.PrettyJSON}
	}
	if s.TableFormat == settings.FormatParquet {
		return ParquetEncoder{KeepBinary: s.KeepBinary, Compression: s.ParquetCompression}
	}
	return CSVEncoder{KeepBinary: s.KeepBinary}
}

// ForValue is ForSettings for a single exported value: scalars are plain
// text, composite values follow the settings.
func ForValue(v record.Value, s settings.Settings) Encoder {
	if record.IsScalar(v) {
		return TextEncoder{}
	}
	return ForSettings(s)
}
