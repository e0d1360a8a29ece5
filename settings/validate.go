package settings

import (
	"fmt"
	"strings"
)

// FieldError is a validation failure of one setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError of a Settings value.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid settings: " + e.Errors[0].Error()
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("invalid settings (%d errors): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Validate reports every out-of-range field of s.
func Validate(s Settings) error {
	var errs []FieldError

	if s.MultipleExportType < MergeAll || s.MultipleExportType > Archive {
		errs = append(errs, FieldError{Field: "multipleExportType", Message: fmt.Sprintf("must be 0, 1 or 2, got %d", int(s.MultipleExportType))})
	}
	if s.CellAction < CellNone || s.CellAction > CellCopy {
		errs = append(errs, FieldError{Field: "cellAction", Message: fmt.Sprintf("must be 0, 1 or 2, got %d", int(s.CellAction))})
	}
	switch s.TableFormat {
	case FormatCSV, FormatParquet:
	default:
		errs = append(errs, FieldError{Field: "tableFormat", Message: fmt.Sprintf("must be %q or %q, got %q", FormatCSV, FormatParquet, s.TableFormat)})
	}
	switch s.ParquetCompression {
	case "", "snappy", "gzip", "zstd":
	default:
		errs = append(errs, FieldError{Field: "parquetCompression", Message: fmt.Sprintf("unsupported codec %q", s.ParquetCompression)})
	}
	if s.CompressionLevel < -2 || s.CompressionLevel > 9 {
		errs = append(errs, FieldError{Field: "compressionLevel", Message: fmt.Sprintf("must be between -2 and 9, got %d", s.CompressionLevel)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
