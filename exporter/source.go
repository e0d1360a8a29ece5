package exporter

import (
	"path"
	"strconv"
	"strings"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/record"
)

// DefaultPictureFormat is assumed for pictures without a format.
const DefaultPictureFormat = "image/jpeg"

// WithFilename returns the source metadata with common.filename set to
// the source path. The input tree is left untouched; sources without a
// common section are returned as is.
func WithFilename(src Source) *record.Record {
	common, ok := src.Metadata.Sub("common")
	if !ok {
		return src.Metadata
	}
	common = common.Clone().Set("filename", record.String(src.Path))
	return src.Metadata.Clone().Set("common", common)
}

// Picture is one embedded image of a source.
type Picture struct {
	Format string
	Data   []byte
}

// Pictures returns the images listed under common.picture.
func Pictures(src Source) []Picture {
	common, ok := src.Metadata.Sub("common")
	if !ok {
		return nil
	}
	v, ok := common.Get("picture")
	if !ok {
		return nil
	}
	list, ok := v.(record.Array)
	if !ok {
		return nil
	}

	var out []Picture
	for _, item := range list {
		pic, ok := item.(*record.Record)
		if !ok {
			continue
		}
		p := Picture{Format: DefaultPictureFormat}
		if f, ok := pic.Get("format"); ok {
			if s := record.Text(f); s != "" {
				p.Format = s
			}
		}
		if d, ok := pic.Get("data"); ok {
			if b, ok := d.(record.Binary); ok {
				p.Data = b.Data
			}
		}
		out = append(out, p)
	}
	return out
}

// AlbumArt returns the picture assets of src, named
// "<dir of Path>/<base name> [i].<format subtype>". The index is only
// present when the source has more than one picture.
func AlbumArt(src Source) []batcher.Item {
	pics := Pictures(src)
	if len(pics) == 0 {
		return nil
	}

	dir := path.Dir(src.Path)
	if dir == "." {
		dir = ""
	} else {
		dir += "/"
	}
	base := trimExt(src.Name)

	out := make([]batcher.Item, len(pics))
	for i, p := range pics {
		name := dir + base
		if len(pics) > 1 {
			name += " [" + strconv.Itoa(i) + "]"
		}
		name += "." + subtype(p.Format)
		out[i] = batcher.Item{Payload: p.Data, Name: name, ContentType: p.Format}
	}
	return out
}

func subtype(format string) string {
	if i := strings.LastIndex(format, "/"); i >= 0 {
		return format[i+1:]
	}
	return format
}
