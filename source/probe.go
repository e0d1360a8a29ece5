package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dhowden/tag"

	"github.com/baldanca/metadata-export/record"
)

// Probe reads the tags of one media file and returns its metadata tree:
//
//	common  normalized fields (title, artist, track {no, of}, picture [...], ...)
//	format  tagTypes, container and size
//	native  the raw frames of the tag format, [{id, value}] sorted by id
//
// size is recorded as format.size when positive.
func Probe(r io.ReadSeeker, size int64) (*record.Record, error) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return nil, err
	}

	out := record.New(
		record.F("common", common(m)),
		record.F("format", format(m, size)),
	)
	if native := nativeFrames(m.Raw()); len(native) > 0 {
		out.Set("native", record.New(record.F(string(m.Format()), native)))
	}
	return out, nil
}

// ProbeFile is Probe on the file at path.
func ProbeFile(path string) (*record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("probe %s: is a directory", path)
	}
	r, err := Probe(f, st.Size())
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return nil, fmt.Errorf("probe %s: %w", path, err)
		}
		return nil, fmt.Errorf("probe %s: read tags: %w", path, err)
	}
	return r, nil
}

func common(m tag.Metadata) *record.Record {
	c := record.New()
	setString(c, "title", m.Title())
	setString(c, "artist", m.Artist())
	setString(c, "album", m.Album())
	setString(c, "albumartist", m.AlbumArtist())
	setString(c, "composer", m.Composer())
	if y := m.Year(); y > 0 {
		c.Set("year", record.Number(y))
	}
	if g := m.Genre(); g != "" {
		c.Set("genre", record.Array{record.String(g)})
	}
	c.Set("track", position(m.Track()))
	c.Set("disk", position(m.Disc()))
	if p := m.Picture(); p != nil {
		c.Set("picture", record.Array{picture(p)})
	}
	setString(c, "lyrics", m.Lyrics())
	setString(c, "comment", m.Comment())
	return c
}

func format(m tag.Metadata, size int64) *record.Record {
	f := record.New(
		record.F("tagTypes", record.Array{record.String(m.Format())}),
		record.F("container", record.String(m.FileType())),
	)
	if size > 0 {
		f.Set("size", record.Number(size))
	}
	return f
}

func position(n, of int) *record.Record {
	p := record.New(record.F("no", record.Null{}), record.F("of", record.Null{}))
	if n > 0 {
		p.Set("no", record.Number(n))
	}
	if of > 0 {
		p.Set("of", record.Number(of))
	}
	return p
}

func picture(p *tag.Picture) *record.Record {
	mime := p.MIMEType
	if mime == "" && p.Ext != "" {
		mime = "image/" + p.Ext
	}
	r := record.New()
	setString(r, "format", mime)
	setString(r, "type", p.Type)
	setString(r, "description", p.Description)
	r.Set("data", record.Binary{Data: p.Data})
	return r
}

func nativeFrames(raw map[string]any) record.Array {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(record.Array, 0, len(ids))
	for _, id := range ids {
		var v record.Value
		switch t := raw[id].(type) {
		case *tag.Picture:
			v = picture(t)
		default:
			v = record.From(t)
		}
		out = append(out, record.New(record.F("id", record.String(id)), record.F("value", v)))
	}
	return out
}

func setString(r *record.Record, key, v string) {
	if v != "" {
		r.Set(key, record.String(v))
	}
}
