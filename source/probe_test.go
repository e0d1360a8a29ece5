package source

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/baldanca/metadata-export/record"
)

// id3v23 builds a minimal ID3v2.3 tag holding the given frames.
func id3v23(frames ...[]byte) []byte {
	body := bytes.Join(frames, nil)
	size := len(body)
	hdr := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)}
	return append(hdr, body...)
}

func frame(id string, data []byte) []byte {
	out := []byte(id)
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, 0, 0)
	return append(out, data...)
}

func textFrame(id, text string) []byte {
	return frame(id, append([]byte{0}, text...))
}

func apicFrame(mime string, data []byte) []byte {
	b := []byte{0}
	b = append(b, mime...)
	b = append(b, 0, 3, 0)
	return frame("APIC", append(b, data...))
}

func sampleTag() []byte {
	return id3v23(
		textFrame("TIT2", "Song"),
		textFrame("TPE1", "Band"),
		textFrame("TRCK", "3/12"),
		apicFrame("image/png", []byte{0x89, 'P', 'N', 'G'}),
	)
}

func TestProbe_ID3v2(t *testing.T) {
	md, err := Probe(bytes.NewReader(sampleTag()), 1234)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	common, ok := md.Sub("common")
	if !ok {
		t.Fatalf("no common section: %v", md.Keys())
	}
	if v, _ := common.Get("title"); record.Text(v) != "Song" {
		t.Fatalf("title = %v", v)
	}
	if v, _ := common.Get("artist"); record.Text(v) != "Band" {
		t.Fatalf("artist = %v", v)
	}
	track, _ := common.Sub("track")
	if no, _ := track.Get("no"); no != record.Number(3) {
		t.Fatalf("track.no = %v", no)
	}
	if of, _ := track.Get("of"); of != record.Number(12) {
		t.Fatalf("track.of = %v", of)
	}
	disk, _ := common.Sub("disk")
	if no, _ := disk.Get("no"); no != (record.Null{}) {
		t.Fatalf("disk.no = %v", no)
	}

	pics, _ := common.Get("picture")
	list, ok := pics.(record.Array)
	if !ok || len(list) != 1 {
		t.Fatalf("picture = %v", pics)
	}
	pic := list[0].(*record.Record)
	if f, _ := pic.Get("format"); record.Text(f) != "image/png" {
		t.Fatalf("picture format = %v", f)
	}
	if d, _ := pic.Get("data"); !bytes.Equal(d.(record.Binary).Data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("picture data = %v", d)
	}

	format, _ := md.Sub("format")
	if v, _ := format.Get("size"); v != record.Number(1234) {
		t.Fatalf("format.size = %v", v)
	}
	if v, _ := format.Get("container"); record.Text(v) != "MP3" {
		t.Fatalf("format.container = %v", v)
	}

	native, _ := md.Sub("native")
	frames, _ := native.Get("ID3v2.3")
	arr, ok := frames.(record.Array)
	if !ok || len(arr) != 4 {
		t.Fatalf("native frames = %v", frames)
	}
	var ids []string
	for _, f := range arr {
		id, _ := f.(*record.Record).Get("id")
		ids = append(ids, record.Text(id))
	}
	if ids[0] != "APIC" || ids[3] != "TRCK" {
		t.Fatalf("frame ids not sorted: %v", ids)
	}
}

func TestProbe_NotAMediaFile(t *testing.T) {
	if _, err := Probe(bytes.NewReader([]byte("this is not audio at all")), 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestProbeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(p, sampleTag(), 0o644); err != nil {
		t.Fatal(err)
	}
	md, err := ProbeFile(p)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	format, _ := md.Sub("format")
	if v, _ := format.Get("size"); v != record.Number(len(sampleTag())) {
		t.Fatalf("size = %v", v)
	}

	if _, err := ProbeFile(dir); err == nil {
		t.Fatalf("expected error for a directory")
	}
	if _, err := ProbeFile(filepath.Join(dir, "missing.mp3")); !os.IsNotExist(err) {
		t.Fatalf("err = %v", err)
	}
}
