package library

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips page stamps",
			in:   "the voyage began\n12_Book.indb 345\nthe crew assembled",
			want: "the voyage began\n\nthe crew assembled",
		},
		{
			name: "collapses horizontal whitespace",
			in:   "the   voyage\t\tbegan",
			want: "the voyage began",
		},
		{
			name: "preserves paragraph boundaries",
			in:   "first paragraph\n\n\n\n\nsecond paragraph",
			want: "first paragraph\n\nsecond paragraph",
		},
		{
			name: "trims trailing space before newline",
			in:   "first line   \nsecond line",
			want: "first line\nsecond line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q)\ngot  %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegistrySelection(t *testing.T) {
	r := NewExtractorRegistry()

	tests := []struct {
		filename  string
		supported bool
	}{
		{"moby.pdf", true},
		{"MOBY.PDF", true},
		{"iliad.epub", true},
		{"notes.docx", true},
		{"plain.txt", true},
		{"archive.rar", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			_, err := r.Get(tt.filename)
			if tt.supported && err != nil {
				t.Errorf("expected %s to be supported: %v", tt.filename, err)
			}
			if !tt.supported {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("expected ErrUnsupportedFormat for %s, got %v", tt.filename, err)
				}
				if r.Supports(tt.filename) {
					t.Errorf("Supports(%s) = true", tt.filename)
				}
			}
		})
	}
}

func TestPlainTextExtract(t *testing.T) {
	e := &PlainTextExtractor{}
	result, err := e.Extract(strings.NewReader("  hello world\n\nsecond paragraph  \n"), "plain.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "hello world\n\nsecond paragraph" {
		t.Errorf("unexpected text: %q", result.Text)
	}
}

// buildEPUB 在内存中构造一个最小可用的 EPUB 容器。
func buildEPUB(t *testing.T, chapters map[string]string, spine []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spineRefs strings.Builder
	for id := range chapters {
		manifest.WriteString(`<item id="` + id + `" href="` + id + `.xhtml" media-type="application/xhtml+xml"/>` + "\n")
	}
	manifest.WriteString(`<item id="css" href="style.css" media-type="text/css"/>` + "\n")
	for _, id := range spine {
		spineRefs.WriteString(`<itemref idref="` + id + `"/>` + "\n")
	}

	write("OEBPS/content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <manifest>
`+manifest.String()+`  </manifest>
  <spine>
`+spineRefs.String()+`  </spine>
</package>`)

	write("OEBPS/style.css", "body { margin: 0; }")
	for id, text := range chapters {
		write("OEBPS/"+id+".xhtml", `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head></head>
<body><p>`+text+`</p></body></html>`)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEPUBExtract(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"ch1": "Call me Ishmael. Some years ago I went to sea.",
		"ch2": "It is a way I have of driving off the spleen.",
	}, []string{"ch1", "ch2"})

	e := &EPUBExtractor{}
	result, err := e.Extract(bytes.NewReader(data), "moby.epub")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Items != 2 {
		t.Errorf("expected 2 content items, got %d", result.Items)
	}
	if strings.Contains(result.Text, "<") {
		t.Errorf("markup survived extraction: %q", result.Text)
	}
	if strings.Contains(result.Text, "margin") {
		t.Errorf("stylesheet leaked into text: %q", result.Text)
	}

	// spine 顺序决定文本顺序
	first := strings.Index(result.Text, "Call me Ishmael")
	second := strings.Index(result.Text, "driving off the spleen")
	if first < 0 || second < 0 {
		t.Fatalf("chapter text missing: %q", result.Text)
	}
	if first > second {
		t.Error("chapters out of spine order")
	}
}

func TestEPUBExtractReversedSpine(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"ch1": "First written chapter.",
		"ch2": "Second written chapter.",
	}, []string{"ch2", "ch1"})

	e := &EPUBExtractor{}
	result, err := e.Extract(bytes.NewReader(data), "reversed.epub")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !strings.HasPrefix(result.Text, "Second written chapter.") {
		t.Errorf("spine order not honored: %q", result.Text)
	}
}

func TestEPUBExtractMalformed(t *testing.T) {
	e := &EPUBExtractor{}
	if _, err := e.Extract(strings.NewReader("not a zip archive"), "broken.epub"); err == nil {
		t.Fatal("expected error for malformed epub")
	}
}

func TestStripMarkup(t *testing.T) {
	in := `<div><p>First paragraph.</p><p>Second &amp; third.</p><script>alert(1)</script></div>`
	got := stripMarkup(in)

	if strings.Contains(got, "alert") {
		t.Errorf("script content survived: %q", got)
	}
	if !strings.Contains(got, "Second & third.") {
		t.Errorf("entity not unescaped: %q", got)
	}
	if !strings.Contains(got, "First paragraph.\n\n") {
		t.Errorf("paragraph boundary lost: %q", got)
	}
}
