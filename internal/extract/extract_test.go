package extract

import (
	"strings"
	"testing"

	"ppls/internal/testpdf"
)

func TestDetect(t *testing.T) {
	cases := map[string]Format{
		"doc1.pdf":        FormatPDF,
		"doc1.PDF":        FormatPDF,
		"label":           FormatPDF,
		"label.htm":       FormatHTML,
		"label.HTML":      FormatHTML,
		"dir/label.html":  FormatHTML,
		"weird.pdf.html":  FormatHTML,
		"archive.htm.pdf": FormatPDF,
	}
	for locator, want := range cases {
		if got := Detect(locator); got != want {
			t.Errorf("Detect(%q)=%v want %v", locator, got, want)
		}
	}
}

func TestPDFSampleAndFull(t *testing.T) {
	blob := testpdf.Build(0,
		"First page label directions for use",
		"Second page storage and disposal",
		"Third page precautionary statements",
	)

	sampled, err := Sample(blob, FormatPDF, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sampled, "First page") || !strings.Contains(sampled, "Second page") {
		t.Fatalf("sample missing early pages: %q", sampled)
	}
	if strings.Contains(sampled, "Third page") {
		t.Fatalf("sample exceeded page cap: %q", sampled)
	}

	full := Full(blob, FormatPDF)
	if !strings.Contains(full, "Third page") {
		t.Fatalf("full extraction missing last page: %q", full)
	}
}

func TestPDFGarbageInput(t *testing.T) {
	if _, err := Sample([]byte("not a pdf at all"), FormatPDF, 2); err == nil {
		t.Fatal("expected error for garbage input")
	}
	if got := Full([]byte("not a pdf at all"), FormatPDF); got != "" {
		t.Fatalf("Full on garbage should be empty, got %q", got)
	}
}

func TestHTMLText(t *testing.T) {
	html := []byte(`<html><head><style>body{color:red}</style></head>
<body><script>var x=1;</script><h1>Label Title</h1><p>Keep out of reach of children.</p></body></html>`)

	text, err := Sample(html, FormatHTML, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Keep out of reach of children.") {
		t.Fatalf("text=%q", text)
	}
	if strings.Contains(text, "var x=1") || strings.Contains(text, "color:red") {
		t.Fatalf("script/style leaked: %q", text)
	}
}

func TestFullNormalizesNewlines(t *testing.T) {
	html := []byte("<html><body><pre>a\r\nb\n\n\n\n\nc</pre></body></html>")
	got := Full(html, FormatHTML)
	if strings.Contains(got, "\r") {
		t.Fatalf("carriage returns remain: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank-line runs remain: %q", got)
	}
}
