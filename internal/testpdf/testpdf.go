// Package testpdf builds small but structurally valid PDF fixtures with
// correct xref offsets, so extraction tests run against real parser input
// instead of checked-in binaries.
package testpdf

import (
	"fmt"
	"strings"
)

// Build returns a PDF with one page per element of pages, each page drawing
// its string as a single text run. When minBytes > 0 the file is padded with
// a comment line so size-gate tests can control the byte length.
func Build(minBytes int, pages ...string) []byte {
	base := render(0, pages)
	if pad := minBytes - len(base); pad > 0 {
		return render(pad, pages)
	}
	return base
}

// BuildScanned returns a PDF whose only page draws an image and carries no
// text operators, padded to at least minBytes. It stands in for a scanned
// label.
func BuildScanned(minBytes int) []byte {
	imgLen := minBytes
	if imgLen < 4 {
		imgLen = 4
	}
	imgData := strings.Repeat("\xff", imgLen)
	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(imgData), imgData)

	offsets[5] = b.Len()
	fmt.Fprintf(&b, "5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(drawStream), drawStream)

	writeXref(&b, offsets)
	return []byte(b.String())
}

func render(pad int, pages []string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	if pad > 0 {
		b.WriteString("%")
		b.WriteString(strings.Repeat(".", pad))
		b.WriteString("\n")
	}

	// 1: catalog, 2: page tree, 3: font, then page/content pairs.
	objCount := 3 + 2*len(pages)
	offsets := make([]int, objCount+1)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(pages))

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, text := range pages {
		pageObj := 4 + 2*i
		contentObj := pageObj + 1
		stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escape(text) + ") Tj\nET"

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", pageObj, contentObj)

		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, len(stream), stream)
	}

	writeXref(&b, offsets)
	return []byte(b.String())
}

func writeXref(b *strings.Builder, offsets []int) {
	xrefOffset := b.Len()
	fmt.Fprintf(b, "xref\n0 %d\n", len(offsets))
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xrefOffset)
}

func escape(text string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(text)
}
