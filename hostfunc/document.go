package hostfunc

import "strings"

const documentStyle = `<style>body{font-family:Arial;margin:40px;}h1{color:#333;}</style>`

// BuildDocument renders a minimal HTML document: one heading from title and
// one paragraph per entry, in order. Content is inserted verbatim; callers
// are trusted.
func BuildDocument(title string, paragraphs []string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	b.WriteString("<title>" + title + "</title>")
	b.WriteString(documentStyle)
	b.WriteString("</head><body>")
	b.WriteString("<h1>" + title + "</h1>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
