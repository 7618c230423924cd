package hostfunc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument("Weekly", []string{"one", "two"})

	want := `<!DOCTYPE html><html><head><meta charset="UTF-8">` +
		`<title>Weekly</title>` +
		`<style>body{font-family:Arial;margin:40px;}h1{color:#333;}</style>` +
		`</head><body><h1>Weekly</h1><p>one</p><p>two</p></body></html>`
	assert.Equal(t, want, doc)
}

func TestBuildDocumentParagraphOrder(t *testing.T) {
	doc := BuildDocument("t", []string{"c", "a", "b"})

	assert.Less(t, strings.Index(doc, "<p>c</p>"), strings.Index(doc, "<p>a</p>"))
	assert.Less(t, strings.Index(doc, "<p>a</p>"), strings.Index(doc, "<p>b</p>"))
}

func TestBuildDocumentNoEscaping(t *testing.T) {
	doc := BuildDocument("t", []string{"<b>bold</b>"})
	assert.Contains(t, doc, "<p><b>bold</b></p>")
}

func TestBuildDocumentEmpty(t *testing.T) {
	doc := BuildDocument("", nil)
	assert.NotContains(t, doc, "<p>")
	assert.Contains(t, doc, "<h1></h1>")
}
