package readability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	html := `<html><head><title> Release Notes </title>
<style>body { color: red }</style></head>
<body><script>var x = 1;</script>
<h1>Release   Notes</h1>
<p>Version 2.1 ships
today.</p></body></html>`

	page, err := Extract(html)
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", page.Title)
	assert.Equal(t, "Release Notes Version 2.1 ships today.", page.Text)
}

func TestExtractStripsScriptsAndStyles(t *testing.T) {
	page, err := Extract(`<body><script>alert("x")</script><p>kept</p><style>.a{}</style></body>`)
	require.NoError(t, err)
	assert.Equal(t, "kept", page.Text)
}

func TestExtractEmptyDocument(t *testing.T) {
	_, err := Extract(`<html><head><title>only a title</title></head><body>  </body></html>`)
	assert.Error(t, err)
}
