package views

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRendersEmbeddedPages(t *testing.T) {
	e := New()
	require.NoError(t, e.Load())

	var buf bytes.Buffer
	err := e.Render(&buf, "login", map[string]interface{}{
		"Title":   "Log in",
		"CSRF":    "token-123",
		"Flashes": []string{"Please log in"},
		"Email":   "a@example.com",
	})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>Log in · LibraryHub</title>")
	assert.Contains(t, html, `name="_csrf" value="token-123"`)
	assert.Contains(t, html, "Please log in")
	assert.Contains(t, html, `value="a@example.com"`)
}

func TestEngineEscapesData(t *testing.T) {
	e := New()
	require.NoError(t, e.Load())

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "home", map[string]interface{}{
		"Error": "<script>alert(1)</script>",
	}))
	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestEngineLayoutOverride(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/hello.html":        {Data: []byte(`{{define "content"}}hello {{.}}{{end}}`)},
		"templates/layouts/base.html": {Data: []byte(`{{define "base"}}[{{template "content" .}}]{{end}}`)},
	}
	e := NewFromFS(fsys)
	require.NoError(t, e.Load())

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "hello", "world"))
	assert.Equal(t, "[hello world]", buf.String())

	buf.Reset()
	require.NoError(t, e.Render(&buf, "hello", "world", ""))
	assert.Equal(t, "hello world", buf.String())

	assert.Error(t, e.Render(&buf, "missing", nil))
}
