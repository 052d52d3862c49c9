package docs

import (
	"os"
	"regexp"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

// generatedMarker is the line go tooling uses to skip generated files
var generatedMarker = regexp.MustCompile(`(?m)^// Code generated .* DO NOT EDIT\.?$`)

func TestDocsAreNotMarkedGenerated(t *testing.T) {
	src, err := os.ReadFile("docs.go")
	require.NoError(t, err)
	assert.False(t, generatedMarker.Match(src), "docs.go is maintained by hand")
}

func TestRegisteredDocDescribesAPI(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]interface{} `json:"paths"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(raw, &doc))
	assert.Equal(t, "LibraryHub API", doc.Info.Title)
	for _, path := range []string{"/books/", "/bookcheckout/", "/bookcheckout/return/", "/users/{id}/"} {
		assert.Contains(t, doc.Paths, path)
	}
}
