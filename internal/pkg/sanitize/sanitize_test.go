package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Dune  ", "Dune"},
		{"<b>Dune</b>", "Dune"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"<script>alert(1)</script>", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Text(tt.in), tt.in)
	}
}
