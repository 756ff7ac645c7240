package postgres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"url credentials", "dial postgres://admin:s3cret@db:5432/vend failed", "dial postgres://***@db:5432/vend failed"},
		{"keyword password", "host=db password=s3cret user=admin", "host=db password=*** user=admin"},
		{"nothing to hide", "connection refused", "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(errors.New(tt.in)))
		})
	}
}
