package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceAllowed(t *testing.T) {
	bound := "device-1"
	tests := []struct {
		name      string
		bound     *string
		presented string
		want      bool
	}{
		{"unbound account, no device", nil, "", true},
		{"unbound account, any device", nil, "device-9", true},
		{"bound account, matching device", &bound, "device-1", true},
		{"bound account, different device", &bound, "device-2", false},
		{"bound account, device omitted", &bound, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deviceAllowed(tt.bound, tt.presented))
		})
	}
}
