package notifierhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseItemStatus(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		status      ItemStatus
		expectError bool
	}{
		{"Passive", "Passive", ItemStatusPassive, false},
		{"Active", "Active", ItemStatusActive, false},
		{"NeedsAttention", "NeedsAttention", ItemStatusNeedsAttention, false},
		{"Wrong case", "active", "", true},
		{"Empty string", "", "", true},
		{"Unknown value", "Banana", "", true},
		{"Surrounding whitespace", " Active ", "", true},
		{"Prefix only", "Need", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := ParseItemStatus(tt.input)
			if tt.expectError {
				assert.Error(t, err)

				var statusErr *InvalidStatusError
				assert.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.input, statusErr.Value)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.status, status)
		})
	}
}
