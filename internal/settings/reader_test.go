package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReaderInt(t *testing.T) {
	tests := []struct {
		name   string
		values map[Key]string
		key    Key
		def    int
		want   int
	}{
		{"present positive", map[Key]string{KeyTempMax: "35"}, KeyTempMax, 0, 35},
		{"present negative", map[Key]string{KeyTempMin: "-40"}, KeyTempMin, 0, -40},
		{"absent uses default", map[Key]string{}, KeyTempMin, -10, -10},
		{"unparseable uses default", map[Key]string{KeyTempMin: "not-a-number"}, KeyTempMin, -10, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.values)
			assert.Equal(t, tt.want, r.Int(tt.key, tt.def))
		})
	}
}

func TestReaderBool(t *testing.T) {
	tests := []struct {
		name   string
		values map[Key]string
		key    Key
		def    bool
		want   bool
	}{
		{"present true", map[Key]string{KeyRetentionDays: "1"}, KeyRetentionDays, false, true},
		{"present false-ish", map[Key]string{KeyRetentionDays: "0"}, KeyRetentionDays, true, false},
		{"absent uses default", map[Key]string{}, KeyRetentionDays, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.values)
			assert.Equal(t, tt.want, r.Bool(tt.key, tt.def))
		})
	}
}

func TestReaderList(t *testing.T) {
	tests := []struct {
		name   string
		values map[Key]string
		key    Key
		def    []string
		want   []string
	}{
		{"present csv", map[Key]string{KeyRetentionDays: "gmail, slack"}, KeyRetentionDays, nil, []string{"gmail", "slack"}},
		{"absent uses default", map[Key]string{}, KeyRetentionDays, []string{"gmail"}, []string{"gmail"}},
		{"empty string uses default", map[Key]string{KeyRetentionDays: ""}, KeyRetentionDays, []string{"gmail"}, []string{"gmail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.values)
			assert.Equal(t, tt.want, r.List(tt.key, tt.def))
		})
	}
}
