package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"sensors.temp", "sensors.temp", true},
		{"sensors.temp", "sensors.humidity", false},
		{"sensors.temp", "sensors.temp.celsius", false},
		{"sensors.*", "sensors.temp", true},
		{"sensors.*", "sensors.temp.celsius", false},
		{"sensors.*.celsius", "sensors.temp.celsius", true},
		{"sensors.*.celsius", "sensors.temp.fahrenheit", false},
		{"sensors.>", "sensors.temp", true},
		{"sensors.>", "sensors.temp.celsius", true},
		{"sensors.>", "sensors", false},
		{">", "anything", true},
		{">", "a.b.c", true},
		{"*", "one", true},
		{"*", "one.two", false},
		{"a.*.>", "a.b.c", true},
		{"a.*.>", "a.b", false},
		{"", "", true},
		{"a.b", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectMatches(tt.pattern, tt.subject))
		})
	}
}

func TestHasWildcard(t *testing.T) {
	assert.False(t, HasWildcard("sensors.temp"))
	assert.True(t, HasWildcard("sensors.*"))
	assert.True(t, HasWildcard("sensors.>"))
	assert.True(t, HasWildcard("*.temp"))
	// Wildcard characters inside a token are literals, not wildcards
	assert.False(t, HasWildcard("sensors.temp*"))
}
