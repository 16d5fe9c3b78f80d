package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "999", Number(999))
	assert.Equal(t, "1,234,567", Number(1234567))
}

func TestNumberCompact(t *testing.T) {
	assert.Equal(t, "512", NumberCompact(512))
	assert.Equal(t, "1.5K", NumberCompact(1500))
	assert.Equal(t, "1.2M", NumberCompact(1234567))
	assert.Equal(t, "3.0B", NumberCompact(3_000_000_000))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "1.5 KiB", Bytes(1536))
	assert.Equal(t, "1.0 GiB", Bytes(1<<30))
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "never", RelativeTime(time.Time{}))
	assert.Contains(t, RelativeTime(time.Now().Add(-3*time.Hour)), "ago")
}

func TestCronDescription(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"0 3 * * *", "Daily at 3AM"},
		{"30 15 * * *", "Daily at 3:30PM"},
		{"0 0 * * *", "Daily at midnight"},
		{"0 12 * * *", "Daily at noon"},
		{"15 * * * *", "Every hour at :15"},
		{"0 * * * *", "Every hour"},
		{"*/10 * * * *", "Every 10 minutes"},
		{"0 4 * * 1", "Mondays at 4AM"},
		{"0 4 2 * *", "2nd of each month at 4AM"},
		{"0 4 * 6 *", "0 4 * 6 *"},
		{"@daily", "@daily"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, CronDescription(tt.expr))
		})
	}
}
