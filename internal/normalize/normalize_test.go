package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"positive offset", "20240115080000 +0100", time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC), true},
		{"negative offset", "20240115080000 -0500", time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), true},
		{"no whitespace", "20240115080000+0000", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), true},
		{"extra whitespace", "20240115080000   +0000", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), true},
		{"crosses midnight", "20240101003000 +0100", time.Date(2023, 12, 31, 23, 30, 0, 0, time.UTC), true},
		{"leap day", "20240229120000 +0000", time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), true},
		{"garbage", "bad-date", time.Time{}, false},
		{"wrong digit count", "202401150800 +0100", time.Time{}, false},
		{"missing offset", "20240115080000", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"impossible day", "20230229120000 +0000", time.Time{}, false},
		{"impossible month", "20241315120000 +0000", time.Time{}, false},
		{"impossible hour", "20240115250000 +0000", time.Time{}, false},
		{"leading space", " 20240115080000 +0000", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts, ok := ParseTimestamp("20240115080000 +0100")
	require.True(t, ok)
	assert.Equal(t, int64(1705302000000), ToMillis(ts))
	assert.True(t, ts.Equal(FromMillis(ToMillis(ts))))
}

func TestNormalizeChannelID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"RAI 1!", "rai1"},
		{"rai1.it", "rai1.it"},
		{"RAI1.it", "rai1.it"},
		{"  Canale_5 HD ", "canale_5hd"},
		{"Sky-Sport/24", "skysport24"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeChannelID(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeChannelID(got), "must be idempotent")
		})
	}
}

func TestDisplayOffset(t *testing.T) {
	instant := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	t.Run("valid offsets", func(t *testing.T) {
		assert.Equal(t, "09:00", FormatForDisplay(instant, "+1:00"))
		assert.Equal(t, "10:00", FormatForDisplay(instant, "+02:00"))
		assert.Equal(t, "02:30", FormatForDisplay(instant, "-5:30"))
		assert.Equal(t, "13:45", FormatForDisplay(instant, "+5:45"))
	})

	t.Run("invalid offsets fall back", func(t *testing.T) {
		for _, spec := range []string{"", "1:00", "+100", "+1:0", "+1:75", "UTC", "+123:00"} {
			assert.Equal(t, "09:00", FormatForDisplay(instant, spec), spec)
			assert.False(t, ValidDisplayOffset(spec), spec)
			assert.Equal(t, DefaultDisplayOffset, ParseDisplayOffset(spec).String())
		}
	})

	t.Run("zero value uses default", func(t *testing.T) {
		var off DisplayOffset
		assert.Equal(t, "09:00", off.Format(instant))
		assert.Equal(t, DefaultDisplayOffset, off.String())
	})
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", FirstNonEmpty("x", "", "  ", "a", "b"))
	assert.Equal(t, "trimmed", FirstNonEmpty("x", "  trimmed \n"))
	assert.Equal(t, "x", FirstNonEmpty("x", "", "\t"))
	assert.Equal(t, "", FirstNonEmpty(""))
}
