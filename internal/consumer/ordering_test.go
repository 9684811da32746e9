package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexibleTimestampVariants(t *testing.T) {
	got, ok := ParseFlexibleTimestamp("2024-01-02T03:04:05Z")
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.UTC, got.Location())

	got, ok = ParseFlexibleTimestamp(float64(1704164645000))
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())

	got, ok = ParseFlexibleTimestamp("1704164645000")
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())

	_, ok = ParseFlexibleTimestamp(nil)
	assert.False(t, ok)

	_, ok = ParseFlexibleTimestamp("not-a-timestamp")
	assert.False(t, ok)
}

func TestOrderingTimestampPriorityChain(t *testing.T) {
	bus := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	withProduced := map[string]any{
		"producedAt":  "2024-05-01T00:00:00Z",
		"publishedAt": "2024-06-01T00:00:00Z",
		"timestamp":   "2024-07-01T00:00:00Z",
	}
	got := OrderingTimestamp(withProduced, bus)
	assert.Equal(t, 5, int(got.Month()))

	withPublished := map[string]any{
		"publishedAt": "2024-06-01T00:00:00Z",
		"timestamp":   "2024-07-01T00:00:00Z",
	}
	got = OrderingTimestamp(withPublished, bus)
	assert.Equal(t, 6, int(got.Month()))

	withTimestamp := map[string]any{"timestamp": "2024-07-01T00:00:00Z"}
	got = OrderingTimestamp(withTimestamp, bus)
	assert.Equal(t, 7, int(got.Month()))

	fallback := map[string]any{}
	got = OrderingTimestamp(fallback, bus)
	assert.True(t, got.Equal(bus))
}

func TestNormalizeDocIDStripsUnsafeChars(t *testing.T) {
	assert.Equal(t, "a_b_c", NormalizeDocID("a/b/c"))
	assert.Equal(t, "a_b", NormalizeDocID("a   b"))
	assert.Equal(t, "unknown", NormalizeDocID(""))
	assert.Equal(t, "unknown", NormalizeDocID("///"))
	assert.LessOrEqual(t, len(NormalizeDocID(stringOfLen(500))), 256)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestChooseDocIDPrefersEventID(t *testing.T) {
	assert.Equal(t, "evt_1", ChooseDocID(map[string]any{"eventId": "evt_1"}, "msg_1"))
	assert.Equal(t, "msg_1", ChooseDocID(map[string]any{}, "msg_1"))
	assert.Equal(t, "msg_1", ChooseDocID(map[string]any{"eventId": ""}, "msg_1"))
}

func TestLWWKeyLess(t *testing.T) {
	early := LWWKey{PublishedAt: time.Unix(100, 0), MessageID: "b"}
	late := LWWKey{PublishedAt: time.Unix(200, 0), MessageID: "a"}
	assert.True(t, early.Less(late))
	assert.False(t, late.Less(early))

	tieA := LWWKey{PublishedAt: time.Unix(100, 0), MessageID: "a"}
	tieB := LWWKey{PublishedAt: time.Unix(100, 0), MessageID: "b"}
	assert.True(t, tieA.Less(tieB))
}

func TestMaxTimeIgnoresZero(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)
	assert.True(t, MaxTime(time.Time{}, t1, time.Time{}, t2).Equal(t2))
	assert.True(t, MaxTime().IsZero())
}
