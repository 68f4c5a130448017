package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDv7(t *testing.T) {
	a := GenerateUUIDv7()
	b := GenerateUUIDv7()

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, a, b)
}

func TestUnixMilliRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 123_000_000, time.UTC)
	assert.Equal(t, ts, UnixMilliToTime(TimeToUnixMilli(ts)))
}

func TestJSONHelpers(t *testing.T) {
	assert.NoError(t, ValidateJSON([]byte(`{"a":1}`)))
	assert.Error(t, ValidateJSON([]byte(`{"a":`)))

	assert.Equal(t, `{"a":1}`, string(Compact([]byte("{ \"a\" : 1 }"))))
	assert.Equal(t, "x\n", string(EnsureNewlineBytes([]byte("x"))))
	assert.Equal(t, "x\n", string(EnsureNewlineBytes([]byte("x\n"))))
	assert.Equal(t, "{\n  \"a\": 1\n}", PrettyPrint([]byte(`{"a":1}`)))
}
