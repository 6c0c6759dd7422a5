package ids

import (
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestCorrelationIDsSort(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()

	_, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.Len(t, a, 26)
	assert.True(t, a < b)
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(NewTransactionID()))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}
