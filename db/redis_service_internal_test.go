package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "session:abc", getSessionKey("abc"))
	assert.Equal(t, "report:lock:att-1", getReportLockKey("att-1"))

	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
