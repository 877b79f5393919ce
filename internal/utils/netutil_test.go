package utils

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPortAvailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	assert.False(t, CheckPortAvailable(port))
	l.Close()
	assert.True(t, CheckPortAvailable(port))
}

func TestPickRandomPortInRange(t *testing.T) {
	for i := 0; i < 5; i++ {
		port := PickRandomPort(8100, 9000)
		assert.GreaterOrEqual(t, port, 8100)
		assert.LessOrEqual(t, port, 9000)
	}
	assert.Equal(t, 8500, PickRandomPort(8500, 8500))
}
