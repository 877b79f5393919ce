package utils

import (
	"fmt"
	"math/rand"
	"net"
	"time"
)

func CheckPortAvailable(port int) bool {
	timeout := time.Second
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		// 连接失败，说明端口可用
		return true
	}
	conn.Close()
	// 连接成功，说明端口已被占用
	return false
}

/**
 * Pick a random free port in [min, max]
 * @param {int} min - Lowest candidate port
 * @param {int} max - Highest candidate port
 * @returns {int} Returns a port nobody listens on, or a random candidate when all probes fail
 * @description
 * - Tries up to 20 random candidates, a candidate must be listenable on 127.0.0.1
 * - The result is only a hint: another process may bind the port before cloudflared does
 */
func PickRandomPort(min, max int) int {
	if max < min {
		min, max = max, min
	}
	span := max - min + 1
	candidate := min + rand.Intn(span)
	for i := 0; i < 20; i++ {
		if CheckPortAvailable(candidate) && checkPortListenable(candidate) {
			return candidate
		}
		candidate = min + rand.Intn(span)
	}
	return candidate
}
