//go:build !linux

package utils

import (
	"os/exec"
)

// 其他平台没有parent-death信号，依赖CloudflaredManager.Close()回收子进程
func setParentDeathSignal(cmd *exec.Cmd) {
}
