package utils

import (
	"os"
	"os/exec"
)

// Terminate 请求进程退出(unix: SIGTERM, windows: TerminateProcess)
func Terminate(p *os.Process) error {
	return terminateProcess(p)
}

// BindToParent 让子进程随父进程退出，避免遗留孤儿进程（仅linux有效）
func BindToParent(cmd *exec.Cmd) {
	setParentDeathSignal(cmd)
}
