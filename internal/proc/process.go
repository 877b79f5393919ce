package proc

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"quickflare/internal/logger"
	"quickflare/internal/models"
	"quickflare/internal/utils"
)

// DefaultStopGrace 发送终止信号后等待进程自行退出的时间，超时则强制kill
const DefaultStopGrace = time.Second

// CommandFactory builds the exec.Cmd for a process, exec.Command by default
type CommandFactory func(name string, args ...string) *exec.Cmd

/**
 * ProcessInstance 进程实例信息
 * @property {string} Title - 进程标题，用于日志显示
 * @property {string} Command - 执行命令
 * @property {[]string} Args - 命令参数
 * @property {RunStatus} Status - 进程状态: running/exited/stopped/error
 * @property {time.Time} StartTime - 启动时间
 * @property {time.Time} LastExitTime - 最后退出时间
 * @property {string} LastExitReason - 最后退出原因
 */
type ProcessInstance struct {
	Title          string
	Command        string
	Args           []string
	Status         models.RunStatus
	StartTime      time.Time
	LastExitTime   time.Time
	LastExitReason string
	newCmd         CommandFactory
	process        *os.Process   //当前子进程
	done           chan struct{} //子进程被回收后关闭
	mutex          sync.Mutex
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {string} title - 进程标题
 * @param {string} command - 执行命令
 * @param {[]string} args - 命令参数
 * @returns {*ProcessInstance} 返回创建的进程实例，尚未启动
 */
func NewProcessInstance(title, command string, args []string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: command,
		Args:    args,
		Status:  models.StatusExited,
		newCmd:  exec.Command,
	}
}

// SetCommandFactory replaces exec.Command, nil restores it
func (pi *ProcessInstance) SetCommandFactory(fn CommandFactory) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if fn == nil {
		fn = exec.Command
	}
	pi.newCmd = fn
}

func (pi *ProcessInstance) CommandLine() string {
	return strings.Join(append([]string{pi.Command}, pi.Args...), " ")
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.pid()
}

func (pi *ProcessInstance) pid() int {
	if pi.process == nil {
		return 0
	}
	return pi.process.Pid
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	return models.ProcessDetail{
		Title:          pi.Title,
		Command:        pi.Command,
		Args:           pi.Args,
		Pid:            pi.pid(),
		Status:         pi.Status,
		StartTime:      pi.StartTime,
		LastExitTime:   pi.LastExitTime,
		LastExitReason: pi.LastExitReason,
	}
}

/**
 * StartProcess 启动进程
 * @returns {error} 返回错误信息
 * @description
 * - 已经运行则直接返回
 * - 子进程的输出被丢弃
 * - linux上子进程会在本进程退出时收到SIGTERM
 * - 启动协程回收子进程并记录退出原因
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status == models.StatusRunning {
		return nil
	}
	logger.Infof("Executing command: %s", pi.CommandLine())

	cmd := pi.newCmd(pi.Command, pi.Args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	utils.BindToParent(cmd)

	if err := cmd.Start(); err != nil {
		pi.Status = models.StatusError
		pi.LastExitReason = fmt.Sprintf("start failed: %v", err)
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}

	pi.process = cmd.Process
	pi.done = make(chan struct{})
	pi.Status = models.StatusRunning
	pi.StartTime = time.Now()
	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.pid())

	go pi.watchProcess(cmd, pi.done)
	return nil
}

/**
 * watchProcess 回收子进程
 * @description
 * - 统一使用cmd.Wait()等待进程退出
 * - 进程是被StopProcess停止的，不覆盖状态
 * - 进程自行退出时记录退出原因
 */
func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.done != done || pi.Status != models.StatusRunning {
		return
	}
	pi.LastExitTime = time.Now()
	if err != nil {
		logger.Warnf("Process '%s' (PID: %d) exited with error: %v", pi.Title, cmd.Process.Pid, err)
		pi.LastExitReason = fmt.Sprintf("exited with error: %v", err)
		pi.Status = models.StatusError
	} else {
		logger.Infof("Process '%s' (PID: %d) exited normally", pi.Title, cmd.Process.Pid)
		pi.LastExitReason = "exited normally"
		pi.Status = models.StatusExited
	}
	pi.process = nil
}

/**
 * StopProcess 停止进程
 * @param {time.Duration} grace - 终止信号之后等待退出的时间
 * @returns {error} 只有kill失败才返回错误
 * @description
 * - 未运行的进程直接返回nil，可重复调用
 * - 先发送终止信号，超时后强制kill
 * - 等待子进程被回收后才返回
 */
func (pi *ProcessInstance) StopProcess(grace time.Duration) error {
	pi.mutex.Lock()
	p, done := pi.process, pi.done
	if pi.Status != models.StatusRunning || p == nil {
		pi.mutex.Unlock()
		return nil
	}
	pi.Status = models.StatusStopped
	pi.LastExitTime = time.Now()
	pi.LastExitReason = "stopped by user"
	pi.mutex.Unlock()

	defer func() {
		pi.mutex.Lock()
		if pi.done == done {
			pi.process = nil
		}
		pi.mutex.Unlock()
	}()

	if err := utils.Terminate(p); err == nil {
		select {
		case <-done:
			logger.Infof("Process '%s' (PID: %d) terminated gracefully", pi.Title, p.Pid)
			return nil
		case <-time.After(grace):
		}
	}

	// 优雅退出失败，强制终止
	logger.Warnf("Graceful termination failed, force killing process '%s' (PID: %d)", pi.Title, p.Pid)
	if err := p.Kill(); err != nil {
		select {
		case <-done:
			return nil
		default:
		}
		logger.Errorf("Failed to kill process '%s' (PID: %d): %v", pi.Title, p.Pid, err)
		return err
	}
	<-done
	logger.Infof("Process '%s' (PID: %d) force killed", pi.Title, p.Pid)
	return nil
}

// Alive reports whether the child is still running, as seen by the wait goroutine and the OS
func (pi *ProcessInstance) Alive() bool {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status != models.StatusRunning || pi.process == nil {
		return false
	}
	select {
	case <-pi.done:
		return false
	default:
	}
	// 回收协程可能尚未感知退出，再向系统确认一次
	running, err := utils.IsProcessRunning(pi.process.Pid)
	return err == nil && running
}
