//go:build linux

package processmgr

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stopGrace is how long a participant gets between SIGTERM and SIGKILL.
const stopGrace = 3 * time.Second

// Exit describes how one supervised process ended.
type Exit struct {
	Name string
	PID  int
	Code int   // -1 when the process never started or was killed by a signal
	Err  error // nil on a zero exit status
}

// ProcessManager runs named child processes once each and collects their
// exits. It is safe for concurrent use.
//
// Lifecycle:
//   - Start(ctx, name, argv): spawns the process and a supervisor goroutine.
//     A name can be started only once per manager.
//   - Cancelling the ctx passed to Start stops that process: SIGTERM to its
//     process group, SIGKILL after stopGrace.
//   - Wait blocks until every started process has exited.
//
// There is no restart: a participant that exits is done.
type ProcessManager struct {
	log   *zap.Logger
	env   []string
	logs  *LogManager
	mu    sync.RWMutex
	procs map[string]*managedProcess // protected by mu
	wg    sync.WaitGroup

	onExit func(Exit) // protected by mu
}

func NewProcessManager(log *zap.Logger, logs *LogManager, env ...string) *ProcessManager {
	if log == nil {
		log = zap.NewNop()
	}
	if logs == nil {
		logs = NewLogManager()
	}
	return &ProcessManager{
		log:   log.Named("process-manager"),
		env:   append(os.Environ(), env...),
		logs:  logs,
		procs: make(map[string]*managedProcess),
	}
}

// OnExit registers fn to be called once per process as it exits, from the
// supervising goroutine.
func (mng *ProcessManager) OnExit(fn func(Exit)) {
	mng.mu.Lock()
	mng.onExit = fn
	mng.mu.Unlock()
}

func (mng *ProcessManager) exited(p *managedProcess, e Exit) {
	p.finish(e)
	mng.mu.RLock()
	fn := mng.onExit
	mng.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// ErrDuplicate is returned when a name is started twice.
var ErrDuplicate = errors.New("process already started")

// Start spawns argv under name. It returns once the process runs (or failed
// to start); supervision continues in the background.
func (mng *ProcessManager) Start(ctx context.Context, name string, argv []string) error {
	mng.mu.Lock()
	if _, ok := mng.procs[name]; ok {
		mng.mu.Unlock()
		return ErrDuplicate
	}
	p := &managedProcess{name: name, argv: argv}
	mng.procs[name] = p
	mng.mu.Unlock()

	logBuf := mng.logs.Get(name)
	log := mng.log.With(zap.String("participant", name), zap.Strings("argv", argv))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL, // participants never outlive the supervisor
		Setpgid:   true,            // new process group so we can signal the group
	}
	cmd.Env = mng.env
	cmd.Stdout = os.Stdout // shared trace output when no trace file is set

	stderrPipe, err := cmd.StderrPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		log.Error("failed to spawn participant", zap.Error(err))
		mng.exited(p, Exit{Name: name, Code: -1, Err: err})
		return err
	}

	pid := cmd.Process.Pid
	p.setPID(pid)
	log.Info("participant started", zap.Int("pid", pid))

	mng.wg.Add(1)
	go func() {
		defer mng.wg.Done()
		mng.exited(p, mng.supervise(ctx, log, cmd, stderrPipe, logBuf, p))
	}()
	return nil
}

// supervise drains stderr into logBuf and waits for the process, stopping it
// when ctx is cancelled.
func (mng *ProcessManager) supervise(ctx context.Context, log *zap.Logger, cmd *exec.Cmd, stderr io.Reader, logBuf *logBuffer, p *managedProcess) Exit {
	pid := cmd.Process.Pid

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			logBuf.Append(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			logBuf.Append(err.Error())
			log.Warn("stderr reader exited abnormally", zap.Int("pid", pid), zap.Error(err))
		}
	}()

	doneCh := make(chan error, 1)
	go func() {
		// cmd.Wait closes the pipe; let the reader finish first
		<-drained
		doneCh <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-doneCh:
	case <-ctx.Done():
		log.Info("stop requested, sending SIGTERM to process group", zap.Int("pgid", pid))
		_ = syscall.Kill(-pid, syscall.SIGTERM)

		t := time.NewTimer(stopGrace)
		select {
		case err = <-doneCh:
			t.Stop()
		case <-t.C:
			log.Warn("graceful stop timed out, sending SIGKILL", zap.Int("pid", pid), zap.Duration("timeout", stopGrace))
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			err = <-doneCh
		}
	}

	exit := Exit{Name: p.name, PID: pid, Code: 0, Err: err}
	if err != nil {
		exit.Code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exit.Code = exitErr.ExitCode()
		}
		log.Warn("participant exited abnormally", zap.Int("pid", pid), zap.Int("exit_code", exit.Code), zap.Error(err))
	} else {
		log.Info("participant exited normally", zap.Int("pid", pid))
	}
	return exit
}

// Wait blocks until every started process has exited and returns their
// exits sorted by name.
func (mng *ProcessManager) Wait() []Exit {
	mng.wg.Wait()
	return mng.Exits()
}

// Exits returns the exits collected so far, sorted by name.
func (mng *ProcessManager) Exits() []Exit {
	var out []Exit
	for _, st := range mng.Status() {
		if st.Exit != nil {
			out = append(out, *st.Exit)
		}
	}
	return out
}

// Status describes one managed process. Exit is nil while it runs.
type Status struct {
	Name string
	PID  int
	Exit *Exit
}

// Status lists every started process sorted by name.
func (mng *ProcessManager) Status() []Status {
	mng.mu.RLock()
	out := make([]Status, 0, len(mng.procs))
	for _, p := range mng.procs {
		out = append(out, p.status())
	}
	mng.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetLogs retrieves the last N stderr lines of a process
// - lines: number of lines to retrieve (0 = all available, max logCap)
// Returns: slice ordered newest → oldest; false if the name is unknown
func (mng *ProcessManager) GetLogs(name string, lines int) ([]string, bool) {
	buf, ok := mng.logs.Lookup(name)
	if !ok {
		return nil, false
	}
	return buf.Read(lines), true
}

// managedProcess holds the supervision state of one participant.
type managedProcess struct {
	name string
	argv []string

	mu   sync.Mutex
	pid  int
	exit *Exit
}

func (p *managedProcess) setPID(pid int) {
	p.mu.Lock()
	p.pid = pid
	p.mu.Unlock()
}

func (p *managedProcess) finish(e Exit) {
	p.mu.Lock()
	p.exit = &e
	p.mu.Unlock()
}

func (p *managedProcess) status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Name: p.name, PID: p.pid, Exit: p.exit}
}
