package toolexec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// CommandExecutor runs binaries with os/exec and streams stdout and stderr
// line by line to the callback.
type CommandExecutor struct{}

// Run starts the command and blocks until it exits. Lines from both streams
// are delivered sequentially; the callback is never invoked concurrently.
func (CommandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var scanErr error
	var once sync.Once
	var tail []string

	forward := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		tail = appendTail(tail, line)
		if onLine != nil {
			onLine(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if len(tail) > 0 {
			return fmt.Errorf("wait command: %w (last output: %s)", err, strings.Join(tail, " | "))
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

const tailLines = 3

func appendTail(tail []string, line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return tail
	}
	tail = append(tail, line)
	if len(tail) > tailLines {
		tail = tail[len(tail)-tailLines:]
	}
	return tail
}

// ExpandArgs substitutes {name} placeholders in each argument with the
// matching value from vars. Unknown placeholders are left untouched.
func ExpandArgs(args []string, vars map[string]string) []string {
	if len(args) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// ParseProgress recognizes "PROGRESS:<fraction>", "PROGRESS:<percent>%" and
// "PROGRESS:<current>/<total>" lines, optionally followed by a message after
// whitespace. The returned fraction is clamped to [0,1].
func ParseProgress(line string) (float64, string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "PROGRESS:") {
		return 0, "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "PROGRESS:"))
	value, message, _ := strings.Cut(payload, " ")
	message = strings.TrimSpace(message)

	var fraction float64
	switch {
	case strings.HasSuffix(value, "%"):
		percent, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return 0, "", false
		}
		fraction = percent / 100
	case strings.Contains(value, "/"):
		currentRaw, totalRaw, _ := strings.Cut(value, "/")
		current, err := strconv.ParseFloat(currentRaw, 64)
		if err != nil {
			return 0, "", false
		}
		total, err := strconv.ParseFloat(totalRaw, 64)
		if err != nil || total <= 0 {
			return 0, "", false
		}
		fraction = current / total
	default:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, "", false
		}
		fraction = parsed
	}
	return Clamp(fraction), message, true
}

// Clamp bounds a progress fraction to [0,1].
func Clamp(fraction float64) float64 {
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
