package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/config"
)

const (
	daemonBinary = "storefrontd"
	pollInterval = 100 * time.Millisecond
	startTimeout = 3 * time.Second
	stopTimeout  = 5 * time.Second
	logWindow    = 4 << 10
)

// daemonFiles are the paths storefrontd keeps under the storefront home.
type daemonFiles struct {
	home string
	pid  string
	log  string
}

func locateDaemonFiles(create bool) (daemonFiles, error) {
	lookup := config.StorefrontDir
	if create {
		lookup = config.EnsureStorefrontDir
	}
	home, err := lookup()
	if err != nil {
		return daemonFiles{}, fmt.Errorf("storefront home: %w", err)
	}
	return daemonFiles{
		home: home,
		pid:  filepath.Join(home, pidFile),
		log:  filepath.Join(home, "logs", daemonBinary+".log"),
	}, nil
}

func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	files, err := locateDaemonFiles(true)
	if err != nil {
		return err
	}
	bin, err := findDaemonBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(bin)
	cmd.Dir = files.home
	configureDaemonProcess(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	_ = cmd.Process.Release()

	fmt.Print("Starting daemon")
	if !awaitDaemon(os.Stdout, true, startTimeout) {
		fmt.Println(" ✗")
		return fmt.Errorf("daemon not healthy after %s, see %s", startTimeout, files.log)
	}
	fmt.Printf(" ✓\nDaemon running at %s\n", daemonAddr)
	return nil
}

func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	files, err := locateDaemonFiles(false)
	if err != nil {
		return err
	}
	pid, err := readPID(files.pid)
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process %d: %w", pid, err)
	}

	fmt.Print("Stopping daemon")
	if err := terminate(proc); err != nil {
		fmt.Println(" ✗")
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if !awaitDaemon(os.Stdout, false, stopTimeout) {
		fmt.Println(" ✗")
		return fmt.Errorf("daemon process %d still answering after %s", pid, stopTimeout)
	}
	fmt.Println(" ✓")
	return nil
}

// readPID parses the pid file storefrontd writes on startup.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	raw := bytes.TrimSpace(data)
	pid, err := strconv.Atoi(string(raw))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s holds %q, not a process id", path, raw)
	}
	return pid, nil
}

// awaitDaemon polls the health endpoint until the daemon's liveness matches
// up, printing a dot per miss. It reports false on timeout.
func awaitDaemon(w io.Writer, up bool, timeout time.Duration) bool {
	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); {
		time.Sleep(pollInterval)
		if isRunning() == up {
			return true
		}
		fmt.Fprint(w, ".")
	}
	return false
}

// daemonStatus mirrors the body of GET /v1/status.
type daemonStatus struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Uptime    string      `json:"uptime"`
	API       string      `json:"api"`
	Storage   string      `json:"storage"`
	Events    bool        `json:"events"`
	Session   auth.Status `json:"session"`
	CartUnits *int        `json:"cart_units"`
}

func (s daemonStatus) render(w io.Writer, addr string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Status", s.Status},
		{"Version", s.Version},
		{"Uptime", s.Uptime},
		{"Address", addr},
		{"API", s.API},
		{"Storage", s.Storage},
		{"Events", strconv.FormatBool(s.Events)},
	}
	session := "anonymous"
	if s.Session.LoggedIn {
		session = fmt.Sprintf("%s (%s)", s.Session.UserID, s.Session.Role)
	}
	rows = append(rows, [2]string{"Session", session})
	if s.CartUnits != nil {
		rows = append(rows, [2]string{"Cart", fmt.Sprintf("%d item(s)", *s.CartUnits)})
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}
	var status daemonStatus
	if err := call("GET", "/v1/status", nil, &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	return status.render(os.Stdout, daemonAddr)
}

func cmdLogs() error {
	files, err := locateDaemonFiles(false)
	if err != nil {
		return err
	}
	err = tailLog(os.Stdout, files.log, logWindow)
	if os.IsNotExist(err) {
		fmt.Println("No log file yet. Start the daemon first.")
		return nil
	}
	return err
}

// tailLog copies the last window bytes of path to w, starting at the first
// complete line inside the window.
func tailLog(w io.Writer, path string, window int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	start := max(info.Size()-window, 0)
	buf := make([]byte, info.Size()-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return fmt.Errorf("read log: %w", err)
	}
	if start > 0 {
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			buf = buf[i+1:]
		}
	}
	_, err = w.Write(buf)
	return err
}

// findDaemonBinary prefers storefrontd on PATH, then a copy next to this
// executable, then a build output inside a source checkout.
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath(daemonBinary); err == nil {
		return path, nil
	}
	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), daemonBinary))
	}
	candidates = append(candidates, filepath.Join("cmd", daemonBinary, daemonBinary))
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found on PATH or beside %s; build it with 'go build ./cmd/%s'",
		daemonBinary, filepath.Base(os.Args[0]), daemonBinary)
}
