package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/example/karyoview/internal/dbconn"
)

// ErrBackupFailed indicates that the pre-migration snapshot could not be
// produced. The migration runner treats it as fatal and refuses to run any
// DDL, since migrations are otherwise unrecoverable.
var ErrBackupFailed = errors.New("backup failed")

// Error carries the dialect and target of a failed snapshot.
type Error struct {
	Dialect string
	Target  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s backup to %s failed: %v", e.Dialect, e.Target, e.Err)
}

// Unwrap returns the sentinel so callers can match with errors.Is.
func (e *Error) Unwrap() error {
	return ErrBackupFailed
}

// Manager produces a timestamped snapshot of the whole database before any
// migration step runs.
type Manager interface {
	// Snapshot writes the backup and returns its location.
	Snapshot(ctx context.Context) (string, error)
}

// NewManager selects the snapshot mechanism for the connection's dialect:
// a mysqldump shell-out for the client/server dialect, a store-file copy
// for the embedded dialect. Backups are written into dir.
func NewManager(desc dbconn.Descriptor, dir string, logger *slog.Logger) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch desc.Driver {
	case "mysql":
		return &MySQLDump{desc: desc, dir: dir, logger: logger, now: time.Now, command: exec.CommandContext}, nil
	case "sqlite":
		return &FileCopy{path: desc.Path, dir: dir, source: desc.SourceName(), logger: logger, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("no backup mechanism for driver %q", desc.Driver)
	}
}

// timestampSuffix renders the backup name suffix at minute resolution,
// e.g. "29Aug2026.14:05".
func timestampSuffix(t time.Time) string {
	return t.Format("02Jan2006.15:04")
}

// backupName files a snapshot under "{source}_{DDMonYYYY}.{HH:MM}".
func backupName(source string, t time.Time) string {
	return fmt.Sprintf("%s_%s", source, timestampSuffix(t))
}

// MySQLDump snapshots a client/server database by shelling out to
// mysqldump and redirecting its output to the backup file.
type MySQLDump struct {
	desc   dbconn.Descriptor
	dir    string
	logger *slog.Logger
	now    func() time.Time

	// command builds the dump process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Snapshot runs mysqldump against the live connection.
func (m *MySQLDump) Snapshot(ctx context.Context) (string, error) {
	target := filepath.Join(m.dir, backupName(m.desc.Database, m.now()))

	out, err := os.Create(target)
	if err != nil {
		return "", &Error{Dialect: "mysql", Target: target, Err: err}
	}
	defer out.Close()

	host, port := splitHostPort(m.desc.Host)
	args := []string{"--host", host, "--port", port}
	if m.desc.User != "" {
		args = append(args, "--user", m.desc.User)
	}
	if m.desc.Password != "" {
		args = append(args, "--password="+m.desc.Password)
	}
	args = append(args, m.desc.Database)

	cmd := m.command(ctx, "mysqldump", args...)
	cmd.Stdout = out
	cmd.Stderr = io.Discard

	m.logger.Info("dumping database before migration", "database", m.desc.Database, "target", target)
	if err := cmd.Run(); err != nil {
		os.Remove(target)
		return "", &Error{Dialect: "mysql", Target: target, Err: err}
	}
	return target, nil
}

// FileCopy snapshots an embedded database by copying the store file to a
// sibling path carrying the timestamp suffix.
type FileCopy struct {
	path   string
	dir    string
	source string
	logger *slog.Logger
	now    func() time.Time
}

// Snapshot copies the store file.
func (f *FileCopy) Snapshot(ctx context.Context) (string, error) {
	target := filepath.Join(f.dir, backupName(f.source, f.now()))

	src, err := os.Open(f.path)
	if err != nil {
		return "", &Error{Dialect: "sqlite", Target: target, Err: err}
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return "", &Error{Dialect: "sqlite", Target: target, Err: err}
	}

	f.logger.Info("copying store file before migration", "source", f.path, "target", target)
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", &Error{Dialect: "sqlite", Target: target, Err: err}
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", &Error{Dialect: "sqlite", Target: target, Err: err}
	}
	return target, nil
}

// splitHostPort separates "host:port", defaulting the port for mysqldump.
func splitHostPort(hostport string) (string, string) {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i], hostport[i+1:]
		}
	}
	return hostport, "3306"
}
