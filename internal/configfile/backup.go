package configfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	// ErrConfigNotFound indicates the source config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrBackupMissing indicates a restore was attempted without a readable backup.
	ErrBackupMissing = errors.New("backup file missing")
)

// Backup copies path byte-for-byte to <path>.backup, preserving mode and
// modification time, and returns the backup path actually used. If the
// default name is taken by a pre-existing backup, a timestamp suffix is
// appended instead of destroying it.
func Backup(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return "", err
	}

	backupPath := path + ".backup"
	if _, err := os.Stat(backupPath); err == nil {
		backupPath = fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
	}

	if err := copyFile(path, backupPath, info); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}

	return backupPath, nil
}

// Restore copies backupPath back over path byte-for-byte, then deletes the
// backup. A missing or unreadable backup is surfaced, never swallowed: it
// means the config may now be permanently wrong.
func Restore(path, backupPath string) error {
	info, err := os.Stat(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupMissing, backupPath)
		}
		return err
	}

	if err := copyFile(backupPath, path, info); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("remove backup %s: %w", backupPath, err)
	}

	return nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// Keep the original modification time on the copy.
	return os.Chtimes(dst, time.Now(), info.ModTime())
}
