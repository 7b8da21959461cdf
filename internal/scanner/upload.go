package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpTimeout = 30 * time.Second

// FTPTarget is where UploadFTP stores files.
type FTPTarget struct {
	Host     string // host:port
	User     string
	Password string
	Dir      string
}

// UploadFTP stores each file under its base name in the target directory.
func UploadFTP(ctx context.Context, target FTPTarget, files []string) error {
	conn, err := ftp.Dial(target.Host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpTimeout))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", target.Host, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			slog.Debug("ftp quit failed", "err", err)
		}
	}()

	user := target.User
	if user == "" {
		user = "anonymous"
	}
	if err := conn.Login(user, target.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}
	if target.Dir != "" {
		if err := conn.ChangeDir(target.Dir); err != nil {
			return fmt.Errorf("ftp cd %s: %w", target.Dir, err)
		}
	}

	for _, path := range files {
		if err := storeFile(conn, path); err != nil {
			return err
		}
		slog.Info("uploaded scan", "host", target.Host, "file", filepath.Base(path))
	}
	return nil
}

func storeFile(conn *ftp.ServerConn, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := conn.Stor(filepath.Base(path), f); err != nil {
		return fmt.Errorf("ftp store %s: %w", filepath.Base(path), err)
	}
	return nil
}
