package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/lox/jmaweather/internal/metrics"
)

const ftpEndpoint = "ftp"

// FTPSource reads forecast payloads from an FTP mirror that lays files out as
// <dir>/<area code>.json, in the same format as the HTTP endpoint.
type FTPSource struct {
	addr     string
	dir      string
	user     string
	password string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewFTPSource(addr, dir, user, password string, timeout time.Duration, logger *zap.Logger) *FTPSource {
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FTPSource{
		addr:     addr,
		dir:      dir,
		user:     user,
		password: password,
		timeout:  timeout,
		logger:   logger.Named("ftp"),
	}
}

func (s *FTPSource) Name() string { return "ftp" }

// Path returns the remote file path for areaCode.
func (s *FTPSource) Path(areaCode string) string {
	return path.Join("/", s.dir, path.Base(areaCode)+".json")
}

func (s *FTPSource) Fetch(ctx context.Context, areaCode string) ([]byte, *FetchResult, error) {
	file := s.Path(areaCode)
	result := &FetchResult{Endpoint: "ftp://" + s.addr + file}
	start := time.Now()
	defer func() {
		metrics.FetchLatency.WithLabelValues(ftpEndpoint).Observe(time.Since(start).Seconds())
	}()

	body, err := s.retrieve(ctx, file)
	if err != nil {
		metrics.FetchCallsTotal.WithLabelValues(ftpEndpoint, "error").Inc()
		return nil, result, fmt.Errorf("%w: %s: %w", ErrFetch, areaCode, err)
	}
	metrics.FetchCallsTotal.WithLabelValues(ftpEndpoint, "ok").Inc()
	result.ResponseSize = len(body)
	return body, result, nil
}

func (s *FTPSource) retrieve(ctx context.Context, file string) ([]byte, error) {
	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			s.logger.Debug("ftp quit", zap.Error(err))
		}
	}()

	if err := conn.Login(s.user, s.password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(file)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
