package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultFTPPort  = 21
	defaultSFTPPort = 22
	dialTimeout     = 30 * time.Second
)

// Transferer copies one source file according to the copy settings and returns
// the path of the written copy.
type Transferer interface {
	Transfer(ctx context.Context, source string, settings model.CopySettings) (string, error)
}

// Client dispatches a transfer to the transport selected by CopySettings.Mode.
type Client struct {
	logger *slog.Logger
}

// NewClient creates a transfer client. A nil logger discards diagnostics.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{logger: logger}
}

// Transfer copies source to settings.Target. With TransferNone nothing is copied
// and an empty target is returned.
func (c *Client) Transfer(ctx context.Context, source string, settings model.CopySettings) (string, error) {
	switch settings.Mode {
	case model.TransferNone:
		return "", nil
	case model.TransferLocal:
		return copyLocal(source, settings.Target)
	case model.TransferFTP:
		return c.copyFTP(ctx, source, settings)
	case model.TransferSFTP:
		return c.copySFTP(ctx, source, settings)
	default:
		return "", model.SourceReadf("unsupported transfer mode %q", settings.Mode)
	}
}

// TargetPath returns the destination of source inside the target directory.
func TargetPath(source string, settings model.CopySettings) string {
	if settings.Mode == model.TransferLocal {
		return filepath.Join(settings.Target, filepath.Base(source))
	}
	return path.Join(settings.Target, filepath.Base(source))
}

func copyLocal(source, targetDir string) (string, error) {
	if targetDir == "" {
		return "", model.SourceReadf("local transfer of %s has no target directory", source)
	}
	target := filepath.Join(targetDir, filepath.Base(source))

	in, err := os.Open(source) //nolint:gosec // source paths come from the configured root path
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to open %s", source)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return target, model.WrapSourceRead(err, "failed to create %s", targetDir)
	}

	out, err := os.Create(target) //nolint:gosec // target directory is configured by the operator
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to create %s", target)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return target, model.WrapSourceRead(err, "failed to copy %s", source)
	}
	if err := out.Close(); err != nil {
		return target, model.WrapSourceRead(err, "failed to close %s", target)
	}
	return target, nil
}

func address(host string, port, fallback int) string {
	if port <= 0 {
		port = fallback
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (c *Client) copyFTP(ctx context.Context, source string, settings model.CopySettings) (string, error) {
	target := TargetPath(source, settings)
	addr := address(settings.Host, settings.Port, defaultFTPPort)

	in, err := os.Open(source) //nolint:gosec // source paths come from the configured root path
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to open %s", source)
	}
	defer func() { _ = in.Close() }()

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to connect to %s", addr)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			c.logger.Debug("ftp quit failed", "addr", addr, "error", err)
		}
	}()

	if err := conn.Login(settings.User, settings.Password); err != nil {
		return target, model.WrapSourceRead(err, "ftp login to %s failed", addr)
	}
	if err := conn.Stor(target, in); err != nil {
		return target, model.WrapSourceRead(err, "failed to upload %s", target)
	}

	c.logger.Debug("ftp upload finished", "source", source, "target", target)
	return target, nil
}

func (c *Client) copySFTP(ctx context.Context, source string, settings model.CopySettings) (string, error) {
	target := TargetPath(source, settings)
	addr := address(settings.Host, settings.Port, defaultSFTPPort)

	config, err := sshConfig(settings)
	if err != nil {
		return target, err
	}

	in, err := os.Open(source) //nolint:gosec // source paths come from the configured root path
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to open %s", source)
	}
	defer func() { _ = in.Close() }()

	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to connect to %s", addr)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		_ = netConn.Close()
		return target, model.WrapSourceRead(err, "ssh handshake with %s failed", addr)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = sshClient.Close() }()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to start sftp session on %s", addr)
	}
	defer func() { _ = client.Close() }()

	if dir := path.Dir(target); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return target, model.WrapSourceRead(err, "failed to create %s", dir)
		}
	}

	out, err := client.Create(target)
	if err != nil {
		return target, model.WrapSourceRead(err, "failed to create %s", target)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return target, model.WrapSourceRead(err, "failed to upload %s", target)
	}
	if err := out.Close(); err != nil {
		return target, model.WrapSourceRead(err, "failed to close %s", target)
	}

	c.logger.Debug("sftp upload finished", "source", source, "target", target)
	return target, nil
}

// sshConfig builds the client configuration from password or key file auth
func sshConfig(settings model.CopySettings) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if settings.KeyFile != "" {
		key, err := os.ReadFile(settings.KeyFile)
		if err != nil {
			return nil, model.WrapSourceRead(err, "failed to read key file %s", settings.KeyFile)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, model.WrapSourceRead(err, "failed to parse key file %s", settings.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if settings.Password != "" {
		auth = append(auth, ssh.Password(settings.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%w: sftp transfer needs a password or key file", model.ErrConfiguration)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // only when no known_hosts file is configured
	if settings.KnownHosts != "" {
		callback, err := knownhosts.New(settings.KnownHosts)
		if err != nil {
			return nil, model.WrapSourceRead(err, "failed to load known hosts %s", settings.KnownHosts)
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            settings.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}
