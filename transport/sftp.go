package transport

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig holds the connection settings for DialSFTP.
type SFTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	// KeyFile is a PEM private key used for public key authentication.
	KeyFile string
	// KnownHosts is an OpenSSH known_hosts file. Host keys are not
	// verified when it is empty.
	KnownHosts string
	Timeout    time.Duration
}

// SFTP reads ranges of a remote file over an SSH connection.
type SFTP struct {
	path   string
	conn   *ssh.Client
	client *sftp.Client
	file   *sftp.File
	size   int64
}

var _ Transport = (*SFTP)(nil)
var _ Streamer = (*SFTP)(nil)

// DialSFTP connects to cfg.Addr and opens path.
func DialSFTP(ctx context.Context, cfg SFTPConfig, path string) (*SFTP, error) {
	config, err := sshConfig(cfg)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: config.Timeout}
	nc, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.Addr)
	}
	c, chans, reqs, err := ssh.NewClientConn(nc, cfg.Addr, config)
	if err != nil {
		nc.Close()
		return nil, errors.Wrapf(err, "ssh handshake with %s", cfg.Addr)
	}
	conn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "start sftp session")
	}
	file, err := client.Open(path)
	if err != nil {
		client.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		client.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return &SFTP{path: path, conn: conn, client: client, file: file, size: fi.Size()}, nil
}

func sshConfig(cfg SFTPConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "read key %s", cfg.KeyFile)
		}
		var signer ssh.Signer
		if cfg.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cfg.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse key %s", cfg.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp: no password or key file")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Wrapf(err, "load known hosts %s", cfg.KnownHosts)
		}
		hostKey = cb
	} else {
		logger.Warnf("host key of %s is not verified", cfg.Addr)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

func (t *SFTP) Length(context.Context) (int64, error) {
	return t.size, nil
}

func (t *SFTP) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRange(begin, end, t.size); err != nil {
		return nil, err
	}
	buf := make([]byte, end-begin)
	if _, err := t.file.ReadAt(buf, begin); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %s [%d, %d)", t.path, begin, end)
	}
	return buf, nil
}

// Stream opens a second handle on the file and reads it from the start.
func (t *SFTP) Stream(context.Context) (io.ReadCloser, error) {
	f, err := t.client.Open(t.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", t.path)
	}
	return f, nil
}

func (t *SFTP) Close() error {
	t.file.Close()
	t.client.Close()
	return t.conn.Close()
}
