package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"vidpress/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPWriter uploads to a remote server via SFTP. Files land in
// {remoteDir}/{bucket}/{key} and are served by whatever sits behind
// publicBaseURL.
type SFTPWriter struct {
	addr          string
	config        *ssh.ClientConfig
	remoteDir     string
	publicBaseURL string
}

// NewSFTPWriter reads host, user, publicBaseURL and password or privateKey
// (base64 or raw PEM) from creds. port defaults to 22, remoteDir to the login
// directory. hostKey pins the server key in authorized_keys format.
func NewSFTPWriter(creds map[string]string) (*SFTPWriter, error) {
	if err := requireKeys(creds, "host", "user", "publicBaseURL"); err != nil {
		return nil, err
	}
	port := creds["port"]
	if port == "" {
		port = "22"
	}

	var auths []ssh.AuthMethod
	if privateKey := creds["privateKey"]; privateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if password := creds["password"]; password != "" {
		auths = append(auths, ssh.Password(password))
	} else {
		return nil, fmt.Errorf("no auth method provided; set password or privateKey")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if hk := creds["hostKey"]; hk != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(hk))
		if err != nil {
			return nil, fmt.Errorf("parse host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	} else {
		logger.Warnf("SFTP host key for %s is not pinned; accepting any key", creds["host"])
	}

	return &SFTPWriter{
		addr: net.JoinHostPort(creds["host"], port),
		config: &ssh.ClientConfig{
			User:            creds["user"],
			Auth:            auths,
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		},
		remoteDir:     creds["remoteDir"],
		publicBaseURL: creds["publicBaseURL"],
	}, nil
}

func (w *SFTPWriter) Upload(ctx context.Context, obj Object) error {
	// Dial respecting context
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", w.addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", w.addr, err)
	}

	// perform SSH handshake on the established connection
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, w.addr, w.config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", w.addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	// ssh has no context support; closing the client unblocks a stuck copy
	stop := context.AfterFunc(ctx, func() { sshClient.Close() })
	defer stop()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	remotePath := path.Join(w.remoteDir, obj.Bucket, obj.Key)
	if err := mkdirAllSFTP(sftpClient, path.Dir(remotePath)); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", path.Dir(remotePath), err)
	}

	// SFTPv3 servers rarely report EEXIST for O_EXCL, so check first as well.
	if _, err := sftpClient.Stat(remotePath); err == nil {
		return fmt.Errorf("%w: %s", ErrObjectExists, remotePath)
	}
	f, err := sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrObjectExists, remotePath)
		}
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	if _, err := io.Copy(f, obj.Body); err != nil {
		f.Close()
		sftpClient.Remove(remotePath)
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		sftpClient.Remove(remotePath)
		return fmt.Errorf("close remote file %s: %w", remotePath, err)
	}

	logger.Infof("Successfully uploaded '%s' to %s", remotePath, w.addr)
	return nil
}

func (w *SFTPWriter) PublicURL(bucket, key string) (string, error) {
	return joinURL(w.publicBaseURL, bucket, key), nil
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}

	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if os.IsNotExist(err) {
				if err := client.Mkdir(cur); err != nil {
					return fmt.Errorf("mkdir %s: %w", cur, err)
				}
			} else {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
		}
	}
	return nil
}
