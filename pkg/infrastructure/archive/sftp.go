package archive

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/getship/shipd/internal/config"
	"github.com/getship/shipd/pkg/domain/entities"
)

// Uploader pushes archive payloads to a remote SFTP host. It is only
// constructed when archival credentials are configured.
type Uploader struct {
	cfg config.ArchiveConfig
}

func NewUploader(cfg config.ArchiveConfig) *Uploader {
	return &Uploader{cfg: cfg}
}

func (u *Uploader) dial() (*ssh.Client, error) {
	var auth []ssh.AuthMethod
	if u.cfg.PrivateKeyFile != "" {
		key, err := os.ReadFile(u.cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read archive key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse archive private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if u.cfg.Password != "" {
		auth = append(auth, ssh.Password(u.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, entities.NewUnconfiguredError("archive host is set but no password or key file is configured")
	}
	sshCfg := &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	addr := fmt.Sprintf("%s:%d", u.cfg.Host, u.cfg.Port)
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, entities.NewExecutionError("connect to archive host", err, "", "")
	}
	return client, nil
}

// Upload streams r to <remote-dir>/<name> on the archive host and returns the
// remote path and the number of bytes written.
func (u *Uploader) Upload(r io.Reader, name string) (string, int64, error) {
	sshClient, err := u.dial()
	if err != nil {
		return "", 0, err
	}
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", 0, entities.NewExecutionError("create sftp client", err, "", "")
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(u.cfg.RemoteDir); err != nil {
		return "", 0, entities.NewExecutionError("create remote archive dir", err, "", "")
	}
	remotePath := path.Join(u.cfg.RemoteDir, name)
	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return "", 0, entities.NewExecutionError("create remote file", err, "", "")
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return "", 0, entities.NewExecutionError("upload to archive host", err, "", "")
	}
	return remotePath, n, nil
}

// UploadFile uploads a local file under its base name.
func (u *Uploader) UploadFile(localPath string) (string, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	return u.Upload(f, path.Base(localPath))
}
