package usftp

import (
	"io"

	"golang.org/x/crypto/ssh"
)

// Transport is the byte-stream interface the embedder supplies: an
// ordered, reliable, bidirectional channel. The protocol code never looks
// past this interface; it does not know about SSH, TCP, or any other
// concrete channel.
type Transport interface {
	// SendBytes writes b in its entirety or returns an error.
	SendBytes(b []byte) error
	// RecvExactBytes fills buf completely or returns an error (including
	// io.EOF/io.ErrUnexpectedEOF on a short read).
	RecvExactBytes(buf []byte) error
	// Close releases the underlying channel.
	Close() error
}

// pipeTransport adapts a plain io.Reader/io.WriteCloser pair.
type pipeTransport struct {
	r io.Reader
	w io.WriteCloser
}

// NewPipeTransport builds a Transport over an existing reader/writer pair,
// for connecting over TCP/TLS or a subprocess's stdio.
func NewPipeTransport(r io.Reader, w io.WriteCloser) Transport {
	return &pipeTransport{r: r, w: w}
}

func (t *pipeTransport) SendBytes(b []byte) error {
	_, err := t.w.Write(b)
	return err
}

func (t *pipeTransport) RecvExactBytes(buf []byte) error {
	_, err := io.ReadFull(t.r, buf)
	return err
}

func (t *pipeTransport) Close() error { return t.w.Close() }

// sshTransport opens the "sftp" subsystem on an established *ssh.Client
// session and adapts its stdio pipes.
type sshTransport struct {
	pipeTransport
	session *ssh.Session
}

// NewSSHTransport opens an SFTP subsystem channel over conn.
func NewSSHTransport(conn *ssh.Client) (Transport, error) {
	session, err := conn.NewSession()
	if err != nil {
		return nil, chainError(err, "usftp: open ssh session")
	}
	// Pipes must be set up before RequestSubsystem starts the session.
	w, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, chainError(err, "usftp: open stdin pipe")
	}
	r, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, chainError(err, "usftp: open stdout pipe")
	}
	if err := session.RequestSubsystem("sftp"); err != nil {
		session.Close()
		return nil, chainError(err, "usftp: request sftp subsystem")
	}
	return &sshTransport{
		pipeTransport: pipeTransport{r: r, w: w},
		session:       session,
	}, nil
}

func (t *sshTransport) Close() error {
	werr := t.pipeTransport.Close()
	serr := t.session.Close()
	if werr != nil {
		return werr
	}
	return serr
}
