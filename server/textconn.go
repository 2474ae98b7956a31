package nntpserver

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrMalformedLine is returned when a command line is not valid UTF-8.
var ErrMalformedLine = errors.New("malformed command line")

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// textConn is the line transport of one session: CRLF lines in both
// directions, dot-stuffed blocks for multi-line data.
type textConn struct {
	*textproto.Conn
	dl      deadliner
	timeout time.Duration
}

func newTextConn(rwc io.ReadWriteCloser, timeout time.Duration) *textConn {
	c := &textConn{Conn: textproto.NewConn(rwc), timeout: timeout}
	if dl, ok := rwc.(deadliner); ok {
		c.dl = dl
	}
	return c
}

func (c *textConn) armDeadline() {
	if c.dl != nil && c.timeout > 0 {
		c.dl.SetReadDeadline(time.Now().Add(c.timeout))
	}
}

// readLine returns the next line with exactly one trailing CRLF or LF
// removed. A line cut off by the end of input is dropped and reported
// as io.EOF.
func (c *textConn) readLine() (string, error) {
	c.armDeadline()
	l, err := c.R.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	l = strings.TrimSuffix(strings.TrimSuffix(l, "\n"), "\r")
	if !utf8.ValidString(l) {
		return "", ErrMalformedLine
	}
	return l, nil
}

// readBlock reads lines up to a lone "." and undoes dot-stuffing.
func (c *textConn) readBlock() ([]string, error) {
	c.armDeadline()
	return c.ReadDotLines()
}

// sendLine writes one status line.
func (c *textConn) sendLine(format string, args ...interface{}) error {
	return c.PrintfLine("%s", fmt.Sprintf(format, args...))
}

// sendBlock writes a status line followed by a dot-stuffed multi-line
// block and its terminator.
func (c *textConn) sendBlock(status string, lines []string) error {
	if err := c.PrintfLine("%s", status); err != nil {
		return err
	}
	dw := c.DotWriter()
	for _, l := range lines {
		if _, err := io.WriteString(dw, strings.TrimRight(l, "\r\n")+"\r\n"); err != nil {
			dw.Close()
			return err
		}
	}
	return dw.Close()
}
