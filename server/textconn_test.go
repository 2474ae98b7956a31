package nntpserver

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufConn struct {
	io.Reader
	io.Writer
}

func (bufConn) Close() error { return nil }

func TestSendBlockDotStuffs(t *testing.T) {
	var out bytes.Buffer
	c := newTextConn(bufConn{strings.NewReader(""), &out}, 0)
	require.NoError(t, c.sendBlock("222 1 <a@b>", []string{".", "..x", "plain", ""}))
	assert.Equal(t, "222 1 <a@b>\r\n..\r\n...x\r\nplain\r\n\r\n.\r\n", out.String())
}

func TestReadBlockUnstuffs(t *testing.T) {
	in := "..\r\n...x\r\nplain\r\n.\r\nQUIT\r\n"
	c := newTextConn(bufConn{strings.NewReader(in), io.Discard}, 0)
	lines, err := c.readBlock()
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..x", "plain"}, lines)

	l, err := c.readLine()
	require.NoError(t, err)
	assert.Equal(t, "QUIT", l)
}

func TestBlockRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := newTextConn(bufConn{strings.NewReader(""), &out}, 0)
	body := []string{".", ".hidden", "", "end."}
	require.NoError(t, w.sendBlock("220 ok", body))

	r := newTextConn(bufConn{&out, io.Discard}, 0)
	status, err := r.readLine()
	require.NoError(t, err)
	assert.Equal(t, "220 ok", status)
	lines, err := r.readBlock()
	require.NoError(t, err)
	assert.Equal(t, body, lines)
}

func TestReadLineTerminators(t *testing.T) {
	c := newTextConn(bufConn{strings.NewReader("CAPABILITIES\nGROUP all\r\nSTAT \r\n"), io.Discard}, 0)
	for _, want := range []string{"CAPABILITIES", "GROUP all", "STAT "} {
		l, err := c.readLine()
		require.NoError(t, err)
		assert.Equal(t, want, l)
	}
	_, err := c.readLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineDropsUnterminated(t *testing.T) {
	c := newTextConn(bufConn{strings.NewReader("MODE READER\r\nGROUP all"), io.Discard}, 0)
	l, err := c.readLine()
	require.NoError(t, err)
	assert.Equal(t, "MODE READER", l)
	_, err = c.readLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineMalformed(t *testing.T) {
	c := newTextConn(bufConn{strings.NewReader("GROUP \xff\xfe\r\n"), io.Discard}, 0)
	_, err := c.readLine()
	assert.ErrorIs(t, err, ErrMalformedLine)
}
