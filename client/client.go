// Package nntpclient is a small reader-mode NNTP client.
package nntpclient

import (
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/epilys/sic-sub000"
)

// ErrBadResponse is returned when a status line can't be parsed.
var ErrBadResponse = errors.New("nntpclient: unparseable response")

type Client struct {
	conn   *textproto.Conn
	Banner string
	// PostingAllowed is true when the greeting was 200.
	PostingAllowed bool
}

// New dials addr and reads the server greeting.
func New(net, addr string) (*Client, error) {
	conn, err := textproto.Dial(net, addr)
	if err != nil {
		return nil, err
	}
	return newClient(conn)
}

// NewConn runs a client over an established connection.
func NewConn(rwc io.ReadWriteCloser) (*Client, error) {
	return newClient(textproto.NewConn(rwc))
}

func newClient(conn *textproto.Conn) (*Client, error) {
	code, msg, err := conn.ReadCodeLine(2)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{
		conn:           conn,
		Banner:         msg,
		PostingAllowed: code == 200,
	}, nil
}

// Close closes the connection without saying goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Quit sends QUIT and closes the connection.
func (c *Client) Quit() error {
	_, _, err := c.Command("QUIT", 205)
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Client) Authenticate(user, pass string) (msg string, err error) {
	err = c.conn.PrintfLine("authinfo user %s", user)
	if err != nil {
		return
	}
	_, _, err = c.conn.ReadCodeLine(381)
	if err != nil {
		return
	}

	err = c.conn.PrintfLine("authinfo pass %s", pass)
	if err != nil {
		return
	}
	_, msg, err = c.conn.ReadCodeLine(281)
	return
}

// Capabilities returns the lines of the CAPABILITIES response.
func (c *Client) Capabilities() ([]string, error) {
	return c.block("CAPABILITIES", 101)
}

// ModeReader sends MODE READER and reports whether posting is allowed.
func (c *Client) ModeReader() (bool, error) {
	code, _, err := c.Command("MODE READER", 2)
	return code == 200, err
}

// Date returns the server clock.
func (c *Client) Date() (time.Time, error) {
	_, msg, err := c.Command("DATE", 111)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation("20060102150405", strings.TrimSpace(msg), time.UTC)
}

func (c *Client) Group(name string) (rv nntp.Group, err error) {
	var msg string
	_, msg, err = c.Command("GROUP "+name, 211)
	if err != nil {
		return
	}
	return parseGroup(msg)
}

// count first last name
func parseGroup(msg string) (rv nntp.Group, err error) {
	parts := strings.Fields(msg)
	if len(parts) < 4 {
		return rv, fmt.Errorf("%w: %q", ErrBadResponse, msg)
	}
	rv.Count, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return
	}
	rv.Low, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	rv.High, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}
	rv.Name = parts[3]

	return
}

// ListGroup selects name and returns its article numbers, limited to
// rng when it is not empty.
func (c *Client) ListGroup(name, rng string) (nntp.Group, []int64, error) {
	cmd := strings.TrimSpace("LISTGROUP " + name + " " + rng)
	_, msg, err := c.Command(cmd, 211)
	if err != nil {
		return nntp.Group{}, nil, err
	}
	g, err := parseGroup(msg)
	if err != nil {
		c.conn.ReadDotLines()
		return g, nil, err
	}
	lines, err := c.conn.ReadDotLines()
	if err != nil {
		return g, nil, err
	}
	nums := make([]int64, 0, len(lines))
	for _, l := range lines {
		n, err := strconv.ParseInt(strings.TrimSpace(l), 10, 64)
		if err != nil {
			return g, nums, fmt.Errorf("%w: %q", ErrBadResponse, l)
		}
		nums = append(nums, n)
	}
	return g, nums, nil
}

// List sends LIST with the given keyword and optional wildmat.
func (c *Client) List(keyword, wildmat string) ([]string, error) {
	return c.block(strings.TrimSpace("LIST "+keyword+" "+wildmat), 215)
}

// NewNews lists the message-ids of articles in groups matching wildmat
// posted since t.
func (c *Client) NewNews(wildmat string, t time.Time) ([]string, error) {
	t = t.UTC()
	return c.block(fmt.Sprintf("NEWNEWS %s %s %s GMT",
		wildmat, t.Format("20060102"), t.Format("150405")), 230)
}

// Stat returns the number and message-id of the article specifier
// points at. An empty specifier means the current article.
func (c *Client) Stat(specifier string) (int64, string, error) {
	_, msg, err := c.Command(strings.TrimSpace("STAT "+specifier), 223)
	if err != nil {
		return 0, "", err
	}
	return parseNumberID(msg)
}

func parseNumberID(msg string) (int64, string, error) {
	parts := strings.SplitN(msg, " ", 3)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("%w: %q", ErrBadResponse, msg)
	}
	n, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", err
	}
	return n, parts[1], nil
}

func (c *Client) Article(specifier string) (int64, string, io.Reader, error) {
	err := c.conn.PrintfLine("ARTICLE %s", specifier)
	if err != nil {
		return 0, "", nil, err
	}
	return c.articleish(220)
}

func (c *Client) Head(specifier string) (int64, string, io.Reader, error) {
	err := c.conn.PrintfLine("HEAD %s", specifier)
	if err != nil {
		return 0, "", nil, err
	}
	return c.articleish(221)
}

func (c *Client) Body(specifier string) (int64, string, io.Reader, error) {
	err := c.conn.PrintfLine("BODY %s", specifier)
	if err != nil {
		return 0, "", nil, err
	}
	return c.articleish(222)
}

// The returned reader must be drained before the next command.
func (c *Client) articleish(expected int) (int64, string, io.Reader, error) {
	_, msg, err := c.conn.ReadCodeLine(expected)
	if err != nil {
		return 0, "", nil, err
	}
	n, id, err := parseNumberID(msg)
	if err != nil {
		return 0, "", nil, err
	}
	return n, id, c.conn.DotReader(), nil
}

// Over returns the overview of the articles selected by specifier: a
// range, a message-id, or "" for the whole current group.
func (c *Client) Over(specifier string) ([]nntp.ArticleInfo, error) {
	lines, err := c.block(strings.TrimSpace("OVER "+specifier), 224)
	if err != nil {
		return nil, err
	}
	rv := make([]nntp.ArticleInfo, 0, len(lines))
	for _, l := range lines {
		ai, err := ParseOverview(l)
		if err != nil {
			return rv, err
		}
		rv = append(rv, ai)
	}
	return rv, nil
}

// ParseOverview parses one line of an OVER response in the default
// overview format.
func ParseOverview(line string) (nntp.ArticleInfo, error) {
	f := strings.Split(line, "\t")
	if len(f) < 8 {
		return nntp.ArticleInfo{}, fmt.Errorf("%w: %q", ErrBadResponse, line)
	}
	var ai nntp.ArticleInfo
	var err error
	if ai.Number, err = strconv.ParseInt(f[0], 10, 64); err != nil {
		return ai, err
	}
	ai.Subject, ai.From, ai.MessageID, ai.References = f[1], f[2], f[4], f[5]
	if ai.Date, err = time.Parse(time.RFC1123Z, f[3]); err != nil {
		return ai, err
	}
	if ai.Bytes, err = strconv.Atoi(f[6]); err != nil {
		return ai, err
	}
	if ai.Lines, err = strconv.Atoi(f[7]); err != nil {
		return ai, err
	}
	return ai, nil
}

// Hdr returns the "number value" lines of HDR field for specifier.
func (c *Client) Hdr(field, specifier string) ([]string, error) {
	return c.block(strings.TrimSpace("HDR "+field+" "+specifier), 225)
}

func (c *Client) Post(r io.Reader) error {
	err := c.conn.PrintfLine("POST")
	if err != nil {
		return err
	}
	_, _, err = c.conn.ReadCodeLine(340)
	if err != nil {
		return err
	}
	w := c.conn.DotWriter()
	_, err = io.Copy(w, r)
	if err != nil {
		// The server is still waiting for the terminator.
		w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	_, _, err = c.conn.ReadCodeLine(240)
	return err
}

func (c *Client) Command(cmd string, expectCode int) (int, string, error) {
	err := c.conn.PrintfLine("%s", cmd)
	if err != nil {
		return 0, "", err
	}
	return c.conn.ReadCodeLine(expectCode)
}

func (c *Client) block(cmd string, expectCode int) ([]string, error) {
	if _, _, err := c.Command(cmd, expectCode); err != nil {
		return nil, err
	}
	return c.conn.ReadDotLines()
}
