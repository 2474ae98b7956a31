// Package nntpserver provides everything you need for your own NNTP server.
package nntpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epilys/sic-sub000"
)

// An NNTPError is a coded NNTP error message.
type NNTPError struct {
	Code int
	Msg  string
}

// ErrNoSuchGroup is returned for a request for a group that can't be found.
var ErrNoSuchGroup = &NNTPError{411, "No such newsgroup"}

// ErrNoGroupSelected is returned for a request that requires a current
// group when none has been selected.
var ErrNoGroupSelected = &NNTPError{412, "No newsgroup selected"}

// ErrInvalidMessageID is returned when a message is requested that can't be found.
var ErrInvalidMessageID = &NNTPError{430, "No article with that message-id"}

// ErrInvalidArticleNumber is returned when an article is requested that can't be found.
var ErrInvalidArticleNumber = &NNTPError{423, "No article with that number"}

// ErrNoCurrentArticle is returned when a command is executed that
// requires a current article when one has not been selected.
var ErrNoCurrentArticle = &NNTPError{420, "Current article number is invalid"}

// ErrUnknownCommand is returned for unknown comands.
var ErrUnknownCommand = &NNTPError{500, "Unknown command"}

// ErrSyntax is returned when a command can't be parsed.
var ErrSyntax = &NNTPError{501, "Syntax Error"}

// ErrPostingNotPermitted is returned as the response to an attempt to
// post an article where posting is not permitted.
var ErrPostingNotPermitted = &NNTPError{440, "Posting not permitted"}

// ErrPostingFailed is returned when an attempt to post an article fails.
var ErrPostingFailed = &NNTPError{441, "Posting failed"}

// ErrNotAuthenticated is returned when a command is issued that requires
// authentication, but authentication was not provided.
var ErrNotAuthenticated = &NNTPError{480, "Authentication required"}

// ErrAuthRejected is returned for invalid authentication.
var ErrAuthRejected = &NNTPError{481, "Authentication failed"}

// ErrAuthOutOfSequence is returned for AUTHINFO PASS without a
// preceding AUTHINFO USER.
var ErrAuthOutOfSequence = &NNTPError{482, "Authentication commands issued out of sequence"}

// ErrEncryptionRequired is returned for AUTHINFO over a plain
// connection when authentication is only offered over TLS.
var ErrEncryptionRequired = &NNTPError{483, "Encryption required"}

// ErrCommandUnavailable is returned for commands the server is not
// configured to accept.
var ErrCommandUnavailable = &NNTPError{502, "Command unavailable"}

// ErrProgramFault is sent before dropping a connection whose command
// failed for internal reasons.
var ErrProgramFault = &NNTPError{503, "Program fault - command not performed"}

func (e *NNTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Msg)
}

// Handler is a low-level protocol handler
type Handler func(args []string, s *session, c *textConn) error

// The Backend that provides the things and does the stuff.
//
// Lookup methods return *NNTPError values (ErrNoSuchGroup,
// ErrInvalidArticleNumber, ErrInvalidMessageID...) for things that do
// not exist. Any other error is treated as a backend fault.
type Backend interface {
	ListGroups(ctx context.Context) ([]*nntp.Group, error)
	GetGroup(ctx context.Context, name string) (*nntp.Group, error)
	GetArticleInfo(ctx context.Context, key nntp.ArticleKey) (*nntp.ArticleInfo, error)
	GetArticle(ctx context.Context, key nntp.ArticleKey) (*nntp.Article, error)
	// GetArticles lists the articles of group numbered from..to,
	// inclusive, in number order.
	GetArticles(ctx context.Context, group *nntp.Group, from, to int64) ([]*nntp.ArticleInfo, error)
	// Refresh is called before commands that depend on numbering or
	// group membership.
	Refresh(ctx context.Context) error
	// Authenticate checks credentials and returns an opaque token for
	// the session.
	Authenticate(ctx context.Context, user, pass string) (string, error)
	// Post receives a raw article, CRLF separated, from a session
	// holding token ("" when unauthenticated).
	Post(ctx context.Context, token string, article io.Reader) error
}

// AuthSetting controls AUTHINFO.
type AuthSetting int

const (
	// AuthNone disables AUTHINFO.
	AuthNone AuthSetting = iota
	// AuthRequired offers AUTHINFO on every connection. Commands
	// gated behind authentication (POST with PostAuthRequired) need it.
	AuthRequired
	// AuthSecureOnly offers AUTHINFO only over TLS.
	AuthSecureOnly
)

// PostSetting controls POST.
type PostSetting int

const (
	PostNotPermitted PostSetting = iota
	PostPermitted
	PostAuthRequired
)

const historySize = 32

type session struct {
	server  *Server
	backend Backend
	ctx     context.Context
	log     *slog.Logger
	group   *nntp.Group
	// current article number, 0 when there is none
	current int64
	tls     bool

	authUser  string
	authed    bool
	authToken string

	history []string
}

// The Server handle.
type Server struct {
	// Handlers are dispatched by command name.
	Handlers map[string]Handler
	// The backend (your code) that provides data
	Backend Backend
	Auth    AuthSetting
	Posting PostSetting
	// ReadTimeout closes connections idle for longer; 0 disables it.
	ReadTimeout time.Duration
	Logger      *slog.Logger
	// Now is the clock used by DATE and NEWNEWS; time.Now when nil.
	Now func() time.Time

	nextID    atomic.Uint64
	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	wg        sync.WaitGroup
	closing   bool
	baseCtx   context.Context
	cancel    context.CancelFunc
}

// NewServer builds a new server handle request to a backend.
func NewServer(backend Backend) *Server {
	rv := Server{
		Handlers:  make(map[string]Handler),
		Backend:   backend,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
	rv.baseCtx, rv.cancel = context.WithCancel(context.Background())
	rv.Handlers[""] = handleDefault
	rv.Handlers["quit"] = handleQuit
	rv.Handlers["group"] = handleGroup
	rv.Handlers["listgroup"] = handleListGroup
	rv.Handlers["list"] = handleList
	rv.Handlers["stat"] = handleStat
	rv.Handlers["head"] = handleHead
	rv.Handlers["body"] = handleBody
	rv.Handlers["article"] = handleArticle
	rv.Handlers["post"] = handlePost
	rv.Handlers["capabilities"] = handleCap
	rv.Handlers["mode"] = handleMode
	rv.Handlers["authinfo"] = handleAuthInfo
	rv.Handlers["date"] = handleDate
	rv.Handlers["newnews"] = handleNewNews
	rv.Handlers["newgroups"] = handleNewGroups
	rv.Handlers["over"] = handleOver
	rv.Handlers["xover"] = handleOver
	rv.Handlers["hdr"] = handleHdr
	rv.Handlers["xhdr"] = handleHdr
	return &rv
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) postingAllowed() bool {
	return s.Posting == PostPermitted
}

func (s *session) canPost() bool {
	switch s.server.Posting {
	case PostPermitted:
		return true
	case PostAuthRequired:
		return s.authed
	}
	return false
}

// authOffered reports whether AUTHINFO may be used on this session.
func (s *session) authOffered() bool {
	switch s.server.Auth {
	case AuthRequired:
		return true
	case AuthSecureOnly:
		return s.tls
	}
	return false
}

func (s *session) record(line string) {
	if fields := strings.Fields(line); len(fields) > 2 &&
		strings.EqualFold(fields[0], "authinfo") && strings.EqualFold(fields[1], "pass") {
		line = fields[0] + " " + fields[1] + " ********"
	}
	if len(s.history) == historySize {
		copy(s.history, s.history[1:])
		s.history = s.history[:historySize-1]
	}
	s.history = append(s.history, line)
}

// refresh asks the backend to rebuild its numbering. A failure keeps
// the previous numbering.
func (s *session) refresh() {
	if err := s.backend.Refresh(s.ctx); err != nil {
		s.log.Warn("refresh failed, serving previous index", "error", err)
	}
}

func (s *session) dispatchCommand(cmd string, args []string,
	c *textConn) (err error) {

	handler, found := s.server.Handlers[strings.ToLower(cmd)]
	if !found {
		handler, found = s.server.Handlers[""]
		if !found {
			panic("No default handler.")
		}
	}
	return handler(args, s, c)
}

func (s *Server) newSession(nc net.Conn) *session {
	id := s.nextID.Add(1)
	remote := "pipe"
	if addr := nc.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	_, isTLS := nc.(*tls.Conn)
	return &session{
		server:  s,
		backend: s.Backend,
		ctx:     s.baseCtx,
		log:     s.logger().With("conn", id, "remote", remote),
		tls:     isTLS,
	}
}

// Process an NNTP session.
func (s *Server) Process(nc net.Conn) {
	defer nc.Close()
	c := newTextConn(nc, s.ReadTimeout)
	sess := s.newSession(nc)

	defer func() {
		if r := recover(); r != nil {
			sess.log.Error("panic handling command, dropping conn", "panic", r)
			c.sendLine("%s", ErrProgramFault.Error())
		}
		sess.log.Debug("session closed", "history", sess.history)
	}()

	sess.log.Debug("session opened")
	if s.postingAllowed() {
		c.sendLine("200 NNTP Service Ready, posting permitted")
	} else {
		c.sendLine("201 NNTP Service Ready, posting prohibited")
	}
	for {
		l, err := c.readLine()
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF):
				sess.log.Debug("client hung up")
			case errors.As(err, &ne) && ne.Timeout(), errors.Is(err, os.ErrDeadlineExceeded):
				sess.log.Info("idle timeout, dropping conn")
			default:
				sess.log.Warn("error reading from client, dropping conn", "error", err)
			}
			return
		}
		sess.record(l)
		cmd := strings.Fields(l)
		sess.log.Debug("got cmd", "cmd", sess.history[len(sess.history)-1])
		verb := ""
		args := []string{}
		if len(cmd) > 0 {
			verb = cmd[0]
			args = cmd[1:]
		}
		err = sess.dispatchCommand(verb, args, c)
		if err != nil {
			var nerr *NNTPError
			switch {
			case err == io.EOF:
				// Drop this connection silently. They hung up
				return
			case errors.As(err, &nerr):
				if werr := c.sendLine("%s", nerr.Error()); werr != nil {
					sess.log.Warn("error writing to client, dropping conn", "error", werr)
					return
				}
			default:
				sess.log.Error("error dispatching command, dropping conn",
					"cmd", verb, "error", err)
				c.sendLine("%s", ErrProgramFault.Error())
				return
			}
		}
	}
}

func parseRange(spec string) (low, high int64) {
	if spec == "" {
		return 0, math.MaxInt64
	}
	parts := strings.Split(spec, "-")
	if len(parts) == 1 {
		h, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			h = math.MaxInt64
		}
		return h, h
	}
	l, _ := strconv.ParseInt(parts[0], 10, 64)
	h, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		h = math.MaxInt64
	}
	return l, h
}
