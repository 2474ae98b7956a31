package nntpserver

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epilys/sic-sub000"
)

func handleDefault(args []string, s *session, c *textConn) error {
	return ErrUnknownCommand
}

func handleQuit(args []string, s *session, c *textConn) error {
	c.sendLine("205 Connection closing")
	return io.EOF
}

func handleCap(args []string, s *session, c *textConn) error {
	caps := []string{"VERSION 2", "READER"}
	if s.canPost() {
		caps = append(caps, "POST")
	}
	if s.authOffered() && !s.authed {
		caps = append(caps, "AUTHINFO USER")
	}
	caps = append(caps,
		"HDR",
		"LIST ACTIVE NEWSGROUPS OVERVIEW.FMT HEADERS",
		"NEWNEWS",
		"OVER",
		"IMPLEMENTATION sic-nntp",
	)
	return c.sendBlock("101 Capability list:", caps)
}

func handleMode(args []string, s *session, c *textConn) error {
	if len(args) < 1 || strings.ToLower(args[0]) != "reader" {
		return ErrSyntax
	}
	if s.canPost() {
		return c.sendLine("200 Posting allowed")
	}
	return c.sendLine("201 Posting prohibited")
}

func handleDate(args []string, s *session, c *textConn) error {
	return c.sendLine("111 %s", s.server.now().UTC().Format("20060102150405"))
}

// groupErr maps a backend failure on a group lookup to what the client
// sees.
func (s *session) groupErr(name string, err error) error {
	var nerr *NNTPError
	if errors.As(err, &nerr) {
		return nerr
	}
	s.log.Warn("group lookup failed", "group", name, "error", err)
	return ErrNoSuchGroup
}

func (s *session) selectGroup(group *nntp.Group) {
	s.group = group
	s.current = 0
	if group.Count > 0 {
		s.current = group.Low
	}
}

func handleGroup(args []string, s *session, c *textConn) error {
	if len(args) < 1 {
		return ErrSyntax
	}
	s.refresh()
	group, err := s.backend.GetGroup(s.ctx, args[0])
	if err != nil {
		return s.groupErr(args[0], err)
	}
	s.selectGroup(group)

	return c.sendLine("211 %d %d %d %s",
		group.Count, group.Low, group.High, group.Name)
}

func handleListGroup(args []string, s *session, c *textConn) error {
	name := ""
	switch {
	case len(args) > 0:
		name = args[0]
	case s.group != nil:
		name = s.group.Name
	default:
		return ErrNoGroupSelected
	}
	s.refresh()
	group, err := s.backend.GetGroup(s.ctx, name)
	if err != nil {
		return s.groupErr(name, err)
	}
	s.selectGroup(group)

	from, to := group.Low, group.High
	if len(args) > 1 {
		from, to = parseRange(args[1])
	}
	var nums []string
	if group.Count > 0 {
		articles, err := s.backend.GetArticles(s.ctx, group, from, to)
		if err != nil {
			s.log.Warn("listing group failed", "group", name, "error", err)
		}
		for _, a := range articles {
			nums = append(nums, strconv.FormatInt(a.Number, 10))
		}
	}
	return c.sendBlock(fmt.Sprintf("211 %d %d %d %s list follows",
		group.Count, group.Low, group.High, group.Name), nums)
}

func handleList(args []string, s *session, c *textConn) error {
	ltype := "active"
	if len(args) > 0 {
		ltype = strings.ToLower(args[0])
	}

	var pattern *wildmat
	if len(args) > 1 {
		var err error
		if pattern, err = compileWildmat(args[1]); err != nil {
			return ErrSyntax
		}
	}

	switch ltype {
	case "overview.fmt":
		return c.sendBlock("215 Order of fields in overview database.", nntp.OverviewFormat)
	case "headers":
		return c.sendBlock("215 Field list follows", hdrFields)
	case "active", "newsgroups":
	default:
		return ErrSyntax
	}

	if ltype == "active" {
		s.refresh()
	}
	groups, err := s.backend.ListGroups(s.ctx)
	if err != nil {
		s.log.Warn("listing groups failed", "error", err)
		groups = nil
	}
	var rows []string
	for _, g := range groups {
		if !pattern.Match(g.Name) {
			continue
		}
		switch ltype {
		case "active":
			rows = append(rows, fmt.Sprintf("%s %d %d %v", g.Name, g.High, g.Low, g.Posting))
		case "newsgroups":
			rows = append(rows, fmt.Sprintf("%s\t%s", g.Name, g.Description))
		}
	}
	return c.sendBlock("215 list of newsgroups follows", rows)
}

var hdrFields = []string{
	"Subject:",
	"From:",
	"Date:",
	"Message-ID:",
	"References:",
	":bytes",
	":lines",
	":",
}

// articleKey works out which article STAT, HEAD, BODY and ARTICLE
// refer to. implicit is true when the current article is used.
func (s *session) articleKey(args []string) (key nntp.ArticleKey, implicit bool, err error) {
	if len(args) == 0 {
		if s.group == nil {
			return key, true, ErrNoGroupSelected
		}
		if s.current == 0 {
			return key, true, ErrNoCurrentArticle
		}
		return nntp.NumberKey(s.current), true, nil
	}
	key = nntp.ParseArticleKey(args[0])
	if key.IsNumber() {
		if s.group == nil {
			return key, false, ErrNoGroupSelected
		}
		// 0 is never an article number.
		if key.Number() <= 0 {
			return key, false, ErrInvalidArticleNumber
		}
	}
	return key, false, nil
}

// lookupErr maps a backend failure on an article lookup to the code
// matching the form of the request.
func (s *session) lookupErr(key nntp.ArticleKey, implicit bool, err error) error {
	var nerr *NNTPError
	if !errors.As(err, &nerr) {
		s.log.Warn("article lookup failed", "key", key.String(), "error", err)
	}
	switch {
	case implicit:
		return ErrNoCurrentArticle
	case key.IsNumber():
		return ErrInvalidArticleNumber
	}
	return ErrInvalidMessageID
}

func (s *session) getArticleInfo(args []string) (*nntp.ArticleInfo, error) {
	key, implicit, err := s.articleKey(args)
	if err != nil {
		return nil, err
	}
	s.refresh()
	info, err := s.backend.GetArticleInfo(s.ctx, key)
	if err != nil {
		return nil, s.lookupErr(key, implicit, err)
	}
	if key.IsNumber() {
		s.current = info.Number
	}
	return info, nil
}

func (s *session) getArticle(args []string) (*nntp.Article, error) {
	key, implicit, err := s.articleKey(args)
	if err != nil {
		return nil, err
	}
	s.refresh()
	article, err := s.backend.GetArticle(s.ctx, key)
	if err != nil {
		return nil, s.lookupErr(key, implicit, err)
	}
	if key.IsNumber() {
		s.current = article.Number
	}
	return article, nil
}

func bodyLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

/*
   Syntax
     STAT message-id
     STAT number
     STAT

   First form (message-id specified)
     223 0|n message-id    Article exists
     430                   No article with that message-id

   Second form (article number specified)
     223 n message-id      Article exists
     412                   No newsgroup selected
     423                   No article with that number

   Third form (current article number used)
     223 n message-id      Article exists
     412                   No newsgroup selected
     420                   Current article number is invalid
*/

func handleStat(args []string, s *session, c *textConn) error {
	info, err := s.getArticleInfo(args)
	if err != nil {
		return err
	}
	return c.sendLine("223 %d %s", info.Number, info.MessageID)
}

// HEAD, BODY and ARTICLE share STAT's three forms, answering with
// 221, 222 and 220.

func handleHead(args []string, s *session, c *textConn) error {
	info, err := s.getArticleInfo(args)
	if err != nil {
		return err
	}
	return c.sendBlock(fmt.Sprintf("221 %d %s", info.Number, info.MessageID),
		info.HeaderLines())
}

func handleBody(args []string, s *session, c *textConn) error {
	article, err := s.getArticle(args)
	if err != nil {
		return err
	}
	return c.sendBlock(fmt.Sprintf("222 %d %s", article.Number, article.MessageID),
		bodyLines(article.Body))
}

func handleArticle(args []string, s *session, c *textConn) error {
	article, err := s.getArticle(args)
	if err != nil {
		return err
	}
	lines := article.HeaderLines()
	lines = append(lines, "")
	lines = append(lines, bodyLines(article.Body)...)
	return c.sendBlock(fmt.Sprintf("220 %d %s", article.Number, article.MessageID), lines)
}

// selection resolves the optional range or message-id argument of
// OVER and HDR. With no argument the whole selected group is used.
func (s *session) selection(args []string) ([]*nntp.ArticleInfo, bool, error) {
	if len(args) > 0 && strings.HasPrefix(args[0], "<") {
		key := nntp.MessageIDKey(args[0])
		info, err := s.backend.GetArticleInfo(s.ctx, key)
		if err != nil {
			return nil, true, s.lookupErr(key, false, err)
		}
		return []*nntp.ArticleInfo{info}, true, nil
	}
	if s.group == nil {
		return nil, false, ErrNoGroupSelected
	}
	from, to := s.group.Low, s.group.High
	if len(args) > 0 {
		from, to = parseRange(args[0])
	}
	articles, err := s.backend.GetArticles(s.ctx, s.group, from, to)
	if err != nil {
		s.log.Warn("listing articles failed", "group", s.group.Name, "error", err)
		articles = nil
	}
	if len(args) > 0 && len(articles) == 0 {
		return nil, false, &NNTPError{423, "No articles in that range"}
	}
	return articles, false, nil
}

/*
   "0" or article number (see below)
   Subject header content
   From header content
   Date header content
   Message-ID header content
   References header content
   :bytes metadata item
   :lines metadata item
*/

func handleOver(args []string, s *session, c *textConn) error {
	articles, byID, err := s.selection(args)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		n := a.Number
		if byID {
			n = 0
		}
		lines = append(lines, a.Overview(n))
	}
	return c.sendBlock("224 Overview information follows", lines)
}

func handleHdr(args []string, s *session, c *textConn) error {
	if len(args) < 1 {
		return ErrSyntax
	}
	field := args[0]
	articles, byID, err := s.selection(args[1:])
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		n := a.Number
		if byID {
			n = 0
		}
		v, _ := a.Field(field)
		lines = append(lines, fmt.Sprintf("%d %s", n, v))
	}
	return c.sendBlock("225 Headers follow", lines)
}

func handleNewNews(args []string, s *session, c *textConn) error {
	if len(args) < 3 {
		return ErrSyntax
	}
	pattern, err := compileWildmat(args[0])
	if err != nil {
		return ErrSyntax
	}
	since, err := nntp.ParseDateTime(args[1], args[2], s.server.now())
	if err != nil {
		return ErrSyntax
	}
	s.refresh()
	groups, err := s.backend.ListGroups(s.ctx)
	if err != nil {
		s.log.Warn("listing groups failed", "error", err)
	}
	seen := map[string]bool{}
	var ids []string
	for _, g := range groups {
		if !pattern.Match(g.Name) || g.Count == 0 {
			continue
		}
		articles, err := s.backend.GetArticles(s.ctx, g, g.Low, g.High)
		if err != nil {
			s.log.Warn("listing articles failed", "group", g.Name, "error", err)
			continue
		}
		for _, a := range articles {
			if a.Date.Before(since) || seen[a.MessageID] {
				continue
			}
			seen[a.MessageID] = true
			ids = append(ids, a.MessageID)
		}
	}
	return c.sendBlock("230 list of new articles by message-id follows", ids)
}

func handleNewGroups(args []string, s *session, c *textConn) error {
	if len(args) < 2 {
		return ErrSyntax
	}
	since, err := nntp.ParseDateTime(args[0], args[1], s.server.now())
	if err != nil {
		return ErrSyntax
	}
	s.refresh()
	groups, err := s.backend.ListGroups(s.ctx)
	if err != nil {
		s.log.Warn("listing groups failed", "error", err)
	}
	var rows []string
	for _, g := range groups {
		if g.Created.Before(since) {
			continue
		}
		rows = append(rows, fmt.Sprintf("%s %d %d %v", g.Name, g.High, g.Low, g.Posting))
	}
	return c.sendBlock("231 list of new newsgroups follows", rows)
}

/*
   AUTHINFO USER username
     281    Authentication accepted
     381    Password required
     481    Authentication failed/rejected
     482    Authentication commands issued out of sequence
     502    Command unavailable

   AUTHINFO PASS password
     281    Authentication accepted
     481    Authentication failed/rejected
     482    Authentication commands issued out of sequence
     502    Command unavailable
*/

func handleAuthInfo(args []string, s *session, c *textConn) error {
	if s.server.Auth == AuthNone || s.authed {
		return ErrCommandUnavailable
	}
	if len(args) < 2 {
		return ErrSyntax
	}
	if !s.authOffered() {
		return ErrEncryptionRequired
	}

	switch strings.ToLower(args[0]) {
	case "user":
		s.authUser = args[1]
		return c.sendLine("381 Password required")
	case "pass":
		if s.authUser == "" {
			return ErrAuthOutOfSequence
		}
		user := s.authUser
		s.authUser = ""
		token, err := s.backend.Authenticate(s.ctx, user, strings.Join(args[1:], " "))
		if err != nil {
			var nerr *NNTPError
			if errors.As(err, &nerr) {
				return nerr
			}
			s.log.Warn("authentication error", "user", user, "error", err)
			return ErrAuthRejected
		}
		s.authed = true
		s.authToken = token
		s.log.Info("authenticated", "user", user)
		return c.sendLine("281 Authentication accepted")
	}
	return ErrSyntax
}

/*
   Syntax
     POST

   Responses

   Initial responses
     340    Send article to be posted
     440    Posting not permitted

   Subsequent responses
     240    Article received OK
     441    Posting failed
*/

func handlePost(args []string, s *session, c *textConn) error {
	if !s.canPost() {
		return ErrPostingNotPermitted
	}
	// With authentication configured a session posts as its user.
	if !s.authed && s.server.Auth != AuthNone {
		if s.authOffered() {
			return ErrNotAuthenticated
		}
		return ErrEncryptionRequired
	}

	if err := c.sendLine("340 Send article to be posted"); err != nil {
		return err
	}
	lines, err := c.readBlock()
	if err != nil {
		return err
	}
	article := strings.Join(lines, "\r\n") + "\r\n"
	if err := s.backend.Post(s.ctx, s.authToken, strings.NewReader(article)); err != nil {
		var nerr *NNTPError
		if errors.As(err, &nerr) {
			return nerr
		}
		s.log.Warn("posting failed", "error", err)
		return ErrPostingFailed
	}
	return c.sendLine("240 Article received OK")
}
