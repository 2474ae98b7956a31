// Command nntpfetch lists and fetches articles from a news server.
//
//	nntpfetch [flags] GROUP [RANGE]     print the overview of GROUP
//	nntpfetch [flags] -a ID             print article ID
//	nntpfetch [flags] --post FILE       post FILE ("-" for stdin)
package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/epilys/sic-sub000"
	"github.com/epilys/sic-sub000/client"
)

func maybefatal(s string, e error) {
	if e != nil {
		log.Fatalf("Error in %s: %v", s, e)
	}
}

func dial(addr string, useTLS bool) (*nntpclient.Client, error) {
	if !useTLS {
		return nntpclient.New("tcp", addr)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	return nntpclient.NewConn(conn)
}

func printOverview(w io.Writer, infos []nntp.ArticleInfo) {
	for _, a := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.Number, nntp.FormatDate(a.Date), a.From, a.Subject, a.MessageID)
	}
}

func main() {
	flags := pflag.NewFlagSet("nntpfetch", pflag.ExitOnError)
	server := flags.StringP("server", "s", "localhost:9999", "news server address")
	useTLS := flags.Bool("tls", false, "connect over TLS")
	user := flags.StringP("user", "u", "", "AUTHINFO user")
	pass := flags.StringP("pass", "p", "", "AUTHINFO password")
	article := flags.StringP("article", "a", "", "fetch one article by number or message-id")
	post := flags.String("post", "", "post the article in this file, - for stdin")
	flags.Parse(os.Args[1:])

	c, err := dial(*server, *useTLS)
	maybefatal("connecting", err)
	defer c.Close()
	log.Printf("Got banner:  %v", c.Banner)

	if *user != "" {
		msg, err := c.Authenticate(*user, *pass)
		maybefatal("authenticating", err)
		log.Printf("Post authentication message:  %v", msg)
	}

	_, err = c.ModeReader()
	maybefatal("setting reader mode", err)

	switch {
	case *post != "":
		var r io.Reader = os.Stdin
		if *post != "-" {
			f, err := os.Open(*post)
			maybefatal("opening article", err)
			defer f.Close()
			r = f
		}
		maybefatal("posting", c.Post(r))
		log.Printf("Posted!")

	case *article != "":
		if !strings.HasPrefix(*article, "<") {
			_, err := c.Group(flags.Arg(0))
			maybefatal("grouping", err)
		}
		n, id, r, err := c.Article(*article)
		maybefatal("getting article", err)
		log.Printf("Full message %d %v", n, id)
		_, err = io.Copy(os.Stdout, r)
		maybefatal("reading the full message", err)

	default:
		if flags.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: nntpfetch [flags] GROUP [RANGE]")
			flags.PrintDefaults()
			os.Exit(2)
		}
		g, err := c.Group(flags.Arg(0))
		maybefatal("grouping", err)
		log.Printf("Got %v: %d articles, %d-%d", g.Name, g.Count, g.Low, g.High)
		infos, err := c.Over(flags.Arg(1))
		maybefatal("getting overview", err)
		printOverview(os.Stdout, infos)
	}

	maybefatal("quitting", c.Quit())
}
