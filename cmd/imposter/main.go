package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imposter-client/internal/config"
	"github.com/DoyleJ11/imposter-client/internal/engine"
	"github.com/DoyleJ11/imposter-client/internal/httpapi"
	"github.com/DoyleJ11/imposter-client/internal/hub"
	"github.com/DoyleJ11/imposter-client/internal/types"
	"github.com/DoyleJ11/imposter-client/internal/view"
)

const usage = `commands:
  create           open a new lobby as host
  join CODE        look up a lobby and go to its join screen
  name NAME        register under NAME
  start N          deal a round with N impostors (host)
  end              end the round (host)
  restart [N]      deal again, optionally with a new count (host)
  open PATH        go to a route such as /join/ABC123
  leave            back to the home screen
  state            print the current screen
  quit`

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: imposter [route]")
		fmt.Fprintln(os.Stderr, usage)
	}
	flag.Parse()
	route := "/"
	if flag.NArg() > 0 {
		route = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &printer{w: os.Stdout}
	h := hub.NewHub(ctx, view.Deps{
		API:      httpapi.NewClient(cfg.APIURL, cfg.HTTPTimeout, log),
		Render:   out.render,
		HostName: cfg.HostName,
		Log:      log,
	})
	defer h.Shutdown()

	log.Info("client starting", zap.String("api", cfg.APIURL), zap.String("env", cfg.Env))
	h.Navigate(types.ParseRoute(route))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	fmt.Println(usage)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(h, out, line); quit {
				return
			}
		}
	}
}

func run(h *hub.Hub, out *printer, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	if cmd == "" {
		return false
	}
	if cmd == "quit" || cmd == "exit" {
		return true
	}
	if cmd == "open" {
		h.Navigate(types.ParseRoute(arg))
		return false
	}

	v := h.Current()
	if v == nil {
		out.println("no screen mounted")
		return false
	}

	var err error
	switch cmd {
	case "create":
		err = v.CreateLobby()
	case "join":
		err = v.JoinByCode(arg)
	case "name":
		err = v.SubmitName(arg)
	case "start":
		err = v.StartRound(arg)
	case "end":
		err = v.EndRound()
	case "restart":
		n := 0
		if arg != "" {
			if n, err = strconv.Atoi(arg); err != nil {
				break
			}
		}
		err = v.RestartRound(n)
	case "leave":
		err = v.Leave()
	case "state":
		var s engine.Snapshot
		if s, err = v.Snapshot(); err == nil {
			out.render(s)
		}
	default:
		out.println(usage)
	}
	if err != nil {
		out.println("error: " + err.Error())
	}
	return false
}

type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

func (p *printer) render(s engine.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.View)
	if s.Code != "" {
		fmt.Fprintf(&b, " lobby %s", s.Code)
	}
	if s.Name != "" {
		fmt.Fprintf(&b, " as %s", s.Name)
	}
	if s.View != types.ViewHome && s.ExpiresIn > 0 {
		fmt.Fprintf(&b, " (expires in %ds)", s.ExpiresIn)
	}

	switch s.View {
	case types.ViewLobby, types.ViewJoin:
		fmt.Fprintf(&b, "\n  players: %s", strings.Join(s.Roster, ", "))
		if s.View == types.ViewLobby && !s.HostReady {
			b.WriteString("\n  waiting for host channel")
		}
	case types.ViewGame:
		switch s.Branch {
		case engine.BranchHost:
			fmt.Fprintf(&b, "\n  round %s, %d players", s.Phase, s.Votes.TotalParticipants)
		case engine.BranchImpostor:
			b.WriteString("\n  you are the IMPOSTOR")
		case engine.BranchWordHolder:
			fmt.Fprintf(&b, "\n  the word is %q", s.Word)
		default:
			b.WriteString("\n  waiting for your role")
		}
		if s.Votes.BadVotes > 0 {
			fmt.Fprintf(&b, "\n  votes: %d/%d", s.Votes.BadVotes, s.Votes.TotalParticipants)
		}
	}

	fields := make([]string, 0, len(s.Errors))
	for f := range s.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, s.Errors[f])
	}
	p.println(b.String())
}
