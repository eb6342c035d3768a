package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/remote"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const usage = `usage: authclient <command> [flags]

commands:
  login     -email -password   log in and store the session
  register  -email -password -name
  whoami                       validate the stored session
  refresh                      renew the stored credential
  get       -path              authenticated GET, prints the body
  logout                       clear the stored session

The session survives between runs only with STORE_BACKEND=redis.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name for register")
	path := fs.String("path", remote.RouteMe, "path for get")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := config.New()
	logger := logging.Setup(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := authclient.New(ctx, c,
		authclient.WithLogger(logger),
		authclient.WithRegisterer(prometheus.DefaultRegisterer),
		authclient.WithNavigator(session.NavigatorFunc(func(route string) {
			logger.Info().Str("route", route).Msg("navigate")
		})),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	s := client.Session()
	s.OnLogout(func() { logger.Warn().Msg("session expired, please log in again") })

	switch command {
	case "login":
		if _, err := s.Login(ctx, *email, *password); err != nil {
			return err
		}
		printUser(logger, s)
	case "register":
		if _, err := s.Register(ctx, remote.SignupRequest{Email: *email, Password: *password, Name: *name}); err != nil {
			return err
		}
		printUser(logger, s)
	case "whoami":
		if err := s.Initialize(ctx); err != nil {
			return err
		}
		printUser(logger, s)
	case "refresh":
		if err := s.Initialize(ctx); err != nil {
			return err
		}
		if err := s.RefreshSession(ctx); err != nil {
			return err
		}
		printUser(logger, s)
	case "get":
		var out any
		if err := client.DoJSON(ctx, http.MethodGet, *path, nil, &out); err != nil {
			return err
		}
		fmt.Printf("%v\n", out)
	case "logout":
		return s.Logout(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func printUser(logger zerolog.Logger, s *session.Manager) {
	u := utils.Value(s.User())
	logger.Info().Int64("id", u.ID).Str("email", u.Email).Str("status", s.State().Status.String()).Msg("user")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
