// Command adminctl drives the admin session protocol from a terminal.
//
//	adminctl login -email ann@example.com -password ...
//	adminctl status -route /posts
//	adminctl watch -route /posts
//	adminctl me
//	adminctl logout
//	adminctl hash-password -password ...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/blog_admin/internal/client"
	"github.com/rryowa/blog_admin/internal/util"
)

type consoleNavigator struct {
	route string
	log   *zap.SugaredLogger
}

func (n *consoleNavigator) Route() string { return n.route }

func (n *consoleNavigator) Redirect(route string) {
	n.log.Infow("Redirect", "from", n.route, "to", route)
	n.route = route
}

type consoleView struct {
	log *zap.SugaredLogger
}

func (v consoleView) ShowError(msg string)  { v.log.Errorw(msg) }
func (v consoleView) ShowNotice(msg string) { v.log.Warnw(msg) }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	logger := util.NewZapLogger()
	if err := run(os.Args[1], os.Args[2:], logger); err != nil {
		logger.Fatal(zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adminctl <login|status|watch|me|logout|hash-password> [flags]")
}

func run(cmd string, args []string, logger *zap.SugaredLogger) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "account password (defaults to $ADMIN_PASSWORD)")
	route := fs.String("route", "", "route the client pretends to be on (defaults to the home route)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd == "hash-password" {
		if *password == "" {
			return fmt.Errorf("-password is required")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Println(string(hash))
		return nil
	}

	cfg := util.NewClientConfig()
	if *route == "" {
		*route = cfg.HomeRoute
	}

	bearer := &client.BearerHolder{}
	store := client.NewFileStorage(cfg.SessionFile)
	httpClient, err := client.NewHTTPClient(cfg.APIURL, cfg.RequestTimeout, bearer, store)
	if err != nil {
		return err
	}
	ctrl := client.NewController(client.ControllerDeps{
		API:       httpClient,
		Storage:   store,
		Navigator: &consoleNavigator{route: *route, log: logger},
		View:      consoleView{log: logger},
		Bearer:    bearer,
		Routes:    client.RoutesFromConfig(cfg),
		Log:       logger,
	})
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "login":
		if *email == "" || *password == "" {
			return fmt.Errorf("-email and -password are required")
		}
		if err := ctrl.Login(ctx, *email, *password); err != nil {
			return err
		}
		logger.Infow("Signed in", "user", ctrl.User().Email, "renewAt", ctrl.Deadline())
	case "status":
		state := ctrl.Mount(ctx)
		logger.Infow("Session status", "state", state.String(), "user", ctrl.User())
	case "watch":
		state := ctrl.Mount(ctx)
		logger.Infow("Watching session", "state", state.String(), "renewAt", ctrl.Deadline())
		if state != client.StateReady {
			return nil
		}
		<-ctx.Done()
	case "me":
		if state := ctrl.Mount(ctx); state != client.StateReady {
			return fmt.Errorf("session is not usable: %s", state)
		}
		user, err := httpClient.Me(ctx)
		if err != nil {
			return err
		}
		logger.Infow("Current user", "id", user.ID, "email", user.Email, "onboarded", user.Onboarded)
	case "logout":
		if err := ctrl.Logout(ctx); err != nil {
			return err
		}
		logger.Info("Signed out")
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
