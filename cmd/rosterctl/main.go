// Command rosterctl lists activities and manages sign-ups against a running roster API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"example.com/roster/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "rosterctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("rosterctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	server := global.String("server", envOr("ROSTER_SERVER", "http://localhost:8000"), "roster API base URL")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: rosterctl [--server URL] <list|signup|withdraw> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	c := client.New(*server, nil)
	switch cmd := rest[0]; cmd {
	case "list":
		return list(ctx, c, stdout)
	case "signup", "withdraw":
		activity, email, err := parseEnrollmentFlags(cmd, rest[1:], stderr)
		if err != nil {
			return err
		}
		var msg string
		if cmd == "signup" {
			msg, err = c.SignUp(ctx, activity, email)
		} else {
			msg, err = c.Unregister(ctx, activity, email)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, msg)
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseEnrollmentFlags(cmd string, args []string, stderr io.Writer) (string, string, error) {
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	activity := fs.StringP("activity", "a", "", "activity name, e.g. \"Chess Club\"")
	email := fs.StringP("email", "e", "", "student email")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(*activity) == "" || strings.TrimSpace(*email) == "" {
		return "", "", fmt.Errorf("%s requires --activity and --email", cmd)
	}
	return *activity, *email, nil
}

func list(ctx context.Context, c *client.Client, stdout io.Writer) error {
	activities, err := c.ListActivities(ctx)
	if err != nil {
		return err
	}
	for _, a := range activities {
		fmt.Fprintf(stdout, "%s (%d/%d) - %s\n", a.Name, len(a.Participants), a.MaxParticipants, a.Schedule)
		for _, p := range a.Participants {
			fmt.Fprintf(stdout, "  %s\n", p)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
