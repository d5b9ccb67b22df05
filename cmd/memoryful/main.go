package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"golang.org/x/term"

	"github.com/memoryful/memoryful"
	"github.com/memoryful/memoryful/api"
	"github.com/memoryful/memoryful/app"
	"github.com/memoryful/memoryful/common/reporting"
	"github.com/memoryful/memoryful/config"
)

type LoginCmd struct {
	Email string `arg:"--email,required" help:"address to mail the sign-in code to"`
	Code  string `arg:"--code" help:"sign-in code; prompted for when omitted"`
}

type LogoutCmd struct{}

type MeCmd struct{}

type RefreshCmd struct{}

type DaysCmd struct {
	Limit  int    `arg:"--limit" default:"10"`
	Offset int    `arg:"--offset" default:"0"`
	View   string `arg:"--view" default:"list" help:"list or detail"`
	SortBy string `arg:"--sort-by"`
}

type DayCmd struct {
	Timestamp int64 `arg:"positional,required"`
}

type TagsCmd struct{}

type SessionsCmd struct{}

type RevokeSessionCmd struct {
	ID string `arg:"positional,required"`
}

type YearCmd struct {
	Year int `arg:"positional,required"`
}

type ResolveCmd struct {
	Sources []string `arg:"positional,required" help:"asset paths or object keys"`
}

type UploadCmd struct {
	Intent string `arg:"--intent,required" help:"avatar, day_main, day_image, month_image or workspace_asset"`
	Day    *int64 `arg:"--day" help:"day timestamp for day_main and day_image"`
	Year   *int   `arg:"--year"`
	Month  *int   `arg:"--month"`
	Page   string `arg:"--page" help:"workspace page key for workspace_asset"`
	File   string `arg:"positional,required"`
}

type args struct {
	Config   string `arg:"--config,env:MEMORYFUL_CONFIG" help:"path to config.yaml"`
	LogLevel string `arg:"--log-level" help:"trace, debug, info, warn or error"`

	Login         *LoginCmd         `arg:"subcommand:login" help:"sign in with a mailed code"`
	Logout        *LogoutCmd        `arg:"subcommand:logout" help:"sign out of this device"`
	Me            *MeCmd            `arg:"subcommand:me" help:"show the signed-in user"`
	Refresh       *RefreshCmd       `arg:"subcommand:refresh" help:"refresh the access token"`
	Days          *DaysCmd          `arg:"subcommand:days" help:"list journal days"`
	Day           *DayCmd           `arg:"subcommand:day" help:"show one journal day"`
	Tags          *TagsCmd          `arg:"subcommand:tags" help:"list tags"`
	Sessions      *SessionsCmd      `arg:"subcommand:sessions" help:"list signed-in devices"`
	RevokeSession *RevokeSessionCmd `arg:"subcommand:revoke-session" help:"sign out another device"`
	Year          *YearCmd          `arg:"subcommand:year" help:"list the months of a year"`
	Resolve       *ResolveCmd       `arg:"subcommand:resolve" help:"print URLs for stored media"`
	Upload        *UploadCmd        `arg:"subcommand:upload" help:"upload a file and print its object key"`
}

func (args) Description() string {
	return app.Name + " command line client"
}

func (args) Version() string {
	return app.Name + " " + app.Version
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a); err != nil {
		reporting.CaptureError(err)
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, a args) error {
	defer func() {
		if r := recover(); r != nil {
			reporting.PanicListener(fmt.Sprintf("panic in %s cli: %v", app.Name, r))
			panic(r)
		}
	}()

	cfg, err := loadConfig(a)
	if err != nil {
		return err
	}
	c, err := memoryful.New(ctx, memoryful.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			slog.Warn("Failed to close client", "error", cerr)
		}
	}()

	switch {
	case a.Login != nil:
		return login(ctx, c, a.Login)
	case a.Logout != nil:
		return c.SignOut(ctx)
	case a.Me != nil:
		if err := output(c.Me(ctx)); err != nil {
			return err
		}
		if exp, ok := c.SessionExpiry(); ok {
			fmt.Fprintf(os.Stderr, "session expires %s (in %s)\n", exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Second))
		}
		return nil
	case a.Refresh != nil:
		if _, err := c.API().Auth.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "token refreshed")
		return nil
	case a.Days != nil:
		return output(c.API().Days.List(ctx, api.DayQuery{
			Limit:  a.Days.Limit,
			Offset: a.Days.Offset,
			View:   api.DayView(a.Days.View),
			SortBy: a.Days.SortBy,
		}))
	case a.Day != nil:
		return output(c.API().Days.Get(ctx, a.Day.Timestamp))
	case a.Tags != nil:
		return output(c.API().Tags.List(ctx))
	case a.Sessions != nil:
		return output(c.API().Sessions.List(ctx))
	case a.RevokeSession != nil:
		return c.API().Sessions.Revoke(ctx, a.RevokeSession.ID)
	case a.Year != nil:
		return output(c.Years().Year(ctx, a.Year.Year))
	case a.Resolve != nil:
		urls, err := c.Resolver().ResolveAll(ctx, a.Resolve.Sources)
		for i, u := range urls {
			fmt.Printf("%s\t%s\n", a.Resolve.Sources[i], u)
		}
		return err
	case a.Upload != nil:
		return upload(ctx, c, a.Upload)
	}
	return nil
}

// loadConfig defaults to the file session backend, since every command runs in its own
// process and a memory session would not outlive the login.
func loadConfig(a args) (*config.Config, error) {
	cfg := config.Default()
	cfg.Session.Backend = config.BackendFile
	cfg, err := config.LoadFrom(cfg, a.Config)
	if err != nil {
		return nil, err
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	return cfg, nil
}

func login(ctx context.Context, c *memoryful.Client, cmd *LoginCmd) error {
	code := cmd.Code
	if code == "" {
		if err := c.RequestCode(ctx, cmd.Email); err != nil {
			return err
		}
		var err error
		if code, err = promptCode(os.Stdin, os.Stderr); err != nil {
			return err
		}
	}
	return output(c.SignIn(ctx, cmd.Email, code))
}

// promptCode reads the sign-in code without echo when stdin is a terminal.
func promptCode(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter the code sent to your email: ")
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading code: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func upload(ctx context.Context, c *memoryful.Client, cmd *UploadCmd) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()

	key, err := c.Uploader().Upload(ctx, mediaParams(cmd, f))
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func output[T any](v T, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return ""
}
