// Command kriya is a CLI client for the Shadanga Kriya lesson API.
package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/client/admission"
	"github.com/shadanga/kriya/internal/client/api"
	"github.com/shadanga/kriya/internal/client/offline"
	"github.com/shadanga/kriya/internal/client/session"
	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/logger"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

// ---- tls ----

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func newHTTPClient(caPath string, insecure bool) (*http.Client, error) {
	tc, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	// Bodies are read while the user answers prompts, so only connection
	// setup and response headers are time-bounded; body reads follow ctx.
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	if tc != nil {
		tr.TLSClientConfig = tc
	}
	return &http.Client{Transport: tr}, nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// tokenExpiry reads exp from an access token without verifying it. The
// server checks signatures; the client only needs to know when to re-login.
func tokenExpiry(tok string, fallback time.Time) time.Time {
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return fallback
}

func parseID(name, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: need -%s", errUsage, name)
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}

func describeReason(r model.VerifyReason) string {
	switch r {
	case model.ReasonIncorrectCode:
		return "incorrect code, try again"
	case model.ReasonCodeExpired:
		return "this code has expired; ask your facilitator for a new one"
	case model.ReasonNoCode:
		return "no code is configured for this lesson yet"
	case model.ReasonCodeDisabled:
		return "this lesson does not need a code"
	}
	return string(r)
}

func checkLabel(c admission.Check) string {
	switch c {
	case admission.CheckFlightMode:
		return "flight mode is on"
	case admission.CheckEarphones:
		return "earphones are connected"
	case admission.CheckFocus:
		return "I will stay present for the whole session"
	}
	return string(c)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `kriya CLI
Usage:
  kriya [-api URL] [-cacert file | -insecure] [-native-probe] [-v] <cmd> [args]

Commands:
  version
  register        -u <username> -p <password> [-role learner|facilitator|admin]
  login           -u <username> -p <password>     (saves session)
  logout
  whoami
  lessons         -course <uuid>
  lesson          -id <uuid>
  lesson-create   -course <uuid> -title <t> -audio <key> -duration <sec> -pauses <n>
  enroll          -course <uuid> -user <uuid>
  code            -id <uuid>
  code-gen        -id <uuid> -type permanent|temporary [-minutes N]
  code-toggle     -id <uuid> -enabled=true|false
  code-clear      -id <uuid>
  verify          -id <uuid> -code <6 digits>
  play            -id <uuid> [-out file] [-skip-device-checks]
  device-register [-name <name>]
  download        -id <uuid> [-course <uuid>]
  downloads
  rm              -id <uuid>
  clear-downloads
`)
}

// ---- app ----

type app struct {
	base    string
	hc      *http.Client
	store   *session.Store
	native  bool
	sysRoot string
	log     *zap.Logger

	in  *bufio.Reader
	out io.Writer
}

func (a *app) client() *api.Client {
	return api.New(a.base, api.WithHTTPClient(a.hc))
}

func (a *app) authed() (*api.Client, session.Session, error) {
	s, err := a.store.Load()
	if err != nil {
		return nil, session.Session{}, err
	}
	return a.client().Authed(s.AccessToken), s, nil
}

func (a *app) offline(c *api.Client, s session.Session) (*offline.Manager, error) {
	return offline.NewManager(filepath.Join(a.store.Dir(), "offline"), s.UserID, c, offline.WithLogger(a.log))
}

func (a *app) prompt(q string) (string, error) {
	fmt.Fprint(a.out, q)
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	gfs := flag.NewFlagSet("kriya", flag.ContinueOnError)
	gfs.SetOutput(io.Discard)
	base := gfs.String("api", envOr("KRIYA_API", "http://localhost:8080/api"), "API base URL")
	caPath := gfs.String("cacert", "", "CA cert (PEM)")
	insecure := gfs.Bool("insecure", false, "skip cert verify (dev)")
	native := gfs.Bool("native-probe", false, "detect flight mode and earphones from sysfs")
	sysRoot := gfs.String("sysfs-root", "/", "root of /sys for -native-probe")
	verbose := gfs.Bool("v", false, "debug logging")
	if err := gfs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if gfs.NArg() < 1 {
		return errUsage
	}

	hc, err := newHTTPClient(*caPath, *insecure)
	if err != nil {
		return err
	}
	log := zap.NewNop()
	if *verbose {
		if log, err = logger.New("development"); err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
	}
	a := &app{
		base:    *base,
		hc:      hc,
		store:   session.NewStore(session.DefaultDir()),
		native:  *native,
		sysRoot: *sysRoot,
		log:     log,
		in:      bufio.NewReader(in),
		out:     out,
	}

	cmd, rest := gfs.Arg(0), gfs.Args()[1:]
	switch cmd {
	case "version":
		fmt.Fprintf(out, "kriya %s (%s)\n", version, buildDate)
		return nil
	case "register":
		return a.cmdRegister(ctx, rest)
	case "login":
		return a.cmdLogin(ctx, rest)
	case "logout":
		if err := a.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	case "whoami":
		s, err := a.store.Load()
		if err != nil {
			return err
		}
		printJSON(out, map[string]any{"userId": s.UserID, "username": s.Username, "role": s.Role, "expiresAt": s.ExpiresAt})
		return nil
	case "lessons":
		return a.cmdLessons(ctx, rest)
	case "lesson":
		return a.cmdLesson(ctx, rest)
	case "lesson-create":
		return a.cmdLessonCreate(ctx, rest)
	case "enroll":
		return a.cmdEnroll(ctx, rest)
	case "code":
		return a.cmdCode(ctx, rest)
	case "code-gen":
		return a.cmdCodeGen(ctx, rest)
	case "code-toggle":
		return a.cmdCodeToggle(ctx, rest)
	case "code-clear":
		return a.cmdCodeClear(ctx, rest)
	case "verify":
		return a.cmdVerify(ctx, rest)
	case "play":
		return a.cmdPlay(ctx, rest)
	case "device-register":
		return a.cmdDeviceRegister(ctx, rest)
	case "download":
		return a.cmdDownload(ctx, rest)
	case "downloads":
		return a.cmdDownloads()
	case "rm":
		return a.cmdRemove(ctx, rest)
	case "clear-downloads":
		return a.cmdClearDownloads(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// ---- account ----

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	role := fs.String("role", "", "role (admin token required for non-learners)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return fmt.Errorf("%w: need -u and -p", errUsage)
	}
	c := a.client()
	if s, err := a.store.Load(); err == nil {
		c = c.Authed(s.AccessToken)
	}
	id, err := c.Register(ctx, *u, *p, *role)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return fmt.Errorf("%w: need -u and -p", errUsage)
	}
	resp, err := a.client().Login(ctx, *u, *p)
	if err != nil {
		return err
	}
	uid, err := uuid.FromString(resp.UserID)
	if err != nil {
		return fmt.Errorf("login response: %w", err)
	}
	exp := resp.ExpiresAt
	if exp.IsZero() {
		exp = tokenExpiry(resp.AccessToken, time.Now().Add(15*time.Minute))
	}
	if err := a.store.Save(session.Session{
		AccessToken: resp.AccessToken,
		ExpiresAt:   exp,
		UserID:      uid,
		Username:    resp.Username,
		Role:        resp.Role,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

// ---- lessons ----

func (a *app) cmdLessons(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lessons", flag.ContinueOnError)
	course := fs.String("course", "", "course id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	courseID, err := parseID("course", *course)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	ls, err := c.Lessons(ctx, courseID)
	if err != nil {
		return err
	}
	printJSON(a.out, ls)
	return nil
}

func (a *app) cmdLesson(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lesson", flag.ContinueOnError)
	id := fs.String("id", "", "lesson id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lessonID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	l, err := c.Lesson(ctx, lessonID)
	if err != nil {
		return err
	}
	printJSON(a.out, l)
	return nil
}

func (a *app) cmdLessonCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lesson-create", flag.ContinueOnError)
	course := fs.String("course", "", "course id")
	title := fs.String("title", "", "title")
	audio := fs.String("audio", "", "audio asset key")
	duration := fs.Int("duration", 0, "duration in seconds")
	pauses := fs.Int("pauses", 0, "pause budget")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := parseID("course", *course); err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	l, err := c.CreateLesson(ctx, wire.CreateLessonRequest{
		CourseID:        *course,
		Title:           *title,
		AudioKey:        *audio,
		DurationSeconds: *duration,
		MaxPauses:       *pauses,
	})
	if err != nil {
		return err
	}
	printJSON(a.out, l)
	return nil
}

func (a *app) cmdEnroll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	course := fs.String("course", "", "course id")
	user := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	courseID, err := parseID("course", *course)
	if err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}
	c, _, err := a.authed()
	if err != nil {
		return err
	}
	if err := c.Enroll(ctx, courseID, userID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

// ---- access codes ----

func (a *app) lessonCmd(name string, args []string, extra func(*flag.FlagSet)) (*api.Client, uuid.UUID, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "lesson id")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, uuid.Nil, err
	}
	lessonID, err := parseID("id", *id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	c, _, err := a.authed()
	if err != nil {
		return nil, uuid.Nil, err
	}
	return c, lessonID, nil
}

func (a *app) cmdCode(ctx context.Context, args []string) error {
	c, id, err := a.lessonCmd("code", args, nil)
	if err != nil {
		return err
	}
	ac, err := c.AccessCode(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, ac)
	return nil
}

func (a *app) cmdCodeGen(ctx context.Context, args []string) error {
	var typ string
	var minutes int
	c, id, err := a.lessonCmd("code-gen", args, func(fs *flag.FlagSet) {
		fs.StringVar(&typ, "type", string(model.CodePermanent), "permanent|temporary")
		fs.IntVar(&minutes, "minutes", 0, "validity of a temporary code")
	})
	if err != nil {
		return err
	}
	var exp *int
	if minutes > 0 {
		exp = &minutes
	}
	gc, err := c.GenerateCode(ctx, id, model.CodeType(typ), exp)
	if err != nil {
		return err
	}
	printJSON(a.out, gc)
	return nil
}

func (a *app) cmdCodeToggle(ctx context.Context, args []string) error {
	var enabled bool
	c, id, err := a.lessonCmd("code-toggle", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&enabled, "enabled", true, "require the code")
	})
	if err != nil {
		return err
	}
	if err := c.ToggleCode(ctx, id, enabled); err != nil {
		return err
	}
	printJSON(a.out, wire.ToggleResponse{AccessCodeEnabled: enabled})
	return nil
}

func (a *app) cmdCodeClear(ctx context.Context, args []string) error {
	c, id, err := a.lessonCmd("code-clear", args, nil)
	if err != nil {
		return err
	}
	cleared, err := c.ClearCode(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, wire.ClearResponse{Cleared: cleared})
	return nil
}

func (a *app) cmdVerify(ctx context.Context, args []string) error {
	var code string
	c, id, err := a.lessonCmd("verify", args, func(fs *flag.FlagSet) {
		fs.StringVar(&code, "code", "", "6-digit code")
	})
	if err != nil {
		return err
	}
	res, err := c.VerifyCode(ctx, id, code)
	if err != nil {
		return err
	}
	if res.Valid {
		fmt.Fprintln(a.out, "valid")
		return nil
	}
	// a rejected code exits non-zero; a lesson without code protection does not
	if err := res.Reason.Err(); err != nil {
		return fmt.Errorf("%s: %w", describeReason(res.Reason), err)
	}
	fmt.Fprintln(a.out, describeReason(res.Reason))
	return nil
}

// ---- admission ----

func (a *app) cmdPlay(ctx context.Context, args []string) error {
	var outPath string
	var skipDevice bool
	c, id, err := a.lessonCmd("play", args, func(fs *flag.FlagSet) {
		fs.StringVar(&outPath, "out", "", "write the audio here (default: discard)")
		fs.BoolVar(&skipDevice, "skip-device-checks", false, "only ask for the focus commitment")
	})
	if err != nil {
		return err
	}
	s, _ := a.store.Load()
	mgr, err := a.offline(c, s)
	if err != nil {
		return err
	}

	opts := admission.DefaultOptions
	if skipDevice {
		opts = admission.Options{}
	}
	probe := admission.SelectProbe(a.native, a.sysRoot)
	f := admission.New(c, probe, id, opts, a.log)
	if err := f.Begin(ctx); err != nil {
		return err
	}
	l := f.Lesson()
	fmt.Fprintf(a.out, "%s (%d min, %d pauses)\n", l.Title, l.DurationSeconds/60, l.MaxPauses)

	for f.State() == admission.AwaitingCode {
		code, err := a.prompt("access code: ")
		if err != nil {
			return err
		}
		res, err := f.SubmitCode(ctx, code)
		switch {
		case errors.Is(err, errs.ErrValidation):
			fmt.Fprintln(a.out, "enter the 6-digit code")
		case errors.Is(err, errs.ErrRateLimited):
			fmt.Fprintln(a.out, "too many attempts, wait and try again")
			return err
		case err != nil:
			return err
		case !res.Valid:
			fmt.Fprintln(a.out, describeReason(res.Reason))
		}
	}

	for f.State() == admission.CheckingDevice {
		for _, it := range f.Checklist() {
			if it.Satisfied() {
				continue
			}
			ans, err := a.prompt(fmt.Sprintf("confirm: %s [y/N/r=recheck] ", checkLabel(it.Check)))
			if err != nil {
				return err
			}
			switch strings.ToLower(ans) {
			case "y", "yes":
				if err := f.Attest(it.Check); err != nil {
					return err
				}
			case "r":
				if err := f.Recheck(ctx); err != nil {
					return err
				}
			}
			if f.State() != admission.CheckingDevice {
				break
			}
		}
	}

	load := func(ctx context.Context, lessonID uuid.UUID) (io.ReadCloser, error) {
		if mgr.IsLessonDownloaded(lessonID) {
			b, err := mgr.Open(lessonID)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		rc, _, err := c.OpenAudio(ctx, lessonID)
		return rc, err
	}
	var p *admission.Playback
	for {
		p, err = f.Start(ctx, load)
		if err == nil {
			break
		}
		if !errors.Is(err, admission.ErrAssetLoad) {
			return err
		}
		fmt.Fprintln(a.out, err)
		ans, perr := a.prompt("retry? [Y/n] ")
		if perr != nil || strings.EqualFold(ans, "n") {
			return err
		}
	}

	defer p.Close()

	fmt.Fprintln(a.out, "playing; p=pause r=resume s=seek enter=continue")
	for {
		cmd, err := a.prompt(fmt.Sprintf("[%d pauses left] ", p.PausesLeft()))
		if err != nil || cmd == "" {
			break
		}
		var opErr error
		switch cmd {
		case "p":
			opErr = p.Pause()
		case "r":
			opErr = p.Resume()
		case "s":
			opErr = p.Seek(0)
		default:
			opErr = fmt.Errorf("unknown control %q", cmd)
		}
		if opErr != nil {
			fmt.Fprintln(a.out, opErr)
		}
	}
	if p.Paused() {
		_ = p.Resume()
	}

	dst := io.Discard
	if outPath != "" {
		fh, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer fh.Close()
		dst = fh
	}
	if _, err := io.Copy(dst, p.Media()); err != nil {
		return err
	}
	if err := p.Finish(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "completed")
	return nil
}

// ---- offline ----

func (a *app) offlineCmd() (*api.Client, *offline.Manager, error) {
	c, s, err := a.authed()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := a.offline(c, s)
	if err != nil {
		return nil, nil, err
	}
	return c, mgr, nil
}

func (a *app) cmdDeviceRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("device-register", flag.ContinueOnError)
	name := fs.String("name", "", "device name (default: hostname)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, s, err := a.authed()
	if err != nil {
		return err
	}
	var opts []offline.Option
	opts = append(opts, offline.WithLogger(a.log))
	if *name != "" {
		opts = append(opts, offline.WithDeviceName(*name))
	}
	mgr, err := offline.NewManager(filepath.Join(a.store.Dir(), "offline"), s.UserID, c, opts...)
	if err != nil {
		return err
	}
	if err := mgr.RegisterDevice(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, mgr.DeviceID())
	return nil
}

func (a *app) cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	id := fs.String("id", "", "lesson id")
	course := fs.String("course", "", "course id (default: from lesson)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lessonID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	c, mgr, err := a.offlineCmd()
	if err != nil {
		return err
	}
	courseID := uuid.Nil
	if *course != "" {
		if courseID, err = parseID("course", *course); err != nil {
			return err
		}
	} else if l, err := c.Lesson(ctx, lessonID); err == nil {
		courseID = l.CourseID
	}
	if err := mgr.RegisterDevice(ctx); err != nil {
		return err
	}

	var last offline.Progress
	e, err := mgr.StartDownload(ctx, lessonID, courseID, func(p offline.Progress) {
		if p.Status == last.Status && p.Percent/10 == last.Percent/10 {
			return
		}
		last = p
		if p.Status == offline.StatusError {
			fmt.Fprintf(a.out, "%s: %s\n", p.Status, p.Err)
			return
		}
		fmt.Fprintf(a.out, "%-11s %3d%%\n", p.Status, p.Percent)
	})
	if err != nil {
		return err
	}
	printJSON(a.out, e)
	return nil
}

func (a *app) cmdDownloads() error {
	s, err := a.store.Load()
	if err != nil {
		return err
	}
	mgr, err := a.offline(a.client(), s)
	if err != nil {
		return err
	}
	type row struct {
		LessonID     string `json:"lessonId"`
		CourseID     string `json:"courseId"`
		DownloadedAt string `json:"downloadedAt"`
		SizeBytes    int64  `json:"sizeBytes"`
		Duration     int    `json:"durationSeconds"`
	}
	rows := []row{}
	for _, e := range mgr.List() {
		rows = append(rows, row{
			LessonID:     e.LessonID.String(),
			CourseID:     e.CourseID.String(),
			DownloadedAt: e.DownloadedAt.Format(time.RFC3339),
			SizeBytes:    e.FileSizeBytes,
			Duration:     e.DurationSeconds,
		})
	}
	printJSON(a.out, rows)
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	id := fs.String("id", "", "lesson id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lessonID, err := parseID("id", *id)
	if err != nil {
		return err
	}
	_, mgr, err := a.offlineCmd()
	if err != nil {
		return err
	}
	if err := mgr.RemoveDownload(ctx, lessonID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *app) cmdClearDownloads(ctx context.Context) error {
	_, mgr, err := a.offlineCmd()
	if err != nil {
		return err
	}
	if err := mgr.ClearAllDownloads(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

// ---- main ----

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		stop()
		fail(err)
	}
}

func fail(err error) {
	if errors.Is(err, errUsage) {
		if msg := strings.TrimPrefix(err.Error(), errUsage.Error()); msg != "" {
			fmt.Fprintln(os.Stderr, strings.TrimPrefix(msg, ": "))
		}
		usage(os.Stderr)
		os.Exit(2)
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "server error: status=%d code=%s msg=%s\n", apiErr.Status, apiErr.Code, apiErr.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
