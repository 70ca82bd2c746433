// Package cli 实现 disposable-mail 命令行：子命令解析、依赖装配与输出。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/provider"
	"tempmail/disposable/internal/provider/guerrilla"
	"tempmail/disposable/internal/service"
	"tempmail/disposable/internal/storage"
	"tempmail/disposable/internal/storage/memory"
	redisstore "tempmail/disposable/internal/storage/redis"
	sqlstore "tempmail/disposable/internal/storage/sql"
)

// 退出码
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const usage = `Tool for generating disposable emails from different email providers

Usage:
  disposable-mail <command> [flags]

Commands:
  list                           List available email providers
  guerrillamails                 List unexpired guerrillamails from the store
  create <provider>              Creates new email address
  get -e <email> -o <offset>     Fetches available emails
  check -e <email> -c <count>    Checks for new email
  fetch -e <email> --id <id>     Fetches email information
  serve                          Serves the same operations over HTTP
`

var errUsage = errors.New("usage error")

// App 一次命令行调用所需的全部依赖
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	metrics   *monitoring.Metrics
	out       renderer
	stderr    io.Writer
	providers *provider.Registry
	store     storage.SessionRepository
	openStore func(context.Context) (storage.SessionRepository, error)
	noBanner  bool
}

// Option 配置 App
type Option func(*App)

// WithOutput 替换标准输出与标准错误
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.out = renderer{out: stdout}
		a.stderr = stderr
	}
}

// WithStore 使用已打开的存储，跳过按配置打开
func WithStore(store storage.SessionRepository) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithProviders 替换提供商注册表
func WithProviders(registry *provider.Registry) Option {
	return func(a *App) {
		a.providers = registry
	}
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithoutBanner 不输出启动横幅
func WithoutBanner() Option {
	return func(a *App) {
		a.noBanner = true
	}
}

// New 创建命令行应用
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		log:     zap.NewNop(),
		metrics: monitoring.NewMetrics(),
		out:     renderer{out: os.Stdout},
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.providers == nil {
		a.providers = provider.NewRegistry(guerrilla.New(
			guerrilla.WithBaseURL(cfg.Provider.BaseURL),
			guerrilla.WithUserAgent(cfg.Provider.UserAgent),
			guerrilla.WithTimeout(cfg.Provider.Timeout),
			guerrilla.WithRateLimit(cfg.Provider.Rate, cfg.Provider.Burst),
			guerrilla.WithMetrics(a.metrics),
			guerrilla.WithLogger(a.log),
		))
	}
	a.openStore = func(ctx context.Context) (storage.SessionRepository, error) {
		return OpenStore(ctx, cfg, a.log)
	}
	return a
}

// OpenStore 按 storage.driver 打开会话存储
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.SessionRepository, error) {
	ttl := cfg.Session.TTL
	switch cfg.Storage.Driver {
	case "memory":
		return memory.NewStore(ttl), nil
	case "redis":
		client, err := redisstore.New(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client, cfg.Redis.KeyPrefix, ttl), nil
	case "sqlite", "postgres", "mysql":
		return sqlstore.NewStore(cfg.Storage, ttl)
	}
	return nil, fmt.Errorf("%w: unsupported storage driver %q", domain.ErrInvalidInput, cfg.Storage.Driver)
}

// Execute 运行一个子命令并返回退出码
func (a *App) Execute(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(a.stderr, usage)
		if len(args) == 0 {
			return ExitUsage
		}
		return ExitOK
	}

	if !a.noBanner && args[0] != "serve" {
		a.out.banner()
	}

	err := a.dispatch(ctx, args[0], args[1:])
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("failed to close store", zap.Error(cerr))
		}
	}
	return a.exitCode(err)
}

func (a *App) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "list":
		return a.runList(args)
	case "guerrillamails":
		return a.runInventory(ctx, args)
	case "create":
		return a.runCreate(ctx, args)
	case "get":
		return a.runGet(ctx, args)
	case "check":
		return a.runCheck(ctx, args)
	case "fetch":
		return a.runFetch(ctx, args)
	case "serve":
		return a.runServe(ctx, args)
	}
	fmt.Fprintf(a.stderr, "unknown command %q\n\n%s", name, usage)
	return errUsage
}

// exitCode 将命令结果映射为退出码，提示类结果视为成功
func (a *App) exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pflag.ErrHelp):
		return ExitOK
	case errors.Is(err, errUsage):
		return ExitUsage
	case errors.Is(err, domain.ErrSessionNotFound):
		a.out.line("Email address not found or expired, run create first")
		return ExitOK
	case errors.Is(err, domain.ErrNotFound):
		a.out.line("Unexpected email id")
		return ExitOK
	case errors.Is(err, domain.ErrProviderNotAvailable):
		a.out.line("Email provider not available")
		return ExitOK
	}

	a.log.Error("command failed", zap.String("kind", domain.Kind(err)), zap.Error(err))
	fmt.Fprintf(a.stderr, "%s: %v\n", domain.Kind(err), err)
	return ExitError
}

// session 延迟打开存储，list 等不需要存储的命令不会连接数据库
func (a *App) session(ctx context.Context) (storage.SessionRepository, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *App) services(ctx context.Context) (*service.MailboxService, *service.Poller, error) {
	store, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	resolver := service.NewResolver(store, a.metrics)
	mailboxes := service.NewMailboxService(a.providers, store, resolver, a.metrics, a.log)
	poller := service.NewPoller(resolver, a.providers, service.PollerConfigFrom(a.cfg.Poll), a.metrics, a.log)
	return mailboxes, poller, nil
}

func (a *App) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *App) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		var invalid *pflag.InvalidValueError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func (a *App) requireFlag(fs *pflag.FlagSet, names ...string) error {
	var missing []string
	for _, name := range names {
		if !fs.Changed(name) {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintf(a.stderr, "missing required flags: %s\n%s", strings.Join(missing, ", "), fs.FlagUsages())
		return errUsage
	}
	return nil
}

func (a *App) runList(args []string) error {
	if err := a.parse(a.flagSet("list"), args); err != nil {
		return err
	}
	catalog, err := provider.LoadCatalog(a.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	a.out.catalog(catalog)
	return nil
}

func (a *App) runInventory(ctx context.Context, args []string) error {
	if err := a.parse(a.flagSet("guerrillamails"), args); err != nil {
		return err
	}
	mailboxes, _, err := a.services(ctx)
	if err != nil {
		return err
	}
	addresses, err := mailboxes.ActiveAddresses(ctx)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		a.out.line("There is not available guerrillamails")
		return nil
	}
	for _, address := range addresses {
		a.out.line("%s", address)
	}
	return nil
}

func (a *App) runCreate(ctx context.Context, args []string) error {
	fs := a.flagSet("create")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "usage: disposable-mail create <provider>")
		return errUsage
	}
	name := fs.Arg(0)

	// 未知提供商无需打开存储
	if _, err := a.providers.Get(name); err != nil {
		return err
	}

	mailboxes, _, err := a.services(ctx)
	if err != nil {
		return err
	}
	session, err := mailboxes.Create(ctx, name)
	if err != nil {
		return err
	}

	a.out.line("Your guerrilla temp email: %s", session.Address)
	a.out.warning(fmt.Sprintf("Emails expire after %d minutes", minutes(a.cfg.Session.TTL.Minutes())))
	return nil
}

func (a *App) runGet(ctx context.Context, args []string) error {
	fs := a.flagSet("get")
	email := fs.StringP("email", "e", "", "Email address")
	offset := fs.IntP("offset", "o", 0, "How many emails to start from. Ex: Offset of 0 will fetch a list of the first 10 emails")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := a.requireFlag(fs, "email", "offset"); err != nil {
		return err
	}
	if *offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidInput)
	}

	_, poller, err := a.services(ctx)
	if err != nil {
		return err
	}
	result, err := poller.Run(ctx, service.PollRequest{
		Address: *email,
		Mode:    service.ModeListFromOffset,
		Marker:  *offset,
	}, nil)
	if err != nil {
		return err
	}
	a.out.messages(result.Messages)
	return nil
}

func (a *App) runCheck(ctx context.Context, args []string) error {
	fs := a.flagSet("check")
	email := fs.StringP("email", "e", "", "Email address")
	count := fs.IntP("count", "c", 0, "The sequence number (id) of the oldest email")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := a.requireFlag(fs, "email", "count"); err != nil {
		return err
	}
	if *count < 0 {
		return fmt.Errorf("%w: count must not be negative", domain.ErrInvalidInput)
	}

	_, poller, err := a.services(ctx)
	if err != nil {
		return err
	}

	// 先确认会话存在，避免对未知地址打印轮询提示
	if _, err := service.NewResolver(a.store, a.metrics).Resolve(ctx, *email); err != nil {
		return err
	}

	a.out.line("Breaks automatically after %d minutes if there is not a new email",
		minutes(poller.Config().Timeout().Minutes()))

	result, err := poller.Run(ctx, service.PollRequest{
		Address: *email,
		Mode:    service.ModePollUntilNew,
		Marker:  *count,
	}, func(int, int) {
		a.out.line("Checking for new email...")
	})
	if err != nil {
		return err
	}
	a.out.messages(result.Messages)
	return nil
}

func (a *App) runFetch(ctx context.Context, args []string) error {
	fs := a.flagSet("fetch")
	email := fs.StringP("email", "e", "", "Email address")
	id := fs.String("id", "", "Id of the received email from inbox")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := a.requireFlag(fs, "email", "id"); err != nil {
		return err
	}

	mailboxes, _, err := a.services(ctx)
	if err != nil {
		return err
	}
	body, err := mailboxes.Fetch(ctx, *email, *id)
	if err != nil {
		return err
	}
	a.out.message(body)
	return nil
}

func minutes(m float64) int {
	return int(math.Round(m))
}
