package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/jsxtech/exchange"
	"github.com/jsxtech/exchange/internal/config"
	"github.com/jsxtech/exchange/internal/declfile"
	"github.com/jsxtech/exchange/middleware"
	"github.com/jsxtech/exchange/restyclient"
)

type CLI struct {
	Globals

	Version VersionCmd `cmd:"" help:"Print version information."`
	Check   CheckCmd   `cmd:"" help:"Validate a declaration file and list its methods."`
	Call    CallCmd    `cmd:"" help:"Call one method of a declaration file."`
}

// Globals are flags shared by every command. Flags left empty fall back to
// the EXCHANGE_* environment variables.
type Globals struct {
	BaseURL   string        `help:"Base URL for relative targets." name:"base-url"`
	Timeout   time.Duration `help:"Bound on each call."`
	Transport string        `help:"HTTP client: http or resty."`
	LogLevel  string        `help:"Log level: debug, info, warn or error." name:"log-level"`

	out    io.Writer `kong:"-"`
	errOut io.Writer `kong:"-"`
}

// settings merges the environment configuration with the flags.
func (g *Globals) settings() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.BaseURL != "" {
		cfg.BaseURL = g.BaseURL
	}
	if g.Timeout != 0 {
		cfg.Timeout = g.Timeout
	}
	if g.Transport != "" {
		cfg.Transport = g.Transport
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *Globals) logger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(g.errOut, &slog.HandlerOptions{Level: level}))
}

// transport builds the configured transport with the CLI's filters.
func (g *Globals) transport(cfg *config.Config, logger *slog.Logger) (exchange.Transport, error) {
	filters := []exchange.Filter{
		middleware.RequestID(),
		middleware.Logging(logger),
	}
	if cfg.RateLimit > 0 {
		limiter := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimit}.NewLimiter()
		filters = append(filters, middleware.RateLimit(limiter))
	}

	switch cfg.Transport {
	case "resty":
		opts := []restyclient.Option{restyclient.WithHeader("User-Agent", userAgent())}
		for _, f := range filters {
			opts = append(opts, restyclient.WithFilter(f))
		}
		return restyclient.New(cfg.BaseURL, opts...)
	default:
		t, err := exchange.NewHTTPTransport(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		t.WithDefaultHeader("User-Agent", userAgent())
		for _, f := range filters {
			t.WithFilter(f)
		}
		return t, nil
	}
}

// proxy loads file and builds a proxy for it. The file's base_url is used
// when neither the flag nor the environment sets one.
func (g *Globals) proxy(file string) (*exchange.Proxy, *config.Config, error) {
	cfg, err := g.settings()
	if err != nil {
		return nil, nil, err
	}
	f, err := declfile.Load(file)
	if err != nil {
		return nil, nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = f.BaseURL
	}
	decls, err := f.ToDeclarations()
	if err != nil {
		return nil, nil, err
	}

	logger := g.logger(cfg)
	t, err := g.transport(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	proxy, err := exchange.NewProxyFactory(t).
		WithLogger(logger).
		WithBlockTimeout(cfg.Timeout).
		NewProxy(decls...)
	if err != nil {
		return nil, nil, err
	}
	return proxy, cfg, nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintln(g.out, Version())
	return nil
}

type CheckCmd struct {
	File string `arg:"" help:"Declaration file (.yaml, .yml or .toml)." type:"existingfile"`
}

func (c *CheckCmd) Run(g *Globals) error {
	proxy, _, err := g.proxy(c.File)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(g.out, 0, 4, 2, ' ', 0)
	for _, m := range proxy.Methods() {
		d := m.Declaration()
		params := make([]string, 0, len(d.Params))
		for _, p := range d.Params {
			params = append(params, p.Kind.String()+":"+p.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Method, d.Path, d.Shape, strings.Join(params, " "))
	}
	return w.Flush()
}

type CallCmd struct {
	File        string   `arg:"" help:"Declaration file (.yaml, .yml or .toml)." type:"existingfile"`
	Method      string   `arg:"" help:"Name of the declaration to call."`
	Arg         []string `help:"Argument as name=value; repeat for multiple values." short:"a" sep:"none"`
	FactoryBase string   `help:"Base URL passed to the declaration's factory parameter." name:"factory-base"`
}

func (c *CallCmd) Run(g *Globals) error {
	proxy, cfg, err := g.proxy(c.File)
	if err != nil {
		return err
	}
	m := proxy.Method(c.Method)
	if m == nil {
		names := make([]string, 0)
		for _, m := range proxy.Methods() {
			names = append(names, m.Name())
		}
		sort.Strings(names)
		return fmt.Errorf("no declaration %q in %s (have %s)", c.Method, c.File, strings.Join(names, ", "))
	}

	args, err := c.args(m.Declaration())
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	switch m.Declaration().Shape {
	case exchange.ShapeFuture:
		v, err := exchange.InvokeAsync[any](ctx, m, args).Await(ctx)
		if err != nil {
			return err
		}
		return printValue(g.out, v)

	case exchange.ShapeStream:
		for v, err := range exchange.InvokeStream[any](ctx, m, args) {
			if err != nil {
				return err
			}
			if err := printValue(g.out, v); err != nil {
				return err
			}
		}
		return nil

	case exchange.ShapeEntity:
		e, err := exchange.InvokeEntity[any](ctx, m, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.out, "HTTP %d\n", e.StatusCode)
		keys := make([]string, 0, len(e.Header))
		for k := range e.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(g.out, "%s: %s\n", k, strings.Join(e.Header[k], ", "))
		}
		fmt.Fprintln(g.out)
		return printValue(g.out, e.Body)

	default:
		v, err := exchange.Invoke[any](ctx, m, args)
		if err != nil {
			return err
		}
		return printValue(g.out, v)
	}
}

// args converts the -a flags into call arguments for d.
func (c *CallCmd) args(d exchange.Declaration) (exchange.Args, error) {
	kinds := make(map[string]exchange.ParamKind, len(d.Params))
	var factoryParam string
	for _, p := range d.Params {
		kinds[p.Name] = p.Kind
		if p.Kind == exchange.ParamURIBuilderFactory && factoryParam == "" {
			factoryParam = p.Name
		}
	}

	args := make(exchange.Args)
	for _, a := range c.Arg {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q must look like name=value", a)
		}
		kind, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("%s has no parameter %q", d.Name, name)
		}
		switch kind {
		case exchange.ParamBody:
			if json.Valid([]byte(value)) {
				args[name] = json.RawMessage(value)
			} else {
				args[name] = value
			}
		case exchange.ParamQuery, exchange.ParamHeader:
			prev, _ := args[name].([]string)
			args[name] = append(prev, value)
		case exchange.ParamURIBuilderFactory:
			f, err := exchange.NewURIBuilderFactory(value)
			if err != nil {
				return nil, err
			}
			args[name] = f
		default:
			args[name] = value
		}
	}

	if c.FactoryBase != "" {
		if factoryParam == "" {
			return nil, fmt.Errorf("%s has no factory parameter for --factory-base", d.Name)
		}
		f, err := exchange.NewURIBuilderFactory(c.FactoryBase)
		if err != nil {
			return nil, err
		}
		args[factoryParam] = f
	}
	return args, nil
}

func printValue(w io.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, x)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("exchange"),
		kong.Description("Call HTTP APIs described by declaration files."),
		kong.UsageOnError(),
	)
	cli.out = os.Stdout
	cli.errOut = os.Stderr
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
