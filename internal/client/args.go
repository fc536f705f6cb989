package client

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// ErrInvalidArgs 表示命令行参数错误，调用方应打印用法并以 1 退出。
var ErrInvalidArgs = errors.New("invalid arguments")

// Args 是解析后的客户端命令行参数。
type Args struct {
	Hostname string
	Port     int
	Message  string
	Timeout  time.Duration
	Verbose  bool
}

// onceString 只允许被设置一次，重复出现的参数直接报错。
type onceString struct {
	value string
	set   bool
}

func (o *onceString) Set(v string) error {
	if o.set {
		return errors.New("flag given more than once")
	}
	o.value = v
	o.set = true
	return nil
}

func (o *onceString) String() string { return o.value }
func (o *onceString) Type() string   { return "string" }

func newFlagSet(name string) (*pflag.FlagSet, *onceString, *onceString, *onceString, *time.Duration, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	hostname, port, message := &onceString{}, &onceString{}, &onceString{}
	fs.VarP(hostname, "hostname", "h", "server hostname or IPv4 address")
	fs.VarP(port, "port", "p", "server port")
	fs.VarP(message, "message", "m", "message to send (at most 255 bytes)")
	timeout := fs.DurationP("timeout", "t", 10*time.Second, "connect and I/O timeout")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	return fs, hostname, port, message, timeout, verbose
}

// Usage writes the client usage text to w.
func Usage(w io.Writer, name string) {
	fs, _, _, _, _, _ := newFlagSet(name)
	fmt.Fprintf(w, "Usage:\n  %s hostname port message\n  %s -h hostname -p port -m message\n\nFlags:\n", name, name)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// ParseArgs accepts either three positional arguments or the three
// -h/-p/-m flags, never a mix. It performs no I/O.
func ParseArgs(name string, argv []string) (Args, error) {
	fs, hostname, port, message, timeout, verbose := newFlagSet(name)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Args{}, err
		}
		return Args{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	args := Args{Timeout: *timeout, Verbose: *verbose}
	positional := fs.Args()
	flagged := hostname.set || port.set || message.set

	var portText string
	switch {
	case flagged && len(positional) > 0:
		return Args{}, fmt.Errorf("%w: positional arguments cannot be mixed with -h/-p/-m", ErrInvalidArgs)
	case flagged:
		if !hostname.set || !port.set || !message.set {
			return Args{}, fmt.Errorf("%w: -h, -p and -m are all required", ErrInvalidArgs)
		}
		args.Hostname, portText, args.Message = hostname.value, port.value, message.value
	case len(positional) == 3:
		args.Hostname, portText, args.Message = positional[0], positional[1], positional[2]
	default:
		return Args{}, fmt.Errorf("%w: expected hostname, port and message, got %d arguments", ErrInvalidArgs, len(positional))
	}

	if args.Hostname == "" {
		return Args{}, fmt.Errorf("%w: empty hostname", ErrInvalidArgs)
	}
	p, err := strconv.Atoi(portText)
	if err != nil || p <= 0 || p > 65535 {
		return Args{}, fmt.Errorf("%w: invalid port %q", ErrInvalidArgs, portText)
	}
	args.Port = p
	if args.Timeout < 0 {
		return Args{}, fmt.Errorf("%w: negative timeout", ErrInvalidArgs)
	}
	return args, nil
}
