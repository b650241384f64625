package ajaxform

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when an option is not given.
const (
	DefaultSuccessMessage      = "Submission Successful. Thank you."
	DefaultSuccessMessageClass = "form-success alert alert-success"
	DefaultErrorMessageClass   = "form-error alert alert-danger"
	DefaultScrollOffset        = 50
)

// SubmitFunc is called when a submission starts.
type SubmitFunc func(c *Controller)

// ResponseFunc is called with the response context of a settled request.
type ResponseFunc func(c *Controller, resp *Response)

// Config is the resolved configuration of a Controller. It is built once by
// New from DefaultConfig and the given options and never changes afterwards.
type Config struct {
	// Reset clears the form's fields after a successful submission.
	Reset bool
	// ScrollToMessage scrolls the message region into view once settled.
	ScrollToMessage bool
	// BlurSubmitOnSubmit removes focus from the submit controls once settled.
	BlurSubmitOnSubmit bool

	OnSubmit   SubmitFunc
	OnSuccess  ResponseFunc
	OnFailed   ResponseFunc
	OnComplete ResponseFunc

	// MessagesContainer overrides the discovered message region.
	MessagesContainer Element
	// MessagesSelector locates the message region within the target when
	// MessagesContainer is nil.
	MessagesSelector string

	// SuccessMessage is trusted markup rendered on success. It is not escaped.
	SuccessMessage string
	// SuccessMessageFunc, when set, owns success rendering instead of
	// SuccessMessage.
	SuccessMessageFunc ResponseFunc

	SuccessMessageClass string
	ErrorMessageClass   string

	// ScrollOffset is the space left above the message region when scrolling.
	ScrollOffset int
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// Client sends the requests. Defaults to a plain *http.Client.
	Client Doer
	// Headers are added to every request.
	Headers http.Header
	Logger  *zap.Logger
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		Reset:               true,
		ScrollToMessage:     true,
		BlurSubmitOnSubmit:  true,
		SuccessMessage:      DefaultSuccessMessage,
		SuccessMessageClass: DefaultSuccessMessageClass,
		ErrorMessageClass:   DefaultErrorMessageClass,
		ScrollOffset:        DefaultScrollOffset,
	}
}

// Option configures a Controller.
type Option func(*Config)

// WithReset sets whether the form is reset after a successful submission.
func WithReset(reset bool) Option {
	return func(c *Config) { c.Reset = reset }
}

// WithScrollToMessage sets whether the message region is scrolled into view.
func WithScrollToMessage(scroll bool) Option {
	return func(c *Config) { c.ScrollToMessage = scroll }
}

// WithBlurSubmit sets whether submit controls lose focus after a submission.
func WithBlurSubmit(blur bool) Option {
	return func(c *Config) { c.BlurSubmitOnSubmit = blur }
}

// OnSubmit registers the callback run when a submission starts.
func OnSubmit(fn SubmitFunc) Option {
	return func(c *Config) { c.OnSubmit = fn }
}

// OnSuccess registers the callback run after a successful submission.
func OnSuccess(fn ResponseFunc) Option {
	return func(c *Config) { c.OnSuccess = fn }
}

// OnFailed registers the callback run after a failed submission.
func OnFailed(fn ResponseFunc) Option {
	return func(c *Config) { c.OnFailed = fn }
}

// OnComplete registers the callback run after every submission.
func OnComplete(fn ResponseFunc) Option {
	return func(c *Config) { c.OnComplete = fn }
}

// WithMessagesContainer renders messages into el.
func WithMessagesContainer(el Element) Option {
	return func(c *Config) { c.MessagesContainer = el }
}

// WithMessagesSelector renders messages into the element matching selector
// within the target.
func WithMessagesSelector(selector string) Option {
	return func(c *Config) { c.MessagesSelector = selector }
}

// WithSuccessMessage sets the trusted markup shown on success. An empty
// message renders nothing.
func WithSuccessMessage(markup string) Option {
	return func(c *Config) {
		c.SuccessMessage = markup
		c.SuccessMessageFunc = nil
	}
}

// WithSuccessMessageFunc hands success rendering to fn.
func WithSuccessMessageFunc(fn ResponseFunc) Option {
	return func(c *Config) { c.SuccessMessageFunc = fn }
}

// WithSuccessMessageClass sets the CSS class of the success block.
func WithSuccessMessageClass(class string) Option {
	return func(c *Config) { c.SuccessMessageClass = class }
}

// WithErrorMessageClass sets the CSS class of each error block.
func WithErrorMessageClass(class string) Option {
	return func(c *Config) { c.ErrorMessageClass = class }
}

// WithScrollOffset sets the space left above the message region.
func WithScrollOffset(px int) Option {
	return func(c *Config) { c.ScrollOffset = px }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithClient sends requests through client.
func WithClient(client Doer) Option {
	return func(c *Config) { c.Client = client }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Add(key, value)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

func resolveConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	cfg.Headers = cfg.Headers.Clone()
	return cfg
}

// ConfigFromMap converts loosely typed settings, such as decoded JSON or
// element data attributes, into options. Keys use the camelCase names of the
// browser helper this package mirrors: reset, scrollToMessage,
// blurSubmitOnSubmit, submit, success, failed, complete, messagesContainer,
// successMessage, successMessageClass, errorMessageClass, scrollOffset and
// timeout. Unknown keys are ignored.
//
// Booleans and numbers may be given as strings. successMessage and the
// callback keys accept functions; successMessage also accepts a string.
func ConfigFromMap(m map[string]any) ([]Option, error) {
	var opts []Option

	for key, v := range m {
		switch key {
		case "reset", "scrollToMessage", "blurSubmitOnSubmit":
			b, err := toBool(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, key, err)
			}
			switch key {
			case "reset":
				opts = append(opts, WithReset(b))
			case "scrollToMessage":
				opts = append(opts, WithScrollToMessage(b))
			default:
				opts = append(opts, WithBlurSubmit(b))
			}

		case "submit":
			if !IsCallable(v) {
				return nil, fmt.Errorf("%w: submit must be a function", ErrInvalidArgument)
			}
			fn, ok := toSubmitFunc(v)
			if !ok {
				return nil, fmt.Errorf("%w: submit has signature %T", ErrInvalidArgument, v)
			}
			opts = append(opts, OnSubmit(fn))

		case "success", "failed", "complete":
			if !IsCallable(v) {
				return nil, fmt.Errorf("%w: %s must be a function", ErrInvalidArgument, key)
			}
			fn, ok := toResponseFunc(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s has signature %T", ErrInvalidArgument, key, v)
			}
			switch key {
			case "success":
				opts = append(opts, OnSuccess(fn))
			case "failed":
				opts = append(opts, OnFailed(fn))
			default:
				opts = append(opts, OnComplete(fn))
			}

		case "successMessage":
			if IsCallable(v) {
				fn, ok := toResponseFunc(v)
				if !ok {
					return nil, fmt.Errorf("%w: successMessage has signature %T", ErrInvalidArgument, v)
				}
				opts = append(opts, WithSuccessMessageFunc(fn))
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: successMessage must be a string or function", ErrInvalidArgument)
			}
			opts = append(opts, WithSuccessMessage(s))

		case "messagesContainer":
			switch t := v.(type) {
			case Element:
				opts = append(opts, WithMessagesContainer(t))
			case string:
				opts = append(opts, WithMessagesSelector(t))
			default:
				return nil, fmt.Errorf("%w: messagesContainer must be an element or selector", ErrInvalidArgument)
			}

		case "successMessageClass", "errorMessageClass":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, key)
			}
			if key == "successMessageClass" {
				opts = append(opts, WithSuccessMessageClass(s))
			} else {
				opts = append(opts, WithErrorMessageClass(s))
			}

		case "scrollOffset":
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("%w: scrollOffset: %v", ErrInvalidArgument, err)
			}
			opts = append(opts, WithScrollOffset(n))

		case "timeout":
			d, err := toDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%w: timeout: %v", ErrInvalidArgument, err)
			}
			opts = append(opts, WithTimeout(d))
		}
	}
	return opts, nil
}

func toSubmitFunc(v any) (SubmitFunc, bool) {
	switch fn := v.(type) {
	case SubmitFunc:
		return fn, true
	case func(*Controller):
		return fn, true
	case func():
		return func(*Controller) { fn() }, true
	}
	return nil, false
}

func toResponseFunc(v any) (ResponseFunc, bool) {
	switch fn := v.(type) {
	case ResponseFunc:
		return fn, true
	case func(*Controller, *Response):
		return fn, true
	case func(*Response):
		return func(_ *Controller, r *Response) { fn(r) }, true
	case func():
		return func(*Controller, *Response) { fn() }, true
	}
	return nil, false
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return true, nil
		}
		return strconv.ParseBool(strings.TrimSpace(t))
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	}
	return false, fmt.Errorf("cannot use %T as bool", v)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("cannot use %T as int", v)
}

func toDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return time.Duration(n) * time.Millisecond, nil
		}
		return time.ParseDuration(strings.TrimSpace(t))
	}
	return 0, fmt.Errorf("cannot use %T as duration", v)
}
