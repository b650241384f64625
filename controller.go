package ajaxform

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Controller binds one form to an endpoint. It intercepts the form's submit
// event, posts the fields asynchronously and renders the outcome into a
// message region, broadcasting lifecycle events from the target element.
//
// Typical usage:
//
//	c, err := ajaxform.New(doc, target, "/contact",
//	    ajaxform.WithSuccessMessage("Thanks, we'll be in touch."),
//	    ajaxform.OnFailed(func(c *ajaxform.Controller, r *ajaxform.Response) {
//	        log.Printf("rejected: %v", r.Messages.All())
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// The configuration is resolved once in New and never changes. At most one
// submission is in flight at a time.
type Controller struct {
	doc      Document
	target   Element
	form     Element
	messages Element
	action   string
	cfg      Config
	log      *zap.Logger

	mu       sync.Mutex
	state    State
	closed   bool
	cancel   func()
	remove   func()
	disabled []Element

	// inflight tracks submissions started by the submit listener.
	inflight sync.WaitGroup
}

// New binds a controller to target, which is either a form or a container
// holding one. action is the URL the form is posted to and is resolved
// against the document's base URL.
//
// New fails with ErrInvalidArgument, before touching the document, when
// action is empty, doc or target is nil, no form can be found or the
// configured message region cannot be resolved.
func New(doc Document, target Element, action string, opts ...Option) (*Controller, error) {
	if strings.TrimSpace(action) == "" {
		return nil, fmt.Errorf("%w: action URL is empty", ErrInvalidArgument)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrInvalidArgument)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: target is nil", ErrInvalidArgument)
	}

	form := findForm(target)
	if form == nil {
		return nil, fmt.Errorf("%w: no form in <%s> target", ErrInvalidArgument, target.TagName())
	}

	resolved, err := doc.ResolveURL(action)
	if err != nil {
		return nil, fmt.Errorf("%w: action %q: %v", ErrInvalidArgument, action, err)
	}

	cfg := resolveConfig(opts)
	c := &Controller{
		doc:    doc,
		target: target,
		form:   form,
		action: resolved,
		cfg:    cfg,
		log:    cfg.Logger.With(zap.String("action", resolved)),
	}

	if err := c.resolveMessages(); err != nil {
		return nil, err
	}

	c.remove = form.AddEventListener("submit", c.handleSubmitEvent)
	c.log.Debug("controller bound")
	return c, nil
}

// NewFromSelector is New with the target looked up by selector. The
// selector must match exactly one element.
func NewFromSelector(doc Document, selector, action string, opts ...Option) (*Controller, error) {
	if strings.TrimSpace(action) == "" {
		return nil, fmt.Errorf("%w: action URL is empty", ErrInvalidArgument)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrInvalidArgument)
	}

	els, err := doc.Query(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(els) != 1 {
		return nil, fmt.Errorf("%w: selector %q matched %d elements, want 1", ErrInvalidArgument, selector, len(els))
	}
	return New(doc, els[0], action, opts...)
}

// resolveMessages picks the message region: the configured container, the
// configured selector within the target, the first non-noscript
// .form-messages descendant, or a new region prepended to the target.
func (c *Controller) resolveMessages() error {
	if c.cfg.MessagesContainer != nil {
		c.messages = c.cfg.MessagesContainer
		return nil
	}

	if c.cfg.MessagesSelector != "" {
		els, err := c.target.Query(c.cfg.MessagesSelector)
		if err != nil {
			return fmt.Errorf("%w: messages selector: %v", ErrInvalidArgument, err)
		}
		if len(els) == 0 {
			return fmt.Errorf("%w: messages selector %q matched nothing", ErrInvalidArgument, c.cfg.MessagesSelector)
		}
		c.messages = els[0]
		return nil
	}

	if el := findMessages(c.target); el != nil {
		c.messages = el
		return nil
	}

	region, err := c.doc.CreateElement("div")
	if err != nil {
		return fmt.Errorf("ajaxform: creating message region: %w", err)
	}
	region.SetAttr("class", MessagesClass)
	if err := c.target.Prepend(region); err != nil {
		return fmt.Errorf("ajaxform: inserting message region: %w", err)
	}
	c.messages = region
	return nil
}

// Target returns the element the controller is bound to.
func (c *Controller) Target() Element {
	return c.target
}

// Form returns the bound form.
func (c *Controller) Form() Element {
	return c.form
}

// Messages returns the message region.
func (c *Controller) Messages() Element {
	return c.messages
}

// Action returns the resolved URL submissions are posted to.
func (c *Controller) Action() string {
	return c.action
}

// Document returns the document the controller was created with.
func (c *Controller) Document() Document {
	return c.doc
}

// Config returns a copy of the resolved configuration.
func (c *Controller) Config() Config {
	cfg := c.cfg
	cfg.Headers = c.cfg.Headers.Clone()
	return cfg
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close removes the submit listener and cancels an in-flight request. A
// response arriving after Close is discarded. Close is idempotent and safe
// to call from callbacks.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	remove, cancel := c.remove, c.cancel
	c.mu.Unlock()

	if remove != nil {
		remove()
	}
	if cancel != nil {
		cancel()
	}
	c.log.Debug("controller closed")
	return nil
}

// Wait blocks until every submission started by the submit listener has
// settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
