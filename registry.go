package ajaxform

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pthm/ajaxform/lib/dom"
	"go.uber.org/zap"
)

// Data attributes read by Registry.Scan.
const (
	// AttrAction marks an element for auto-binding and holds the action URL.
	AttrAction = "data-ajaxform-action"
	// AttrBound holds the registry key of a bound element.
	AttrBound = "data-ajaxform-id"

	attrPrefix = "data-ajaxform-"
)

// scanOptions maps data attributes to ConfigFromMap keys.
var scanOptions = map[string]string{
	"reset":             "reset",
	"scroll-to-message": "scrollToMessage",
	"blur-submit":       "blurSubmitOnSubmit",
	"messages":          "messagesContainer",
	"success-message":   "successMessage",
	"success-class":     "successMessageClass",
	"error-class":       "errorMessageClass",
	"scroll-offset":     "scrollOffset",
	"timeout":           "timeout",
}

// Registry manages the controllers bound within one document. Each
// controller stays independent; the registry only guards against binding the
// same element twice and tears everything down together.
type Registry struct {
	mu          sync.Mutex
	doc         Document
	opts        []Option
	controllers map[string]*Controller
	log         *zap.Logger
}

// NewRegistry creates a registry for doc. opts apply to every controller it
// binds, before any per-element options.
func NewRegistry(doc Document, opts ...Option) *Registry {
	return &Registry{
		doc:         doc,
		opts:        opts,
		controllers: make(map[string]*Controller),
		log:         resolveConfig(opts).Logger,
	}
}

// Bind creates a controller for target and tracks it. Binding an element
// that is already bound fails with ErrAlreadyBound.
func (reg *Registry) Bind(target Element, action string, opts ...Option) (*Controller, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target is nil", ErrInvalidArgument)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if id, ok := target.Attr(AttrBound); ok {
		if _, exists := reg.controllers[id]; exists {
			return nil, fmt.Errorf("%w: %s=%q", ErrAlreadyBound, AttrBound, id)
		}
	}

	all := make([]Option, 0, len(reg.opts)+len(opts))
	all = append(all, reg.opts...)
	all = append(all, opts...)

	c, err := New(reg.doc, target, action, all...)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	target.SetAttr(AttrBound, id)
	reg.controllers[id] = c
	return c, nil
}

// Scan binds every element under the document root carrying AttrAction.
// Options are read from the element's other data-ajaxform-* attributes:
// reset, scroll-to-message, blur-submit, messages, success-message,
// success-class, error-class, scroll-offset and timeout.
//
// Elements that are already bound are skipped. Scan keeps going past
// failures and returns them joined.
func (reg *Registry) Scan() ([]*Controller, error) {
	root := reg.doc.Root()
	if root == nil {
		return nil, nil
	}

	var targets []Element
	if _, ok := root.Attr(AttrAction); ok {
		targets = append(targets, root)
	}
	targets = append(targets, dom.All(root, func(el Element) bool {
		_, ok := el.Attr(AttrAction)
		return ok
	})...)

	var (
		bound []*Controller
		errs  []error
	)
	for _, el := range targets {
		if reg.Get(el) != nil {
			continue
		}
		action, _ := el.Attr(AttrAction)
		opts, err := optionsFromAttrs(el)
		if err != nil {
			errs = append(errs, fmt.Errorf("ajaxform: <%s %s=%q>: %w", el.TagName(), AttrAction, action, err))
			continue
		}
		c, err := reg.Bind(el, action, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("ajaxform: <%s %s=%q>: %w", el.TagName(), AttrAction, action, err))
			continue
		}
		bound = append(bound, c)
	}

	reg.log.Debug("scan finished", zap.Int("bound", len(bound)), zap.Int("failed", len(errs)))
	return bound, errors.Join(errs...)
}

func optionsFromAttrs(el Element) ([]Option, error) {
	m := make(map[string]any)
	for attr, key := range scanOptions {
		if v, ok := el.Attr(attrPrefix + attr); ok {
			m[key] = v
		}
	}
	if v, ok := m["messagesContainer"].(string); ok && strings.TrimSpace(v) == "" {
		delete(m, "messagesContainer")
	}
	return ConfigFromMap(m)
}

// Get returns the controller bound to target, or nil.
func (reg *Registry) Get(target Element) *Controller {
	id, ok := target.Attr(AttrBound)
	if !ok {
		return nil
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.controllers[id]
}

// Unbind closes the controller bound to target and forgets it. It reports
// whether a controller was bound.
func (reg *Registry) Unbind(target Element) bool {
	id, ok := target.Attr(AttrBound)
	if !ok {
		return false
	}

	reg.mu.Lock()
	c, exists := reg.controllers[id]
	delete(reg.controllers, id)
	reg.mu.Unlock()

	if !exists {
		return false
	}
	_ = c.Close()
	target.RemoveAttr(AttrBound)
	return true
}

// Len returns the number of bound controllers.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.controllers)
}

// CloseAll closes and forgets every controller.
func (reg *Registry) CloseAll() error {
	reg.mu.Lock()
	controllers := reg.controllers
	reg.controllers = make(map[string]*Controller)
	reg.mu.Unlock()

	var errs []error
	for _, c := range controllers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		c.Target().RemoveAttr(AttrBound)
	}
	return errors.Join(errs...)
}

// Wait waits for the in-flight submissions of every bound controller.
func (reg *Registry) Wait() {
	reg.mu.Lock()
	controllers := make([]*Controller, 0, len(reg.controllers))
	for _, c := range reg.controllers {
		controllers = append(controllers, c)
	}
	reg.mu.Unlock()

	for _, c := range controllers {
		c.Wait()
	}
}
