package ajaxform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// handleSubmitEvent is the form's submit listener. The default navigation is
// always suppressed; the submission runs on its own goroutine so the event
// loop is never blocked on the network.
func (c *Controller) handleSubmitEvent(ev Event) {
	ev.PreventDefault()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()

		err := c.Submit(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, ErrSubmitInFlight), errors.Is(err, ErrClosed):
			c.log.Debug("submit ignored", zap.Error(err))
		default:
			c.log.Error("submit failed", zap.Error(err))
		}
	}()
}

// Submit runs one submission and blocks until it has settled.
//
// Server and network failures are rendered into the message region and
// reported through OnFailed and EventError; Submit returns nil for them.
// Submit returns an error only when no submission took place:
// ErrSubmitInFlight while another one runs, ErrClosed after Close,
// ErrFileUploadUnsupported when the form has a file field and the document
// cannot build multipart bodies, or the error reading the form. If the
// controller is closed while the request is pending, the outcome is
// discarded and ErrClosed is returned.
func (c *Controller) Submit(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state != StateIdle:
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.state = StateSubmitting
	c.cancel = cancel
	c.mu.Unlock()

	fields, err := c.form.Fields()
	if err != nil {
		c.finish()
		return fmt.Errorf("ajaxform: reading form: %w", err)
	}
	b, err := buildBody(fields, c.doc.SupportsFormData())
	if err != nil {
		c.finish()
		c.log.Error("cannot build request body", zap.Error(err))
		return err
	}

	requestID := uuid.NewString()
	log := c.log.With(zap.String("request_id", requestID))

	if err := c.messages.SetInnerHTML(""); err != nil {
		log.Warn("clearing message region", zap.Error(err))
	}
	c.disableSubmitControls()
	if c.cfg.OnSubmit != nil {
		c.cfg.OnSubmit(c)
	}
	c.publish(EventSubmit, nil)
	log.Debug("submitting", zap.Int("fields", len(fields)), zap.String("content_type", b.contentType))

	resp := c.send(ctx, requestID, b)

	if c.Closed() {
		c.enableSubmitControls()
		c.finish()
		log.Debug("response discarded after close")
		return ErrClosed
	}

	log.Debug("response received",
		zap.Int("status", resp.Status),
		zap.Bool("success", resp.Success),
		zap.Int("messages", resp.Messages.Len()),
	)
	if resp.Success {
		c.setState(StateSucceeded)
		c.handleSuccess(resp)
	} else {
		if resp.Err != nil {
			log.Warn("submission failed", zap.Error(resp.Err))
		}
		c.setState(StateFailed)
		c.handleFailure(resp)
	}
	c.settle(resp)
	return nil
}

// send posts the body and interprets whatever comes back. It never fails:
// transport errors become a failed response.
func (c *Controller) send(ctx context.Context, requestID string, b body) *Response {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.action, bytes.NewReader(b.data))
	if err != nil {
		return transportFailure(requestID, err)
	}
	for key, values := range c.cfg.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", b.contentType)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set(HeaderRequestedWith, requestedWithXHR)
	req.Header.Set(HeaderRequestID, requestID)

	res, err := c.cfg.Client.Do(req)
	if err != nil {
		return transportFailure(requestID, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return transportFailure(requestID, err)
	}
	if len(raw) > maxResponseBytes {
		return oversizedResponse(requestID, res.StatusCode, res.Header)
	}
	return newResponse(requestID, res.StatusCode, res.Header, raw)
}

func (c *Controller) handleSuccess(resp *Response) {
	if err := c.messages.SetInnerHTML(""); err != nil {
		c.log.Warn("clearing message region", zap.Error(err))
	}

	switch {
	case c.cfg.SuccessMessageFunc != nil:
		c.cfg.SuccessMessageFunc(c, resp)
	case c.cfg.SuccessMessage != "":
		c.render(SuccessBlock(c.cfg.SuccessMessageClass, c.cfg.SuccessMessage))
	}

	if c.cfg.OnSuccess != nil {
		c.cfg.OnSuccess(c, resp)
	}
	if c.cfg.Reset {
		c.form.Reset()
	}
	c.publish(EventSuccess, resp)
}

func (c *Controller) handleFailure(resp *Response) {
	c.render(ErrorBlocks(c.cfg.ErrorMessageClass, resp.Messages))

	if c.cfg.OnFailed != nil {
		c.cfg.OnFailed(c, resp)
	}
	c.publish(EventError, resp)
}

// settle runs after either outcome and returns the controller to idle.
func (c *Controller) settle(resp *Response) {
	c.setState(StateSettled)

	if c.cfg.ScrollToMessage {
		c.doc.ScrollTo(c.messages, c.cfg.ScrollOffset, true)
	}
	c.enableSubmitControls()
	if c.cfg.BlurSubmitOnSubmit {
		for _, el := range submitControls(c.target) {
			el.Blur()
		}
	}
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(c, resp)
	}
	c.publish(EventComplete, resp)

	c.finish()
}

// finish returns the controller to idle.
func (c *Controller) finish() {
	c.mu.Lock()
	c.state = StateIdle
	c.cancel = nil
	c.mu.Unlock()
}

// render appends the component's markup to the message region.
func (c *Controller) render(comp templ.Component) {
	markup, err := RenderString(context.Background(), comp)
	if err != nil {
		c.log.Error("rendering messages", zap.Error(err))
		return
	}
	if err := c.messages.AppendHTML(markup); err != nil {
		c.log.Error("inserting messages", zap.Error(err))
	}
}

// disableSubmitControls disables the enabled submit controls for the
// duration of the request. Controls that were already disabled are left
// alone on re-enable.
func (c *Controller) disableSubmitControls() {
	var disabled []Element
	for _, el := range submitControls(c.target) {
		if _, already := el.Attr("disabled"); already {
			continue
		}
		el.SetDisabled(true)
		disabled = append(disabled, el)
	}

	c.mu.Lock()
	c.disabled = disabled
	c.mu.Unlock()
}

func (c *Controller) enableSubmitControls() {
	c.mu.Lock()
	disabled := c.disabled
	c.disabled = nil
	c.mu.Unlock()

	for _, el := range disabled {
		el.SetDisabled(false)
	}
}
