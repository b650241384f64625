package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pthm/ajaxform"
	"github.com/pthm/ajaxform/lib/dom"
	"github.com/pthm/ajaxform/lib/encoding"
	"github.com/pthm/ajaxform/lib/htmldom"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errSubmissionFailed is returned when the endpoint rejected the form.
var errSubmissionFailed = errors.New("submission failed")

type submitOptions struct {
	form         string
	action       string
	baseURL      string
	set          []string
	files        []string
	headers      []string
	output       string
	noMultipart  bool
	allowFailure bool
}

func submitCmd(a *app) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit <page>",
		Short: "Fill in and submit a form from an HTML page",
		Long: `Load an HTML page from a file, a URL or stdin ("-"), fill in a form and
submit it like the browser would. The messages the page would show are
printed; a rejected submission exits non-zero unless --allow-failure is set.`,
		Example: `  ajaxform submit contact.html -s name=Ada -s email=ada@example.com \
      --action http://localhost:8080/submit/contact
  ajaxform submit https://example.com/signup --form "//form[@id='signup']" -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSubmit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.form, "form", "f", "//form", "XPath selecting the form, or an element inside it")
	f.StringVarP(&opts.action, "action", "a", "", "endpoint URL (default: the form's action attribute)")
	f.StringVar(&opts.baseURL, "base-url", "", "URL relative references resolve against (default: the page URL)")
	f.StringArrayVarP(&opts.set, "set", "s", nil, "set a field, name=value (repeatable)")
	f.StringArrayVar(&opts.files, "file", nil, "attach a file, name=path (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `extra request header, "Key: Value" (repeatable)`)
	f.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	f.BoolVar(&opts.noMultipart, "no-multipart", false, "behave like a browser without multipart support")
	f.BoolVar(&opts.allowFailure, "allow-failure", false, "exit zero when the endpoint rejects the form")
	f.Duration("timeout", 0, "request timeout (default from config, 30s)")
	_ = a.v.BindPFlag("submit.timeout", f.Lookup("timeout"))

	return cmd
}

func (a *app) runSubmit(ctx context.Context, in io.Reader, out io.Writer, page string, opts submitOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("output %q: want text or json", opts.output)
	}

	client := newHTTPClient()
	markup, pageURL, err := loadPage(ctx, client, in, page)
	if err != nil {
		return err
	}

	base := opts.baseURL
	if base == "" {
		base = pageURL
	}
	var docOpts []htmldom.Option
	if base != "" {
		docOpts = append(docOpts, htmldom.WithBaseURL(base))
	}
	if opts.noMultipart {
		docOpts = append(docOpts, htmldom.WithoutFormData())
	}
	doc, err := htmldom.Parse(bytes.NewReader(markup), docOpts...)
	if err != nil {
		return err
	}

	target, err := doc.QueryOne(opts.form)
	if err != nil {
		return err
	}
	action := opts.action
	if action == "" {
		action = formAction(target, pageURL)
	}

	var resp *ajaxform.Response
	copts := []ajaxform.Option{
		ajaxform.WithLogger(a.log),
		ajaxform.WithClient(client),
		ajaxform.WithTimeout(a.v.GetDuration("submit.timeout")),
		ajaxform.WithScrollToMessage(false),
		ajaxform.OnComplete(func(_ *ajaxform.Controller, r *ajaxform.Response) { resp = r }),
	}
	if ua := a.cfg.Submit.UserAgent; ua != "" {
		copts = append(copts, ajaxform.WithHeader("User-Agent", ua))
	}
	for _, h := range opts.headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("header %q: want \"Key: Value\"", h)
		}
		copts = append(copts, ajaxform.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}

	c, err := ajaxform.New(doc, target, action, copts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := fillForm(doc, c.Form(), opts.set, opts.files); err != nil {
		return err
	}

	a.log.Info("submitting form", zap.String("action", c.Action()))
	if err := c.Submit(ctx); err != nil {
		return err
	}
	if resp == nil {
		return errors.New("submission did not complete")
	}

	if err := printOutcome(out, opts.output, c, resp); err != nil {
		return err
	}
	if !resp.Success && !opts.allowFailure {
		return errSubmissionFailed
	}
	return nil
}

// loadPage reads page from stdin, a URL or a file. The returned URL is set
// only for pages fetched over HTTP.
func loadPage(ctx context.Context, client *http.Client, stdin io.Reader, page string) ([]byte, string, error) {
	switch {
	case page == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "", nil

	case strings.HasPrefix(page, "http://"), strings.HasPrefix(page, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
		if err != nil {
			return nil, "", err
		}
		res, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetch page: %w", err)
		}
		defer res.Body.Close()
		if res.StatusCode/100 != 2 {
			return nil, "", fmt.Errorf("fetch page: %s", res.Status)
		}
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, "", fmt.Errorf("fetch page: %w", err)
		}
		return data, res.Request.URL.String(), nil

	default:
		path, err := homedir.Expand(page)
		if err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		return data, "", nil
	}
}

// formAction returns the action a browser would post target's form to.
func formAction(target dom.Element, pageURL string) string {
	form := target
	if target.TagName() != "form" {
		if f := dom.First(target, dom.IsTag("form")); f != nil {
			form = f
		}
	}
	if action, ok := form.Attr("action"); ok && strings.TrimSpace(action) != "" {
		return action
	}
	return pageURL
}

// fillForm applies name=value and name=path assignments to the form's
// controls.
func fillForm(doc *htmldom.Document, form dom.Element, set, files []string) error {
	for _, kv := range set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set %q: want name=value", kv)
		}
		controls, err := controlsNamed(form, name)
		if err != nil {
			return err
		}
		if err := setControl(doc, controls, value); err != nil {
			return fmt.Errorf("--set %s: %w", name, err)
		}
	}

	for _, kv := range files {
		name, path, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--file %q: want name=path", kv)
		}
		controls, err := controlsNamed(form, name)
		if err != nil {
			return err
		}
		input := firstOfType(controls, "file")
		if input == nil {
			return fmt.Errorf("--file %s: no file input with that name", name)
		}
		path, err = homedir.Expand(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		doc.AttachFile(input, dom.File{Name: filepath.Base(path), ContentType: ct, Data: data})
	}
	return nil
}

func controlsNamed(form dom.Element, name string) ([]dom.Element, error) {
	if name == "" || strings.ContainsAny(name, `'"`) {
		return nil, fmt.Errorf("field name %q is not supported", name)
	}
	controls, err := form.Query(".//*[@name='" + name + "']")
	if err != nil {
		return nil, err
	}
	if len(controls) == 0 {
		return nil, fmt.Errorf("form has no field %q", name)
	}
	return controls, nil
}

// setControl sets a text-like control's value, or checks the checkbox or
// radio button whose value matches.
func setControl(doc *htmldom.Document, controls []dom.Element, value string) error {
	first := controls[0]
	kind, _ := first.Attr("type")
	kind = strings.ToLower(kind)

	if kind != "checkbox" && kind != "radio" {
		doc.SetValue(first, value)
		return nil
	}

	matched := false
	for _, el := range controls {
		v, ok := el.Attr("value")
		if !ok {
			v = "on"
		}
		switch {
		case v == value:
			doc.SetChecked(el, true)
			matched = true
		case kind == "radio":
			doc.SetChecked(el, false)
		}
	}
	if !matched {
		return fmt.Errorf("no %s with value %q", kind, value)
	}
	return nil
}

func firstOfType(controls []dom.Element, kind string) dom.Element {
	for _, el := range controls {
		if t, _ := el.Attr("type"); strings.EqualFold(t, kind) {
			return el
		}
	}
	return nil
}

func printOutcome(w io.Writer, format string, c *ajaxform.Controller, r *ajaxform.Response) error {
	if format == "json" {
		return printJSON(w, c, r)
	}

	outcome := "failed"
	if r.Success {
		outcome = "success"
	}
	fmt.Fprintf(w, "%s %s (status %d, request %s)\n", outcome, c.Action(), r.Status, r.RequestID)
	if r.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", r.Err)
	}
	for _, el := range c.Messages().Children() {
		text := el.InnerHTML()
		if e, ok := el.(*htmldom.Element); ok {
			text = e.Text()
		}
		class, _ := el.Attr("class")
		fmt.Fprintf(w, "  [%s] %s\n", class, strings.TrimSpace(text))
	}
	return nil
}

func printJSON(w io.Writer, c *ajaxform.Controller, r *ajaxform.Response) error {
	out := encoding.NewObject()
	out.Set("action", c.Action())
	out.Set("requestId", r.RequestID)
	out.Set("status", r.Status)
	out.Set("success", r.Success)

	msgs := encoding.NewObject()
	for _, fm := range r.Messages {
		list := make([]any, len(fm.Messages))
		for i, m := range fm.Messages {
			list[i] = m
		}
		msgs.Set(fm.Field, list)
	}
	out.Set("messages", msgs)
	out.Set("body", r.Body)
	if r.Err != nil {
		out.Set("error", r.Err.Error())
	}

	data, err := encoding.EncodeJSON(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
