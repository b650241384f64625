package ajaxform

import (
	"errors"
	"testing"
	"time"

	"github.com/pthm/ajaxform/lib/htmldom"
)

const registryPage = `<!DOCTYPE html>
<html><body>
<section id="newsletter" data-ajaxform-action="/subscribe" data-ajaxform-reset="false" data-ajaxform-success-message="Subscribed!">
  <form><input name="email"><button>Join</button></form>
</section>
<form id="contact" data-ajaxform-action="/contact" data-ajaxform-scroll-offset="10" data-ajaxform-timeout="2s">
  <input name="name"><button>Send</button>
</form>
<form id="search" action="/search"><input name="q"></form>
</body></html>`

func TestRegistryScan(t *testing.T) {
	doc, err := htmldom.ParseString(registryPage, htmldom.WithBaseURL("https://example.com/"))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	reg := NewRegistry(doc, WithErrorMessageClass("err"))
	bound, err := reg.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bound) != 2 || reg.Len() != 2 {
		t.Fatalf("bound %d controllers (Len %d), want 2", len(bound), reg.Len())
	}

	newsletter, _ := doc.QueryOne(`//section[@id="newsletter"]`)
	c := reg.Get(newsletter)
	if c == nil {
		t.Fatal("newsletter section should be bound")
	}
	cfg := c.Config()
	if cfg.Reset {
		t.Error("data-ajaxform-reset=false was not applied")
	}
	if cfg.SuccessMessage != "Subscribed!" {
		t.Errorf("SuccessMessage = %q", cfg.SuccessMessage)
	}
	if cfg.ErrorMessageClass != "err" {
		t.Errorf("registry options should apply, ErrorMessageClass = %q", cfg.ErrorMessageClass)
	}
	if c.Action() != "https://example.com/subscribe" {
		t.Errorf("Action() = %q", c.Action())
	}

	contact, _ := doc.QueryOne(`//form[@id="contact"]`)
	cfg = reg.Get(contact).Config()
	if cfg.ScrollOffset != 10 || cfg.Timeout != 2*time.Second {
		t.Errorf("ScrollOffset/Timeout = %d/%v", cfg.ScrollOffset, cfg.Timeout)
	}

	search, _ := doc.QueryOne(`//form[@id="search"]`)
	if reg.Get(search) != nil {
		t.Error("forms without data-ajaxform-action should be left alone")
	}

	again, err := reg.Scan()
	if err != nil || len(again) != 0 {
		t.Errorf("second Scan bound %d (%v), want 0", len(again), err)
	}
}

func TestRegistryScanReportsBadAttributes(t *testing.T) {
	doc, _ := htmldom.ParseString(`<html><body>
<form id="a" data-ajaxform-action="/a" data-ajaxform-reset="perhaps"></form>
<div id="b" data-ajaxform-action="/b"><p>no form</p></div>
<form id="c" data-ajaxform-action="/c"></form>
</body></html>`)

	reg := NewRegistry(doc)
	bound, err := reg.Scan()

	if len(bound) != 1 {
		t.Errorf("bound %d, want 1", len(bound))
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Scan error = %v, want ErrInvalidArgument", err)
	}
}

func TestRegistryBindTwice(t *testing.T) {
	doc, _ := htmldom.ParseString(registryPage)
	search, _ := doc.QueryOne(`//form[@id="search"]`)

	reg := NewRegistry(doc)
	c, err := reg.Bind(search, "/search")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, ok := search.Attr(AttrBound); !ok {
		t.Error("bound element should carry the registry marker")
	}

	if _, err := reg.Bind(search, "/search"); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("second Bind = %v, want ErrAlreadyBound", err)
	}
	if search.ListenerCount("submit") != 1 {
		t.Errorf("ListenerCount(submit) = %d, want 1", search.ListenerCount("submit"))
	}

	if !reg.Unbind(search) {
		t.Error("Unbind should report the bound controller")
	}
	if !c.Closed() {
		t.Error("Unbind should close the controller")
	}
	if reg.Unbind(search) {
		t.Error("second Unbind should report nothing bound")
	}
	if search.ListenerCount("submit") != 0 {
		t.Error("listener should be gone after Unbind")
	}

	if _, err := reg.Bind(search, "/search"); err != nil {
		t.Errorf("rebinding after Unbind: %v", err)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	doc, _ := htmldom.ParseString(registryPage)
	reg := NewRegistry(doc)

	bound, err := reg.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	reg.Wait()

	if reg.Len() != 0 {
		t.Errorf("Len() = %d after CloseAll", reg.Len())
	}
	for _, c := range bound {
		if !c.Closed() {
			t.Errorf("controller for %s not closed", c.Action())
		}
		if _, ok := c.Target().Attr(AttrBound); ok {
			t.Error("marker should be removed")
		}
	}
}
