package main

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pthm/ajaxform"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const defaultRequiredMessage = "This field is required."

// fixtureFile is the YAML document serve loads:
//
//	fixtures:
//	  contact:
//	    title: Contact us
//	    fields: [name, email, message]
//	    required: [name, email]
//	    delay: 250ms
//	    rate_limit: 2
//	    reply:
//	      success: true
//	      status: 200
type fixtureFile struct {
	Fixtures map[string]*Fixture `yaml:"fixtures"`
}

// Fixture describes one mock form endpoint.
type Fixture struct {
	Title  string   `yaml:"title"`
	Fields []string `yaml:"fields"`

	// Required fields missing from a post produce a 422 failure with
	// RequiredMessage under each missing field.
	Required        []string `yaml:"required"`
	RequiredMessage string   `yaml:"required_message"`

	Delay time.Duration `yaml:"delay"`

	// RateLimit caps accepted posts per second; excess posts get a 429.
	// Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`

	Reply FixtureReply `yaml:"reply"`
}

func (f *Fixture) limiter() *rate.Limiter {
	if f.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(f.RateLimit), max(f.Burst, 1))
}

// FixtureReply is the envelope sent when every required field is present.
type FixtureReply struct {
	Success  *bool             `yaml:"success"`
	Status   int               `yaml:"status"`
	AsErrors bool              `yaml:"as_errors"`
	Messages orderedMessages   `yaml:"messages"`
	Headers  map[string]string `yaml:"headers"`
}

// orderedMessages keeps the field order of a YAML mapping. Values may be a
// single string or a list.
type orderedMessages ajaxform.MessageSet

func (m *orderedMessages) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: messages must be a mapping", node.Line)
	}

	set := make(orderedMessages, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		var list []string
		switch val.Kind {
		case yaml.ScalarNode:
			list = []string{val.Value}
		case yaml.SequenceNode:
			if err := val.Decode(&list); err != nil {
				return fmt.Errorf("line %d: %w", val.Line, err)
			}
		default:
			return fmt.Errorf("line %d: messages for %q must be a string or a list", val.Line, key.Value)
		}
		set = append(set, ajaxform.FieldMessages{Field: key.Value, Messages: list})
	}
	*m = set
	return nil
}

// Fixtures maps endpoint names to their behavior.
type Fixtures map[string]*Fixture

// Names returns the fixture names sorted.
func (fs Fixtures) Names() []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseFixtures decodes a fixture file.
func parseFixtures(data []byte) (Fixtures, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if len(file.Fixtures) == 0 {
		return nil, fmt.Errorf("parse fixtures: no fixtures defined")
	}
	for name, f := range file.Fixtures {
		if f == nil {
			return nil, fmt.Errorf("parse fixtures: %q is empty", name)
		}
		if strings.ContainsAny(name, "/ ") {
			return nil, fmt.Errorf("parse fixtures: name %q must not contain slashes or spaces", name)
		}
	}
	return Fixtures(file.Fixtures), nil
}

// loadFixtures reads path, or returns the built-in fixtures when path is
// empty.
func loadFixtures(path string) (Fixtures, error) {
	if path == "" {
		return defaultFixtures(), nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFixtures(data)
}

func defaultFixtures() Fixtures {
	return Fixtures{
		"contact": {
			Title:    "Contact us",
			Fields:   []string{"name", "email", "message"},
			Required: []string{"name", "email", "message"},
		},
		"reject": {
			Title:  "Always rejected",
			Fields: []string{"email"},
			Reply: FixtureReply{
				Success:  new(bool),
				Messages: orderedMessages{{Field: "email", Messages: []string{"Address is on the block list"}}},
			},
		},
	}
}

// Evaluate builds the reply for a post carrying form.
func (f *Fixture) Evaluate(form url.Values) ajaxform.Reply {
	var missing []string
	for _, name := range f.Required {
		if strings.TrimSpace(form.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		msg := f.RequiredMessage
		if msg == "" {
			msg = defaultRequiredMessage
		}
		reply := ajaxform.Failure()
		for _, name := range missing {
			reply = reply.Message(name, msg)
		}
		return reply
	}

	r := f.Reply
	reply := ajaxform.Success()
	if r.Success != nil && !*r.Success {
		reply = ajaxform.Failure()
	}
	for _, fm := range r.Messages {
		reply = reply.Message(fm.Field, fm.Messages...)
	}
	if r.AsErrors {
		reply = reply.AsErrors()
	}
	if r.Status != 0 {
		reply = reply.Status(r.Status)
	}
	for k, v := range r.Headers {
		reply = reply.Header(k, v)
	}
	return reply
}
