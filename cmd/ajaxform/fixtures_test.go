package main

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
fixtures:
  signup:
    title: Sign up
    fields: [email, password]
    required: [email]
    required_message: Please fill this in.
    delay: 250ms
    reply:
      success: false
      status: 409
      as_errors: true
      headers:
        X-Fixture: signup
      messages:
        password: Too short
        email:
          - Already registered
          - Try signing in
`

func TestParseFixtures(t *testing.T) {
	fs, err := parseFixtures([]byte(fixtureYAML))
	require.NoError(t, err)
	require.Contains(t, fs, "signup")

	f := fs["signup"]
	assert.Equal(t, "Sign up", f.Title)
	assert.Equal(t, []string{"email", "password"}, f.Fields)
	assert.Equal(t, 250*time.Millisecond, f.Delay)
	require.NotNil(t, f.Reply.Success)
	assert.False(t, *f.Reply.Success)
	assert.Equal(t, 409, f.Reply.Status)
	assert.True(t, f.Reply.AsErrors)

	// Field order follows the file, not the alphabet.
	require.Len(t, f.Reply.Messages, 2)
	assert.Equal(t, "password", f.Reply.Messages[0].Field)
	assert.Equal(t, []string{"Too short"}, f.Reply.Messages[0].Messages)
	assert.Equal(t, "email", f.Reply.Messages[1].Field)
	assert.Equal(t, []string{"Already registered", "Try signing in"}, f.Reply.Messages[1].Messages)
}

func TestParseFixturesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "fixtures: {}"},
		{"not yaml", "fixtures: [unclosed"},
		{"null fixture", "fixtures:\n  contact:\n"},
		{"slash in name", "fixtures:\n  a/b:\n    title: x\n"},
		{"messages list", "fixtures:\n  a:\n    reply:\n      messages: [x]\n"},
		{"nested messages", "fixtures:\n  a:\n    reply:\n      messages:\n        email: {x: y}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixtures([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFixturesDefaults(t *testing.T) {
	fs, err := loadFixtures("")
	require.NoError(t, err)
	assert.Equal(t, []string{"contact", "reject"}, fs.Names())
}

func TestFixtureEvaluate(t *testing.T) {
	fs, err := parseFixtures([]byte(fixtureYAML))
	require.NoError(t, err)
	f := fs["signup"]

	t.Run("missing required", func(t *testing.T) {
		reply := f.Evaluate(url.Values{"email": {"  "}})
		assert.False(t, reply.IsSuccess())
		assert.Equal(t, 422, reply.GetStatus())
		assert.Equal(t, []string{"Please fill this in."}, reply.GetMessages().Get("email"))
	})

	t.Run("configured reply", func(t *testing.T) {
		reply := f.Evaluate(url.Values{"email": {"ada@example.com"}})
		assert.False(t, reply.IsSuccess())
		assert.Equal(t, 409, reply.GetStatus())
		assert.Equal(t, "signup", reply.GetHeaders()["X-Fixture"])
		assert.Equal(t, []string{"password", "email"}, reply.GetMessages().Fields())

		_, hasErrors := reply.Envelope().Get("errors")
		assert.True(t, hasErrors)
	})

	t.Run("default success", func(t *testing.T) {
		reply := defaultFixtures()["contact"].Evaluate(url.Values{
			"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hi"},
		})
		assert.True(t, reply.IsSuccess())
		assert.Equal(t, 200, reply.GetStatus())
		assert.Empty(t, reply.GetMessages())
	})
}

func TestLoadFixturesExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	require.NoError(t, os.WriteFile(filepath.Join(home, "forms.yaml"), []byte(fixtureYAML), 0o644))

	fs, err := loadFixtures("~/forms.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"signup"}, fs.Names())
}
