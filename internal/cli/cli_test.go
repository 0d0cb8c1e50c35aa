package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ghagent/internal/domain"
)

// testEnv points ghagent at a temporary home with fake model and GitHub
// servers.
type testEnv struct {
	home   string
	model  *httptest.Server
	github *httptest.Server
}

func newTestEnv(t *testing.T, modelReply string) *testEnv {
	t.Helper()

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"model":"test","response":%q,"done":true}`, modelReply)
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"models":[{"name":"test-model"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(model.Close)

	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/acme/widgets/issues":
			fmt.Fprint(w, `[{"number":1,"title":"Crash on start","state":"open","user":{"login":"dev"}},`+
				`{"number":2,"title":"Typo in docs","state":"open","user":{"login":"dev"}}]`)
		case "/rate_limit":
			w.Header().Set("X-OAuth-Scopes", "repo, read:org")
			fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"remaining":4990,"reset":1700000000},`+
				`"search":{"limit":30,"remaining":30,"reset":1700000000}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		}
	}))
	t.Cleanup(gh.Close)

	home := t.TempDir()
	t.Setenv("GHAGENT_HOME", home)
	for _, name := range []string{"OLLAMA_HOST", "OLLAMA_PORT", "OLLAMA_MODEL", "GHAGENT_MODEL_PROVIDER",
		"GHAGENT_LOG_LEVEL", "GHAGENT_SESSION_STORE", "GH_TOKEN"} {
		t.Setenv(name, "")
	}
	t.Setenv("GITHUB_TOKEN", "ghp_testsecret")

	u, err := url.Parse(model.URL)
	require.NoError(t, err)
	cfg := fmt.Sprintf(`model:
  host: %s
  port: %s
  name: test-model
  timeoutSeconds: 5
github:
  baseUrl: %s
session:
  store: sqlite
`, u.Hostname(), u.Port(), gh.URL)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600))

	return &testEnv{home: home, model: model, github: gh}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	newTestEnv(t, "")
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ghagent dev")
}

func TestConfigShow_RedactsToken(t *testing.T) {
	newTestEnv(t, "")
	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "ghp_testsecret")
	assert.Contains(t, out, "name: test-model")
}

func TestConfigValidate(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	bad := filepath.Join(env.home, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("session:\n  store: redis\n"), 0o600))
	out, err = run(t, "--config", bad, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "session.store")
}

func TestAskAndInspectSession(t *testing.T) {
	newTestEnv(t, `{"action":"list_issues","params":{"owner":"acme","repo":"widgets"},"confidence":0.9}`)

	out, err := run(t, "ask", "--session", "s1", "show", "issues", "in", "acme/widgets")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 open issues in acme/widgets:")
	assert.Contains(t, out, "Crash on start")
	assert.NotContains(t, out, "[session", "no session hint when one was given")

	out, err = run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "acme/widgets")

	out, err = run(t, "sessions", "show", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Repo:     acme/widgets")
	assert.Contains(t, out, "user: show issues in acme/widgets")
	assert.Contains(t, out, "list_issues ok records=2 attempts=1")

	out, err = run(t, "sessions", "search", "widgets")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")

	_, err = run(t, "sessions", "show", "missing")
	assert.Error(t, err)
}

func TestAsk_JSON(t *testing.T) {
	newTestEnv(t, `{"action":"list_issues","params":{"owner":"acme","repo":"widgets"}}`)

	out, err := run(t, "ask", "--json", "--session", "s1", "issues in acme/widgets")
	require.NoError(t, err)
	assert.Contains(t, out, `"sessionId": "s1"`)
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"kind": "list_issues"`)
}

func TestAsk_NewSessionHint(t *testing.T) {
	newTestEnv(t, `{"action":"unknown"}`)

	out, err := run(t, "ask", "make me a sandwich")
	require.NoError(t, err)
	assert.Contains(t, out, "[session ")
}

func TestChat_Plain(t *testing.T) {
	newTestEnv(t, `{"action":"list_issues","params":{"owner":"acme","repo":"widgets"}}`)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "silent", "chat", "--plain", "--show-intent", "--session", "c1"})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("\nissues in acme/widgets\n/quit\nnever sent\n"))
	require.NoError(t, cmd.Execute())

	s := out.String()
	assert.Contains(t, s, "ghagent session c1")
	assert.Contains(t, s, "intent: list_issues owner=acme repo=widgets")
	assert.Contains(t, s, "(ok)")
	assert.Contains(t, s, "Found 2 open issues in acme/widgets:")
	assert.Equal(t, 1, strings.Count(s, "Found 2"))
}

func TestSessions_RequireSQLite(t *testing.T) {
	newTestEnv(t, "")
	t.Setenv("GHAGENT_SESSION_STORE", "memory")

	_, err := run(t, "sessions", "list")
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestStatus(t *testing.T) {
	newTestEnv(t, "")

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "test-model is available")
	assert.Contains(t, out, "core   4990/5000 remaining")
	assert.Contains(t, out, "(token)")
	assert.Contains(t, out, "scopes: repo, read:org")
	assert.NotContains(t, out, "ghp_testsecret")
}

func TestIntentSummary(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Intent
		want string
	}{
		{name: "empty", in: domain.Intent{}, want: "none"},
		{name: "sorted params", in: domain.Intent{Kind: domain.KindListIssues, Params: map[string]string{"repo": "widgets", "owner": "acme"}}, want: "list_issues owner=acme repo=widgets"},
		{name: "clarify", in: domain.Intent{Kind: domain.KindClarify, Pending: domain.KindListIssues, Missing: []string{"owner", "repo"}}, want: "clarify pending=list_issues missing=owner,repo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intentSummary(tt.in))
		})
	}
}
