package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYtcfg = `{"INNERTUBE_API_KEY":"AIzaTest","INNERTUBE_CONTEXT":{"client":{"hl":"en","gl":"US","clientName":"WEB","clientVersion":"2.20240101.00.00"}}}`

func watchHTML(initialData string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head>
<script nonce="n1">var a = 1; ytcfg.set({"CSI_SERVICE_NAME":"youtube"}); window.ytcfg.set(%s);</script>
<script nonce="n2">var ytInitialData = %s;</script>
</head><body><div id="content"></div></body></html>`, testYtcfg, initialData)
}

func TestParseSession(t *testing.T) {
	s, err := parseSession(watchHTML(`{"contents":{"x":[1,2]}}`))
	require.NoError(t, err)
	assert.Equal(t, "AIzaTest", s.APIKey)
	assert.Equal(t, "WEB", s.Context["client"].(map[string]any)["clientName"])
	assert.Contains(t, s.InitialData, "contents")
}

func TestParseSessionWindowAssignment(t *testing.T) {
	page := `<script>ytcfg.set(` + testYtcfg + `);</script>` +
		`<script>window["ytInitialData"] = {"a":{"b":"c"}};
var meta = 1;</script>`
	s, err := parseSession(page)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": "c"}, s.InitialData["a"])
}

func TestParseSessionMissingBlobs(t *testing.T) {
	_, err := parseSession(`<html><script>var ytInitialData = {"a":1};</script></html>`)
	assert.ErrorIs(t, err, ErrNoYtcfg)

	_, err = parseSession(`<html><script>ytcfg.set(` + testYtcfg + `);</script></html>`)
	assert.ErrorIs(t, err, ErrNoInitialData)
}

func TestSetLanguage(t *testing.T) {
	s := &Session{}
	s.SetLanguage("")
	assert.Nil(t, s.Context)

	s.SetLanguage("fr")
	assert.Equal(t, "fr", s.Context["client"].(map[string]any)["hl"])
}

func TestHiddenInputs(t *testing.T) {
	page := `<form action="https://consent.youtube.com/save" method="POST">
<input type="hidden" name="gl" value="DE">
<input type="hidden" name="m" value="0"/>
<input type="hidden" name="bl" value="boq_identityfrontenduiserver_20240101.00_p0" required>
<input type="text" name="visible" value="nope">
<input type="hidden" value="noname">
</form>`
	got := hiddenInputs(page)
	assert.Equal(t, "DE", got.Get("gl"))
	assert.Equal(t, "0", got.Get("m"))
	assert.Equal(t, "boq_identityfrontenduiserver_20240101.00_p0", got.Get("bl"))
	assert.False(t, got.Has("visible"))
	assert.Len(t, got, 3)
}

func TestNewSessionConsentHandshake(t *testing.T) {
	var consentQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SOCS"); err != nil {
			http.Redirect(w, r, "/consent/form", http.StatusFound)
			return
		}
		assert.Equal(t, "abcdefghijk", r.URL.Query().Get("v"))
		fmt.Fprint(w, watchHTML(`{"ok":true}`))
	})
	mux.HandleFunc("/consent/form", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form><input type="hidden" name="gl" value="DE"><input type="hidden" name="pc" value="yt"></form>`)
	})
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		consentQuery = r.URL.RawQuery
		http.SetCookie(w, &http.Cookie{Name: "SOCS", Value: "accepted", Path: "/"})
		http.Redirect(w, r, r.URL.Query().Get("continue"), http.StatusSeeOther)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithConsentURL(srv.URL+"/save"))
	s, err := c.NewSession(context.Background(), "abcdefghijk")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijk", s.VideoID)
	assert.Equal(t, true, s.InitialData["ok"])

	for _, want := range []string{"gl=DE", "pc=yt", "set_eom=false", "set_ytc=true", "set_apyt=true", "continue="} {
		assert.True(t, strings.Contains(consentQuery, want), "missing %s in %s", want, consentQuery)
	}
}

func TestNewSessionSendsConsentCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("CONSENT")
		if assert.NoError(t, err) {
			assert.Equal(t, "YES+cb", ck.Value)
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, watchHTML(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).NewSession(context.Background(), "abcdefghijk")
	require.NoError(t, err)
}

func TestNewSessionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).NewSession(context.Background(), "abcdefghijk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}
