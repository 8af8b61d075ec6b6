//go:build integration

package automation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const composeFixture = `<!doctype html>
<html><body>
<textarea id="surface"></textarea>
<input id="file" type="file">
<div id="preview" hidden></div>
<button id="submit" disabled>Post</button>
<div id="result"></div>
<script>
const file = document.getElementById('file');
const submit = document.getElementById('submit');
file.addEventListener('change', () => {
  document.getElementById('preview').hidden = false;
  document.getElementById('preview').setAttribute('data-ready', '1');
  submit.disabled = false;
});
submit.addEventListener('click', () => {
  document.getElementById('result').setAttribute('data-posted', document.getElementById('surface').value);
});
</script>
</body></html>`

func TestRodBrowserPostsAgainstFixture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(composeFixture))
	}))
	defer srv.Close()

	browser := NewRodBrowser(RodOptions{Headless: true, TempDir: t.TempDir()}, nil)
	defer browser.Close()

	driver := NewDriver(browser, Options{
		TargetURL: srv.URL,
		Selectors: Selectors{
			ComposeSurface:  "#surface",
			AttachmentInput: "#file",
			UploadPreview:   "#preview[data-ready]",
			SubmitControl:   "#submit",
		},
		PollInterval:      50 * time.Millisecond,
		SurfaceTimeout:    5 * time.Second,
		AttachmentTimeout: 5 * time.Second,
		UploadTimeout:     5 * time.Second,
		SubmitTimeout:     5 * time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if out := driver.Invoke(ctx, []byte{0x89, 'P', 'N', 'G'}, "image/png", "integration caption"); !out.Success {
		t.Fatalf("Invoke failed: %s", out.Error)
	}

	page, err := browser.Acquire(ctx, srv.URL)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ok, err := page.Exists(ctx, `#result[data-posted="integration caption"]`)
	if err != nil || !ok {
		t.Fatalf("expected submitted caption to be recorded, ok=%v err=%v", ok, err)
	}

	if res := driver.Probe(ctx); !res.Reachable {
		t.Fatalf("expected probe to succeed, got %+v", res)
	}
}
