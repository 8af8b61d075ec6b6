package automation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakePage struct {
	mu        sync.Mutex
	present   map[string]bool
	appearAt  map[string]int
	disabled  map[string]int
	checks    map[string]int
	calls     []string
	attached  []Attachment
	inserted  string
	location  string
	failClick map[string]error
	stuck     map[string]bool
	panicOn   string
}

func newFakePage() *fakePage {
	return &fakePage{
		present:   map[string]bool{},
		appearAt:  map[string]int{},
		disabled:  map[string]int{},
		checks:    map[string]int{},
		failClick: map[string]error{},
		stuck:     map[string]bool{},
		location:  "https://x.com/compose/post",
	}
}

func (p *fakePage) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if selector == p.panicOn {
		panic("page crashed")
	}
	p.checks[selector]++
	if n, ok := p.appearAt[selector]; ok {
		return p.checks[selector] >= n, nil
	}
	return p.present[selector], nil
}

func (p *fakePage) Enabled(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled[selector] > 0 {
		p.disabled[selector]--
		return false, nil
	}
	return p.disabled[selector] == 0, nil
}

// hang blocks like a page that never lets the action finish.
func (p *fakePage) hang(ctx context.Context, call string) error {
	p.mu.Lock()
	stuck := p.stuck[call]
	p.mu.Unlock()
	if !stuck {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if err := p.hang(ctx, "click "+selector); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click " + selector)
	return p.failClick[selector]
}

func (p *fakePage) InsertText(ctx context.Context, selector, text string) error {
	if err := p.hang(ctx, "insert "+selector); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("insert " + selector)
	p.inserted = text
	return nil
}

func (p *fakePage) TypeText(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("type " + selector)
	p.inserted = text
	return nil
}

func (p *fakePage) NotifyChange(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("notify " + selector)
	return nil
}

func (p *fakePage) AttachFile(_ context.Context, selector string, file Attachment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("attach " + selector)
	p.attached = append(p.attached, file)
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	return p.location, nil
}

type fakeBrowser struct {
	page     *fakePage
	err      error
	acquired int
}

func (b *fakeBrowser) Acquire(context.Context, string) (Page, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.acquired++
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }

func testOptions() Options {
	return Options{
		TargetURL: "https://x.com/compose/post",
		Selectors: Selectors{
			ComposeEntry:    "#entry",
			ComposeSurface:  "#surface",
			AttachmentInput: "#file",
			UploadPreview:   "#preview",
			SubmitControl:   "#submit",
		},
		PollInterval:      time.Millisecond,
		EntryTimeout:      20 * time.Millisecond,
		SurfaceTimeout:    20 * time.Millisecond,
		AttachmentTimeout: 20 * time.Millisecond,
		UploadTimeout:     20 * time.Millisecond,
		UploadFallback:    time.Millisecond,
		SubmitTimeout:     20 * time.Millisecond,
		Settle:            time.Millisecond,
	}
}

func readyPage() *fakePage {
	page := newFakePage()
	for _, sel := range []string{"#entry", "#surface", "#file", "#preview", "#submit"} {
		page.present[sel] = true
	}
	return page
}

func TestPostRunsStepsInOrder(t *testing.T) {
	page := readyPage()
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/jpeg", Caption: "hello"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	want := []string{
		"click #entry",
		"insert #surface",
		"notify #surface",
		"attach #file",
		"notify #file",
		"click #submit",
	}
	if strings.Join(page.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", page.calls, want)
	}
	if page.inserted != "hello" {
		t.Fatalf("unexpected inserted caption %q", page.inserted)
	}
	if len(page.attached) != 1 {
		t.Fatalf("expected one attachment, got %d", len(page.attached))
	}
	att := page.attached[0]
	if att.MimeType != "image/jpeg" || !strings.HasSuffix(att.Name, ".jpg") || string(att.Data) != "img" {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestPostTypedInsertMode(t *testing.T) {
	page := readyPage()
	opts := testOptions()
	opts.TypedInsert = true
	driver := NewDriver(&fakeBrowser{page: page}, opts, nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "typed"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if page.calls[1] != "type #surface" {
		t.Fatalf("expected typed insertion, got %v", page.calls)
	}
}

func TestPostSkipsMissingComposeEntry(t *testing.T) {
	page := readyPage()
	page.present["#entry"] = false
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "x"}); err != nil {
		t.Fatalf("missing compose entry should not fail: %v", err)
	}
	for _, call := range page.calls {
		if call == "click #entry" {
			t.Fatal("entry should not be clicked when absent")
		}
	}
}

func TestPostEmptyCaptionSkipsInsertion(t *testing.T) {
	page := readyPage()
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	for _, call := range page.calls {
		if strings.Contains(call, "#surface") {
			t.Fatalf("unexpected surface interaction %q", call)
		}
	}
}

func TestPostWaitsForLateElements(t *testing.T) {
	page := readyPage()
	page.appearAt["#surface"] = 3
	page.disabled["#submit"] = 2
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "x"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestPostMissingUploadPreviewFallsBack(t *testing.T) {
	page := readyPage()
	page.present["#preview"] = false
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "x"}); err != nil {
		t.Fatalf("missing preview should fall back to fixed wait: %v", err)
	}
}

func TestPostFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(*fakePage, *fakeBrowser)
		kind    Kind
		step    string
		summary string
	}{
		{
			name:    "target unavailable",
			setup:   func(_ *fakePage, b *fakeBrowser) { b.err = errors.New("no tab") },
			kind:    KindTargetUnavailable,
			step:    StepAcquireTarget,
			summary: "could not open the compose page",
		},
		{
			name:  "compose surface missing",
			setup: func(p *fakePage, _ *fakeBrowser) { p.present["#surface"] = false },
			kind:  KindComposeSurfaceNotFound,
			step:  StepComposeSurface,
		},
		{
			name:  "attachment input missing",
			setup: func(p *fakePage, _ *fakeBrowser) { p.present["#file"] = false },
			kind:  KindAttachmentInputNotFound,
			step:  StepAttachmentInput,
		},
		{
			name:  "submit missing",
			setup: func(p *fakePage, _ *fakeBrowser) { p.present["#submit"] = false },
			kind:  KindSubmitControlNotFound,
			step:  StepSubmitControl,
		},
		{
			name:  "submit never enabled",
			setup: func(p *fakePage, _ *fakeBrowser) { p.disabled["#submit"] = 1 << 20 },
			kind:  KindSubmitControlNotFound,
			step:  StepSubmitControl,
		},
		{
			name:  "submit click rejected",
			setup: func(p *fakePage, _ *fakeBrowser) { p.failClick["#submit"] = errors.New("detached") },
			kind:  KindPageFault,
			step:  StepSubmit,
		},
		{
			name:  "panic recovered",
			setup: func(p *fakePage, _ *fakeBrowser) { p.panicOn = "#file" },
			kind:  KindPageFault,
			step:  StepAttachmentInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := readyPage()
			browser := &fakeBrowser{page: page}
			tc.setup(page, browser)
			driver := NewDriver(browser, testOptions(), nil)

			err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "x"})
			var derr *DriverError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DriverError, got %v", err)
			}
			if derr.Kind != tc.kind || derr.Step != tc.step {
				t.Fatalf("got kind=%s step=%s, want kind=%s step=%s", derr.Kind, derr.Step, tc.kind, tc.step)
			}
			if tc.summary != "" && derr.Summary() != tc.summary {
				t.Fatalf("unexpected summary %q", derr.Summary())
			}
			if kind, ok := KindOf(err); !ok || kind != tc.kind {
				t.Fatalf("KindOf = %s %v", kind, ok)
			}
		})
	}
}

func TestPostBoundsStuckPageActions(t *testing.T) {
	cases := []struct {
		name string
		call string
		kind Kind
		step string
	}{
		{name: "insert", call: "insert #surface", kind: KindComposeSurfaceNotFound, step: StepInsertCaption},
		{name: "submit", call: "click #submit", kind: KindSubmitControlNotFound, step: StepSubmit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := readyPage()
			page.stuck[tc.call] = true
			driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

			started := time.Now()
			err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "hi"})
			if elapsed := time.Since(started); elapsed > 2*time.Second {
				t.Fatalf("Post took %s", elapsed)
			}
			var derr *DriverError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DriverError, got %v", err)
			}
			if derr.Kind != tc.kind || derr.Step != tc.step {
				t.Fatalf("got kind=%s step=%s, want kind=%s step=%s", derr.Kind, derr.Step, tc.kind, tc.step)
			}
			if !errors.Is(err, ErrActionTimeout) {
				t.Fatalf("expected action timeout, got %v", err)
			}
		})
	}
}

func TestPostContinuesPastStuckComposeEntry(t *testing.T) {
	page := readyPage()
	page.stuck["click #entry"] = true
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)

	if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png", Caption: "hi"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if page.calls[0] != "insert #surface" {
		t.Fatalf("expected caption insertion after stuck entry click, got %v", page.calls)
	}
}

func TestPostBoundsPageAcquire(t *testing.T) {
	opts := testOptions()
	opts.LoadTimeout = 20 * time.Millisecond
	driver := NewDriver(stuckBrowser{}, opts, nil)

	err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png"})
	if kind, ok := KindOf(err); !ok || kind != KindTargetUnavailable {
		t.Fatalf("expected target unavailable, got %v", err)
	}
}

type stuckBrowser struct{}

func (stuckBrowser) Acquire(ctx context.Context, _ string) (Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stuckBrowser) Close() error { return nil }

func TestInvokeReportsOutcome(t *testing.T) {
	page := readyPage()
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)
	if out := driver.Invoke(context.Background(), []byte("img"), "image/png", "x"); !out.Success || out.Error != "" {
		t.Fatalf("unexpected success outcome %+v", out)
	}

	page.present["#surface"] = false
	out := driver.Invoke(context.Background(), []byte("img"), "image/png", "x")
	if out.Success || out.Error != "compose text box did not appear" {
		t.Fatalf("unexpected failure outcome %+v", out)
	}
}

func TestDriverReusesSharedPage(t *testing.T) {
	page := readyPage()
	browser := &fakeBrowser{page: page}
	driver := NewDriver(browser, testOptions(), nil)
	for i := 0; i < 3; i++ {
		if err := driver.Post(context.Background(), Post{Data: []byte("img"), MimeType: "image/png"}); err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}
	if browser.acquired != 3 {
		t.Fatalf("expected one Acquire per post, got %d", browser.acquired)
	}
}

func TestProbe(t *testing.T) {
	page := readyPage()
	driver := NewDriver(&fakeBrowser{page: page}, testOptions(), nil)
	if res := driver.Probe(context.Background()); !res.Reachable {
		t.Fatalf("expected reachable probe, got %+v", res)
	}

	page.location = "https://login.example.com/"
	if res := driver.Probe(context.Background()); res.Reachable {
		t.Fatalf("expected unreachable probe for other host, got %+v", res)
	}

	failing := NewDriver(&fakeBrowser{err: errors.New("closed")}, testOptions(), nil)
	if res := failing.Probe(context.Background()); res.Reachable || res.Error == "" {
		t.Fatalf("expected probe error, got %+v", res)
	}
}
