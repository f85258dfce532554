package dashboard

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jpalmerr/ledboard/internal/dom"
)

func readPage(t *testing.T) string {
	t.Helper()
	data, err := fs.ReadFile(Assets, PagePath)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", PagePath, err)
	}
	return string(data)
}

func TestPage_BindsExpectedElements(t *testing.T) {
	doc, err := dom.ParseString(readPage(t))
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	for _, id := range []string{
		"sidebar", "sidebarOverlay", "sidebarToggle",
		"ledState", "bulb", "filament", "bulbStatus",
		"systemStatus", "heapMemory", "wifiRSSI", "uptime", "pingLatency",
	} {
		if _, ok := doc.ByID(id); !ok {
			t.Errorf("page has no #%s", id)
		}
	}
	if len(doc.All("nav-link")) == 0 {
		t.Error("page has no nav links")
	}
}

func TestPage_ClientResyncs(t *testing.T) {
	page := readPage(t)
	for _, want := range []string{
		// shared patches must arrive without gaps
		"p.seq !== lastSeq + 1",
		// local patches are numbered per session
		"p.seq !== localSeq + 1",
		// a new stream after a restart or drop is checked against the page
		"if (p.seq !== lastSeq) { location.reload()",
		// the socket reconnects after it closes
		"ws.onclose",
		"setTimeout(connect, retry)",
		// events name the viewer session
		"ev.session = session",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page script missing %q", want)
		}
	}
}
