package ingest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.pdf", "A.PDF", "._a.pdf", "~lock.pdf", ".hidden.pdf", "notes.txt", "sub/c.pdf"} {
		touch(t, filepath.Join(dir, n), "x")
	}
	if err := os.Mkdir(filepath.Join(dir, "folder.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListPDFs(dir, false)
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	want := []string{filepath.Join(dir, "A.PDF"), filepath.Join(dir, "b.pdf")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = ListPDFs(dir, true)
	if err != nil {
		t.Fatalf("ListPDFs recursive: %v", err)
	}
	if len(got) != 3 || got[2] != filepath.Join(dir, "sub", "c.pdf") {
		t.Errorf("recursive = %v", got)
	}
}

func TestListPDFsMissingDir(t *testing.T) {
	got, err := ListPDFs(filepath.Join(t.TempDir(), "nope"), false)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestFingerprintStableAcrossRename(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "scan_001.pdf")
	touch(t, a, "%PDF-1.7 same bytes")
	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}

	b := filepath.Join(dir, "moved", "Rechnung.pdf")
	if err := os.MkdirAll(filepath.Dir(b), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(a, b); err != nil {
		t.Fatal(err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if fa.Fingerprint != fb.Fingerprint || len(fa.Fingerprint) != 64 {
		t.Errorf("fingerprints differ: %s vs %s", fa.Fingerprint, fb.Fingerprint)
	}
	if fb.SizeBytes != int64(len("%PDF-1.7 same bytes")) {
		t.Errorf("size = %d", fb.SizeBytes)
	}

	c := filepath.Join(dir, "other.pdf")
	touch(t, c, "%PDF-1.7 different")
	fc, _ := Fingerprint(c)
	if fc.Fingerprint == fa.Fingerprint {
		t.Error("different content, same fingerprint")
	}
}

func TestFingerprintKnownValue(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.pdf")
	touch(t, p, "abc")
	fi, err := Fingerprint(p)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("3|abc")
	if want := "31f15b5dfec8a62680dca65203ad36d0a2c309754534e5fc0d126ea27ac3ec3f"; fi.Fingerprint != want {
		t.Errorf("fingerprint = %s, want %s", fi.Fingerprint, want)
	}
}

func TestWatcherEmitsPDFs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	want := map[string]bool{
		filepath.Join(dir, "existing.pdf"): false,
		filepath.Join(dir, "new.pdf"):      false,
	}
	touch(t, filepath.Join(dir, "ignored.txt"), "x")
	touch(t, filepath.Join(dir, "new.pdf"), "x")

	deadline := time.After(5 * time.Second)
	for seen := 0; seen < len(want); {
		select {
		case p := <-events:
			done, ok := want[p]
			if !ok {
				t.Fatalf("unexpected event %s", p)
			}
			if !done {
				want[p] = true
				seen++
			}
		case <-deadline:
			t.Fatalf("timed out, seen %v", want)
		}
	}
}

func TestWatcherIgnoresFilesMovedOut(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	filed := filepath.Join(root, "Dokumente", "001")
	touch(t, filepath.Join(inbox, "scan.pdf"), "x")
	if err := os.MkdirAll(filed, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{inbox}, Debounce: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	if err := os.Rename(filepath.Join(inbox, "scan.pdf"), filepath.Join(filed, "scan.pdf")); err != nil {
		t.Fatal(err)
	}
	later := filepath.Join(inbox, "later.pdf")
	touch(t, later, "x")

	deadline := time.After(5 * time.Second)
	var quiet <-chan time.Time
	for {
		select {
		case p := <-events:
			if p != later {
				t.Fatalf("unexpected event %s", p)
			}
			if quiet == nil {
				quiet = time.After(200 * time.Millisecond)
			}
		case <-quiet:
			return
		case <-deadline:
			t.Fatal("timed out waiting for later.pdf")
		}
	}
}
