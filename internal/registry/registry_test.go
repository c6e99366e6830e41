package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"envman/internal/model"
)

func TestRegisterAndGet(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)

	file := reg.Register(filepath.Join(dir, "svc", ".env"))
	if file.ID == "" {
		t.Fatal("empty id")
	}
	if file.Name != ".env" || file.Directory != filepath.Join(dir, "svc") {
		t.Errorf("record = %+v", file)
	}
	if file.RelativePath != filepath.Join("svc", ".env") {
		t.Errorf("relative path = %q", file.RelativePath)
	}

	got, ok := reg.Get(file.ID)
	if !ok || got != file {
		t.Errorf("Get(%q) = %+v, %v", file.ID, got, ok)
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Error("Get on unknown id succeeded")
	}

	if found, ok := reg.FindByPath(filepath.Join(dir, "svc", "..", "svc", ".env")); !ok || found.ID != file.ID {
		t.Errorf("FindByPath did not resolve the cleaned path: %+v %v", found, ok)
	}
}

func TestRegisterTwiceGivesTwoEntries(t *testing.T) {
	reg := New(t.TempDir())
	a := reg.Register("/x/.env")
	b := reg.Register("/x/.env")

	if a.ID == b.ID {
		t.Fatal("ids must differ")
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}

func TestRegisterNewSkipsKnownPaths(t *testing.T) {
	reg := New(t.TempDir())
	reg.Register("/x/.env")

	added := reg.RegisterNew([]string{"/x/.env", "/y/.env", "/y/.env", "/z/.env.local"})
	if len(added) != 2 {
		t.Fatalf("added %d, want 2: %+v", len(added), added)
	}
	if added[0].Path != "/y/.env" || added[1].Path != "/z/.env.local" {
		t.Errorf("added = %+v", added)
	}
	if reg.Len() != 3 {
		t.Errorf("Len = %d, want 3", reg.Len())
	}

	if again := reg.RegisterNew([]string{"/y/.env"}); len(again) != 0 {
		t.Errorf("second RegisterNew added %+v", again)
	}
}

func TestUnregister(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(dir)
	file := reg.Register(path)

	if !reg.Unregister(file.ID) {
		t.Fatal("Unregister returned false")
	}
	if reg.Unregister(file.ID) {
		t.Error("second Unregister returned true")
	}
	if _, ok := reg.Get(file.ID); ok {
		t.Error("record still present")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file on disk was touched: %v", err)
	}
}

func TestListOrderAndEmpty(t *testing.T) {
	reg := New(t.TempDir())

	if list := reg.List(); list == nil || len(list) != 0 {
		t.Errorf("empty List = %#v, want empty non-nil slice", list)
	}

	var want []string
	for i := 0; i < 5; i++ {
		f := reg.Register(fmt.Sprintf("/p%d/.env", i))
		want = append(want, f.ID)
	}
	var got []string
	for _, f := range reg.List() {
		got = append(got, f.ID)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List order = %v, want %v", got, want)
	}
}

func TestConcurrentAccess(t *testing.T) {
	reg := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := reg.Register(fmt.Sprintf("/c%d/.env", i))
			reg.Get(f.ID)
			reg.List()
			reg.RegisterNew([]string{fmt.Sprintf("/c%d/.env", i), "/shared/.env"})
			if i%2 == 0 {
				reg.Unregister(f.ID)
			}
		}(i)
	}
	wg.Wait()

	// 10 odd entries survive plus one shared path
	if reg.Len() != 11 {
		t.Errorf("Len = %d, want 11", reg.Len())
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"abc":      "***",
		"abcd":     "****",
		"abcde":    "ab***",
		"hunter2":  "hu*****",
		"pässwörd": "pä******",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Errorf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORT=80\nAPI_KEY=supersecret\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(dir)
	reg.Register(path)
	reg.Register(filepath.Join(dir, "gone", ".env"))

	report := GenerateReport(reg.List(), true)
	for _, want := range []string{
		"ENVMAN REPORT",
		"2 variables, 1 secrets",
		"PORT=80",
		"API_KEY=su*********",
		model.IconMissing,
		"Variables: 2",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "supersecret") {
		t.Error("report leaks a secret value")
	}

	summaries := Summarize(reg.List())
	if summaries[1].Error == "" {
		t.Error("missing file should carry an error")
	}
}
