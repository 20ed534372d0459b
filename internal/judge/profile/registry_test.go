package profile_test

import (
	"testing"

	"codearena/internal/judge/profile"
	appErr "codearena/pkg/errors"
)

func TestResolveKnownLanguages(t *testing.T) {
	t.Parallel()

	registry := profile.NewDefaultRegistry()
	for _, id := range []string{"python", "cpp", "javascript"} {
		p, err := registry.Resolve(id)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", id, err)
		}
		if p.ID != id {
			t.Fatalf("Resolve(%q) returned profile %q", id, p.ID)
		}
		if p.FileExtension == "" || p.RunCmdTpl == "" || p.ImageRef == "" {
			t.Fatalf("Resolve(%q) returned incomplete profile: %+v", id, p)
		}
	}
}

func TestResolveUnknownLanguage(t *testing.T) {
	t.Parallel()

	registry := profile.NewDefaultRegistry()
	_, err := registry.Resolve("ruby")
	if err == nil {
		t.Fatal("Resolve(ruby) expected error, got nil")
	}
	if code := appErr.GetCode(err); code != appErr.LanguageNotSupported {
		t.Fatalf("Resolve(ruby) code = %d, want %d", code, appErr.LanguageNotSupported)
	}
}

func TestResolveEmptyLanguage(t *testing.T) {
	t.Parallel()

	registry := profile.NewDefaultRegistry()
	_, err := registry.Resolve("  ")
	if err == nil {
		t.Fatal("Resolve of blank language expected error, got nil")
	}
	if code := appErr.GetCode(err); code != appErr.ValidationFailed {
		t.Fatalf("blank language code = %d, want %d", code, appErr.ValidationFailed)
	}
}

func TestSourceFileName(t *testing.T) {
	t.Parallel()

	registry := profile.NewDefaultRegistry()
	p, err := registry.Resolve("cpp")
	if err != nil {
		t.Fatalf("Resolve(cpp): %v", err)
	}
	if got := p.SourceFileName(); got != "main.cpp" {
		t.Fatalf("SourceFileName = %q, want main.cpp", got)
	}
}

func TestSupportedSorted(t *testing.T) {
	t.Parallel()

	registry := profile.NewDefaultRegistry()
	ids := registry.Supported()
	want := []string{"cpp", "javascript", "python"}
	if len(ids) != len(want) {
		t.Fatalf("Supported returned %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Supported returned %v, want %v", ids, want)
		}
	}
}

func TestRegistrySkipsEmptyID(t *testing.T) {
	t.Parallel()

	registry := profile.NewRegistry([]profile.Profile{
		{ID: "", FileExtension: "x"},
		{ID: "python", FileExtension: "py"},
	})
	if got := registry.Supported(); len(got) != 1 || got[0] != "python" {
		t.Fatalf("Supported = %v, want [python]", got)
	}
}
