package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMainConf(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.conf"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSingleModel(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "is-IS")
	writeMainConf(t, modelDir, "--language-code=is-IS\n--nnet3-rxfilename=final.mdl\n")

	reg, err := Load(modelDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	m, ok := reg.Get(ModelID{LanguageCode: "is-IS"})
	if !ok {
		t.Fatal("expected model is-IS to be registered")
	}
	if m.NnetPath != filepath.Join(modelDir, "final.mdl") {
		t.Errorf("NnetPath = %q", m.NnetPath)
	}
}

func TestLoadMultipleModels(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "is-IS")
	dirB := filepath.Join(root, "en-US")
	writeMainConf(t, dirA, "--language-code=is-IS\n")
	writeMainConf(t, dirB, "--language-code=en-US\n")

	reg, err := Load(dirA+","+dirB, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
}

func TestLoadMissingMainConfFailsFast(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "empty-model")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(modelDir, nil); err == nil {
		t.Fatal("expected error for missing main.conf")
	}
}

func TestLoadInfersLanguageFromDirName(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "is-IS")
	writeMainConf(t, modelDir, "--nnet3-rxfilename=final.mdl\n")

	reg, err := Load(modelDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get(ModelID{LanguageCode: "is-IS"}); !ok {
		t.Fatal("expected language code inferred from directory name is-IS")
	}
}

func TestGetUnknownModel(t *testing.T) {
	reg := &Registry{models: map[ModelID]*Model{}}
	if _, ok := reg.Get(ModelID{LanguageCode: "xx-XX"}); ok {
		t.Fatal("expected unknown model to be absent")
	}
}

func TestLoadOptionalArtifactsDefaultEmpty(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "is-IS")
	writeMainConf(t, modelDir, "--language-code=is-IS\n")

	reg, err := Load(modelDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := reg.Get(ModelID{LanguageCode: "is-IS"})
	if m.ConstARPAPath != "" || m.PunctuatorModelPath != "" || m.DiarizerModelPath != "" {
		t.Errorf("expected optional artifact paths empty by default, got %+v", m)
	}
}

func TestLoadOptionalArtifactsResolved(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "is-IS")
	writeMainConf(t, modelDir, "--language-code=is-IS\n--punctuator-rxfilename=punct.onnx\n--diarizer-rxfilename=xvector.onnx\n")

	reg, err := Load(modelDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := reg.Get(ModelID{LanguageCode: "is-IS"})
	if m.PunctuatorModelPath != filepath.Join(modelDir, "punct.onnx") {
		t.Errorf("PunctuatorModelPath = %q", m.PunctuatorModelPath)
	}
	if m.DiarizerModelPath != filepath.Join(modelDir, "xvector.onnx") {
		t.Errorf("DiarizerModelPath = %q", m.DiarizerModelPath)
	}
}
