// Package registry loads and holds the process-wide, read-only map of
// available recognition models. Models are the "external collaborator"
// of spec.md §1: acoustic model, decoding graph and language model files
// loaded from disk, never trained or mutated by this service.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ModelID identifies a registered model by BCP-47 language code plus an
// optional variant name, mirroring original_source/src/kaldi-model.h's
// ModelId{language_code, model_name}.
type ModelID struct {
	LanguageCode string
	Variant      string
}

func (id ModelID) String() string {
	if id.Variant == "" {
		return id.LanguageCode
	}
	return fmt.Sprintf("%s/%s", id.LanguageCode, id.Variant)
}

// Model is the in-memory handle to one registered model's resources.
// Path-based fields point at files under the model directory; this
// service never parses acoustic model internals itself, those are the
// external collaborator's concern (spec.md §1), so Model only tracks
// enough to hand the directory to a Recognizer/AcousticScorer.
type Model struct {
	ID  ModelID
	Dir string

	// NnetPath, FSTPath, WordSymsPath, ConstARPAPath mirror the
	// KaldiModelConfig fields original_source/src/kaldi-model.h
	// registers from main.conf: nnet3-rxfilename, fst-rxfilename,
	// word-syms-rxfilename, const-arpa-rxfilename. Optional fields may
	// be empty.
	NnetPath      string
	FSTPath       string
	WordSymsPath  string
	ConstARPAPath string

	// PunctuatorModelPath and DiarizerModelPath are optional artifacts
	// (spec.md §6: "optional punctuator artifact, optional diarizer
	// artifacts"); empty means the feature is unavailable for this model.
	PunctuatorModelPath string
	PunctuatorVocabPath string
	DiarizerModelPath   string

	SampleRateHertz uint32
}

// Registry is a read-only, process-wide map of models populated once at
// startup. Safe for concurrent reads from many streaming calls; there is
// no mutation path after Load returns, matching spec.md §1's "Acoustic
// model/decoding graph/language model are external collaborators loaded
// from disk" — this service never hot-swaps or retrains them.
type Registry struct {
	mu     sync.RWMutex
	models map[ModelID]*Model
}

// Load reads one model per comma-separated directory in modelDirs (the
// --kaldi-models flag value), each of which must contain a main.conf file,
// mirroring original_source/src/kaldi-model.cc's KaldiModel::Read
// fail-fast check. The language code is taken from the main.conf contents
// and, failing that, from the directory name (lang[-variant]); the
// optional variant always comes from the directory name.
func Load(modelDirs string, logger *slog.Logger) (*Registry, error) {
	r := &Registry{models: make(map[ModelID]*Model)}
	for _, dir := range splitNonEmpty(modelDirs, ',') {
		model, err := loadModel(dir)
		if err != nil {
			return nil, fmt.Errorf("registry: load %s: %w", dir, err)
		}
		r.models[model.ID] = model
		if logger != nil {
			logger.Info("registered model", "id", model.ID.String(), "dir", dir)
		}
	}
	return r, nil
}

func splitNonEmpty(s string, sep rune) []string {
	var out []string
	for _, part := range strings.Split(s, string(sep)) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadModel(dir string) (*Model, error) {
	confPath := filepath.Join(dir, "main.conf")
	conf, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("%s does not exist, is this not a packaged model? %w", confPath, err)
	}
	fields := parseMainConf(string(conf))

	langCode := fields["language-code"]
	if langCode == "" {
		langCode, _ = inferFromDirName(dir)
	}
	_, variant := inferFromDirName(dir)

	m := &Model{
		ID:                  ModelID{LanguageCode: langCode, Variant: variant},
		Dir:                 dir,
		NnetPath:            resolvePath(dir, fields, "nnet3-rxfilename", "final.mdl"),
		FSTPath:             resolvePath(dir, fields, "fst-rxfilename", "graph/HCLG.fst"),
		WordSymsPath:        resolvePath(dir, fields, "word-syms-rxfilename", "graph/words.txt"),
		ConstARPAPath:       resolvePathOptional(dir, fields, "const-arpa-rxfilename"),
		PunctuatorModelPath: resolvePathOptional(dir, fields, "punctuator-rxfilename"),
		PunctuatorVocabPath: resolvePathOptional(dir, fields, "punctuator-vocab-rxfilename"),
		DiarizerModelPath:   resolvePathOptional(dir, fields, "diarizer-rxfilename"),
		SampleRateHertz:     16000,
	}
	if m.ID.LanguageCode == "" {
		return nil, fmt.Errorf("model at %s has no language-code in main.conf and none could be inferred from its directory name", dir)
	}
	return m, nil
}

// parseMainConf parses Kaldi-style "--key=value" option lines, one per
// line, the format ParseOptions::ReadConfigFile reads.
func parseMainConf(contents string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "--")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fields[strings.TrimSpace(parts[0])] = strings.Trim(strings.TrimSpace(parts[1]), `"`)
	}
	return fields
}

func resolvePath(dir string, fields map[string]string, key, fallback string) string {
	v := fields[key]
	if v == "" {
		v = fallback
	}
	if filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(dir, v)
}

func resolvePathOptional(dir string, fields map[string]string, key string) string {
	v := fields[key]
	if v == "" {
		return ""
	}
	if filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(dir, v)
}

// inferFromDirName splits a trailing directory component like "is-IS" or
// "is-IS-radiology" into language code and variant.
func inferFromDirName(dir string) (lang, variant string) {
	base := filepath.Base(strings.TrimRight(dir, "/"))
	parts := strings.SplitN(base, "-", 3)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	case 2:
		return parts[0] + "-" + parts[1], ""
	default:
		return parts[0] + "-" + parts[1], strings.Join(parts[2:], "-")
	}
}

// Get returns the model for id, or (nil, false) if not registered.
func (r *Registry) Get(id ModelID) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// List returns every registered model, in no particular order.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}

// Len reports the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
