package cli

import (
	"context"
	"errors"
	"slices"
)

type testRunner struct {
	gen         uint64
	starts      [][]string
	inputs      []string
	evalInputs  []string
	evaluations []map[string]string
	cancels     int
}

func (r *testRunner) Start(input string, models []string) uint64 {
	r.gen++
	r.inputs = append(r.inputs, input)
	r.starts = append(r.starts, slices.Clone(models))
	return r.gen
}

func (r *testRunner) Evaluate(gen uint64, input string, outputs map[string]string) {
	r.evalInputs = append(r.evalInputs, input)
	r.evaluations = append(r.evaluations, outputs)
}

func (r *testRunner) Cancel() {
	r.cancels++
}

type testRegistry struct {
	models []string
	err    error
}

func (r *testRegistry) ListModels(ctx context.Context) ([]string, error) {
	return r.models, r.err
}

type testUploader struct {
	paths []string
	text  string
	err   error
}

func (u *testUploader) Submit(ctx context.Context, path string) (string, error) {
	u.paths = append(u.paths, path)
	if u.err != nil {
		return "", u.err
	}
	return u.text, nil
}

func (u *testUploader) Extensions() []string {
	return []string{".txt", ".md", ".csv"}
}

var errUploadFailed = errors.New("file upload failed")

type testHarness struct {
	model    *multimodelModel
	runner   *testRunner
	registry *testRegistry
	uploader *testUploader
}

func newTestHarness(cfg *Config, models ...string) *testHarness {
	h := &testHarness{
		runner:   &testRunner{},
		registry: &testRegistry{models: models},
		uploader: &testUploader{text: "uploaded text"},
	}
	if cfg == nil {
		cfg = &Config{}
	}
	h.model = initialMultimodelModel(context.Background(), cfg, h.registry, h.uploader, h.runner)
	return h
}
