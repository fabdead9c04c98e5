package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pyaritra/prospector/internal/model"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func sampleFitResult() model.FitResult {
	return model.FitResult{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		RunID: "run-1",
		RunParams: model.RunParams{
			Engine:  "template",
			Walkers: 2,
			Steps:   3,
			Thin:    1,
		},
		ParamSpecs: []model.ParamSpec{{Name: "mass", Offset: 0, Length: 1}},
		Chain: model.Chain{
			Walkers: 2,
			Steps:   3,
			Params:  1,
			Samples: []float64{1, 2, 3, 4, 5, 6},
		},
		LnProbability: []float64{-1, -2, -3, -4, -5, -6},
	}
}

func TestFitResultRoundTrip(t *testing.T) {
	want := sampleFitResult()

	data, err := EncodeFitResult(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeFitResult(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot=%+v\nwant=%+v", got, want)
	}
}

func TestDecodeFitResultVersionMismatch(t *testing.T) {
	record := sampleFitResult()
	record.SchemaVersion = CurrentSchemaVersion + 1

	data, err := EncodeFitResult(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFitResult(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeFitResultFixture(t *testing.T) {
	result, err := DecodeFitResult(fixture(t, "minimal_fit_result_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	if result.RunID != "demo-fixture" {
		t.Fatalf("run id mismatch: got=%s want=demo-fixture", result.RunID)
	}
	if result.Chain.Walkers != 2 || result.Chain.Steps != 2 || result.Chain.Params != 1 {
		t.Fatalf("chain shape mismatch: %dx%dx%d", result.Chain.Walkers, result.Chain.Steps, result.Chain.Params)
	}
	if got := result.Chain.At(1, 0, 0); got != 0.9 {
		t.Fatalf("chain sample mismatch: got=%g want=0.9", got)
	}
}

func TestThetaRoundTrip(t *testing.T) {
	want := []float64{1.5, -2.25, 0}

	data, err := EncodeTheta(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTheta(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got=%v want=%v", got, want)
	}
}
