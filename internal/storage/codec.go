package storage

import (
	"encoding/json"
	"errors"

	"github.com/pyaritra/prospector/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeFitResult(r model.FitResult) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeFitResult(data []byte) (model.FitResult, error) {
	var result model.FitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.FitResult{}, err
	}
	if err := checkVersion(result.VersionedRecord); err != nil {
		return model.FitResult{}, err
	}
	return result, nil
}

func EncodeTheta(theta []float64) ([]byte, error) {
	return json.Marshal(theta)
}

func DecodeTheta(data []byte) ([]float64, error) {
	var theta []float64
	if err := json.Unmarshal(data, &theta); err != nil {
		return nil, err
	}
	return theta, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
