package domain

import (
	"encoding/json"
	"fmt"
)

func EncodeJob(j ProbeJob) ([]byte, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}

func DecodeJob(b []byte) (ProbeJob, error) {
	var j ProbeJob
	if err := json.Unmarshal(b, &j); err != nil {
		return ProbeJob{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

func EncodeResult(r ProbeResult) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}

// DecodeResult rejects records without a url; those cannot be correlated
// to any job.
func DecodeResult(b []byte) (ProbeResult, error) {
	var r ProbeResult
	if err := json.Unmarshal(b, &r); err != nil {
		return ProbeResult{}, fmt.Errorf("decode result: %w", err)
	}
	if r.URL == "" {
		return ProbeResult{}, fmt.Errorf("decode result: missing url")
	}
	return r, nil
}
