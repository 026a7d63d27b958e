package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// AadhaarVerifier checks a national ID number. A well-formed call that finds
// the number invalid returns IsValid=false, not an error.
type AadhaarVerifier interface {
	Verify(ctx context.Context, number string) (*AadhaarResult, error)
}

// ValidAadhaarFormat reports whether number is exactly 12 ASCII digits.
func ValidAadhaarFormat(number string) bool {
	if len(number) != 12 {
		return false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}

// FormatVerifier accepts any well-formed number. Used when no verification
// service is configured.
type FormatVerifier struct{}

func (FormatVerifier) Verify(ctx context.Context, number string) (*AadhaarResult, error) {
	return &AadhaarResult{IsValid: ValidAadhaarFormat(number)}, nil
}

// RemoteVerifier asks an external Aadhaar verification service. Malformed
// numbers are rejected locally without a round trip.
type RemoteVerifier struct {
	url    string
	client *http.Client
}

func NewRemoteVerifier(url string, timeout time.Duration) *RemoteVerifier {
	return &RemoteVerifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	AadhaarNumber string `json:"aadhaarNumber"`
}

type remoteResponse struct {
	IsValid bool `json:"isValid"`
	Details *struct {
		Name        string `json:"name"`
		Gender      string `json:"gender"`
		YearOfBirth string `json:"yearOfBirth"`
	} `json:"details"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, number string) (*AadhaarResult, error) {
	if !ValidAadhaarFormat(number) {
		return &AadhaarResult{IsValid: false}, nil
	}

	payload, err := json.Marshal(remoteRequest{AadhaarNumber: number})
	if err != nil {
		return nil, fmt.Errorf("encode aadhaar request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build aadhaar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, apperr.Unavailable(err, "aadhaar verification service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Unavailable(fmt.Errorf("status %d", resp.StatusCode),
			"aadhaar verification service unavailable")
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Unavailable(err, "aadhaar verification service returned a malformed response")
	}

	result := &AadhaarResult{IsValid: out.IsValid}
	if out.Details != nil {
		result.Name = out.Details.Name
		result.Gender = out.Details.Gender
		result.YearOfBirth = out.Details.YearOfBirth
	}
	return result, nil
}
