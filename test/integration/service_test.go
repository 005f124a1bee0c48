// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// Integration test for a running arxval service.
//
// Exercises the HTTP surface of `arxval serve` end to end. Assertions
// are knowledge-base agnostic so the test passes against any loaded
// KB: syntax errors are findings under every KB, and the schema
// listing only needs to be non-empty.

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceURL() string {
	if url := os.Getenv("ARXVAL_SERVICE_URL"); url != "" {
		return url
	}
	return "http://localhost:8089"
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
		t.Skip("Set RUN_INTEGRATION_TESTS=1 to run this test")
	}
}

func TestService_Health(t *testing.T) {
	skipUnlessIntegration(t)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serviceURL() + "/healthz")
	require.NoError(t, err, "Service should be reachable")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status    string `json:"status"`
		KBVersion string `json:"kb_version"`
		Classes   int    `json:"classes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.KBVersion, "Health should report the loaded KB version")
	assert.Greater(t, health.Classes, 0, "A loaded KB has at least one class")
}

func TestService_ValidateSyntaxError(t *testing.T) {
	skipUnlessIntegration(t)

	// A parse error is a finding under every knowledge base.
	payload, err := json.Marshal(map[string]string{
		"script": "def broken(:\n    pass\n",
		"name":   "integration.py",
	})
	require.NoError(t, err)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(serviceURL()+"/v1/validate", "application/json",
		bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		PassID   string `json:"pass_id"`
		Valid    bool   `json:"valid"`
		Findings []struct {
			Category string `json:"category"`
		} `json:"findings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.NotEmpty(t, result.PassID)
	assert.False(t, result.Valid, "A script that does not parse is never valid")
	require.NotEmpty(t, result.Findings)
	assert.Equal(t, "syntax", result.Findings[0].Category)
}

func TestService_ClassListing(t *testing.T) {
	skipUnlessIntegration(t)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/v1/schema/classes?limit=5", serviceURL()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Classes []struct {
			Name string `json:"name"`
		} `json:"classes"`
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))

	assert.Greater(t, page.Total, 0)
	require.NotEmpty(t, page.Classes)
	assert.NotEmpty(t, page.Classes[0].Name)

	// The named class endpoint must agree with the listing.
	resp2, err := client.Get(serviceURL() + "/v1/schema/classes/" + page.Classes[0].Name)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
