package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// getBaseURL returns the base URL for API calls.
// Uses LABWATCH_BASE_URL env var if set (for container tests),
// otherwise defaults to localhost:5002.
func getBaseURL() string {
	if url := os.Getenv("LABWATCH_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:5002"
}

// httpClient creates an HTTP client with sensible defaults.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// doRequest performs an HTTP request and returns the response.
func doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	url := getBaseURL() + path
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient().Do(req)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var ruleID string

	BeforeAll(func() {
		// Check if the server is reachable
		resp, err := doRequest("GET", "/healthz", nil)
		if err != nil {
			Skip(fmt.Sprintf("Server not reachable at %s: %v", getBaseURL(), err))
		}
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			resp, err := doRequest("GET", "/healthz", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Alert Rules API", func() {
		It("should create a rule", func() {
			payload := map[string]interface{}{
				"name":        "HTTP Test Low Stock",
				"description": "Raised when stock drops under minimum",
				"type":        "LOW_STOCK",
				"severity":    "medium",
				"conditions": []map[string]interface{}{
					{"field": "currentStock", "operator": "LESS_THAN", "value": "minLevel"},
				},
				"channels": []map[string]interface{}{
					{"type": "IN_APP", "enabled": true},
				},
			}

			resp, err := doRequest("POST", "/v1/rules", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].(map[string]interface{})
			Expect(ok).To(BeTrue())
			ruleID = data["id"].(string)

			Expect(data["name"]).To(Equal("HTTP Test Low Stock"))
			Expect(data["is_active"]).To(Equal(true))
		})

		It("should get the created rule", func() {
			resp, err := doRequest("GET", "/v1/rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data := result["data"].(map[string]interface{})
			Expect(data["name"]).To(Equal("HTTP Test Low Stock"))
		})

		It("should list rules", func() {
			resp, err := doRequest("GET", "/v1/rules", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].([]interface{})
			Expect(ok).To(BeTrue())
			Expect(len(data)).To(BeNumerically(">=", 1))
		})

		It("should reject an invalid rule", func() {
			payload := map[string]interface{}{
				"name": "No type or conditions",
			}

			resp, err := doRequest("POST", "/v1/rules", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should deactivate the rule on delete instead of removing it", func() {
			resp, err := doRequest("DELETE", "/v1/rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["is_active"]).To(Equal(false))

			// Still fetchable afterwards
			getResp, err := doRequest("GET", "/v1/rules/"+ruleID, nil)
			Expect(err).NotTo(HaveOccurred())
			defer getResp.Body.Close()
			Expect(getResp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Metric Ingestion", func() {
		It("should accept a metric snapshot", func() {
			payload := map[string]interface{}{
				"item_id":       "http-test-item",
				"item_name":     "Integration Test Media",
				"category":      "MEDIA",
				"current_stock": 10.0,
				"min_level":     100.0,
			}

			resp, err := doRequest("POST", "/v1/inventory/metrics", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})

		It("should reject a snapshot without an item id", func() {
			payload := map[string]interface{}{
				"item_name": "No ID",
			}

			resp, err := doRequest("POST", "/v1/inventory/metrics", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Event Ingestion", func() {
		It("should accept a pregnancy update envelope", func() {
			payload := map[string]interface{}{
				"kind": "pregnancy_update",
				"payload": map[string]interface{}{
					"transfer_id": "ET-HTTP-001",
					"checkup_day": 30,
					"result":      "POSITIVE",
				},
			}

			resp, err := doRequest("POST", "/v1/events", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})

		It("should reject an envelope with an unknown kind", func() {
			payload := map[string]interface{}{
				"kind":    "bogus_kind",
				"payload": map[string]interface{}{"x": 1},
			}

			resp, err := doRequest("POST", "/v1/events", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Alerts and Dashboard", func() {
		It("should list alerts", func() {
			resp, err := doRequest("GET", "/v1/alerts", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result["success"]).To(Equal(true))
		})

		It("should return dashboard aggregates", func() {
			resp, err := doRequest("GET", "/v1/dashboard", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())

			data, ok := result["data"].(map[string]interface{})
			Expect(ok).To(BeTrue())
			Expect(data).To(HaveKey("total_alerts"))
			Expect(data).To(HaveKey("trends"))
		})
	})

	Describe("Notifications API", func() {
		It("should list notifications", func() {
			resp, err := doRequest("GET", "/v1/notifications", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should mark all notifications read", func() {
			resp, err := doRequest("POST", "/v1/notifications/read-all", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			listResp, err := doRequest("GET", "/v1/notifications?unread=true", nil)
			Expect(err).NotTo(HaveOccurred())
			defer listResp.Body.Close()

			var result map[string]interface{}
			Expect(parseResponse(listResp, &result)).To(Succeed())
			data, _ := result["data"].([]interface{})
			Expect(data).To(BeEmpty())
		})
	})
})
