// Package integration contains end-to-end integration tests for LabWatch.
// These tests verify the complete flow from event ingestion to alert
// creation and notification delivery.
package integration

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LabWatch Integration Suite")
}
